// internal/workers/tenant-chat/process-tenant-message/handler.go
package processtenantmessage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"proco-workers/internal/agent"
	"proco-workers/internal/common/camunda"
	apperrors "proco-workers/internal/common/errors"
	"proco-workers/internal/common/logger"
	"proco-workers/internal/common/validation"
	"proco-workers/internal/models"
	"proco-workers/internal/search"
	"proco-workers/internal/store"
)

const (
	TaskType = "process-tenant-message"
)

// TxRunner opens the per-turn transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(q *store.Queries) error) error
}

type IssueReader interface {
	GetIssueDetail(ctx context.Context, id string) (*models.IssueDetail, error)
}

type IssueIndexer interface {
	IndexIssue(ctx context.Context, doc search.IssueDocument) error
}

// Dependencies wires the handler. Issues and Indexer are optional; without
// them new issues are not pushed to the search index.
type Dependencies struct {
	Runner    TxRunner
	Agent     *agent.Agent
	Vendors   agent.VendorSource
	Issues    IssueReader
	Indexer   IssueIndexer
	Validator *validation.Schema
	Logger    logger.Logger
	Clock     func() time.Time
}

type Handler struct {
	config     *Config
	deps       Dependencies
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
	now        func() time.Time
}

func NewHandler(config *Config, deps Dependencies) *Handler {
	log := deps.Logger.With(map[string]interface{}{"taskType": TaskType})
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Handler{
		config:     config,
		deps:       deps,
		logger:     log,
		errHandler: apperrors.NewErrorHandler(log),
		now:        now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.execute(ctx, input)
	if err != nil {
		h.errHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	if h.deps.Validator != nil {
		if result := h.deps.Validator.ValidateJSON(variables); !result.Valid {
			return nil, apperrors.NewInputValidationFailedError(result.Error())
		}
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInputValidationFailedError(err.Error())
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInputValidationFailedError("input cannot be nil")
	}
	input.TenantID = strings.TrimSpace(input.TenantID)
	if input.TenantID == "" || strings.TrimSpace(input.Message) == "" {
		return nil, apperrors.NewInputValidationFailedError("tenantId and message are required")
	}

	var result *agent.Result
	err := h.deps.Runner.WithTx(ctx, func(q *store.Queries) error {
		propertyID, err := h.resolveProperty(ctx, q, input)
		if err != nil {
			return err
		}

		userMsg := &models.Message{
			ID:         uuid.NewString(),
			IssueID:    optional(input.IssueID),
			PropertyID: &propertyID,
			TenantID:   input.TenantID,
			Role:       models.RoleUser,
			Content:    input.Message,
			CreatedAt:  h.now().UTC(),
		}
		if err := q.InsertMessage(ctx, userMsg); err != nil {
			return apperrors.NewMessagePersistFailedError(err)
		}

		result, err = h.deps.Agent.Run(ctx, q, h.deps.Vendors, agent.Turn{
			TenantID:         input.TenantID,
			PropertyID:       propertyID,
			Message:          input.Message,
			ImageDescription: input.ImageDescription,
			IssueID:          input.IssueID,
		})
		if err != nil {
			return mapAgentError(err)
		}

		// The tenant message is already linked by the agent's backfill.
		at := h.now().UTC()
		if !at.After(userMsg.CreatedAt) {
			at = userMsg.CreatedAt.Add(time.Microsecond)
		}
		if err := q.InsertMessage(ctx, &models.Message{
			ID:         uuid.NewString(),
			IssueID:    optional(result.IssueID),
			PropertyID: &propertyID,
			TenantID:   input.TenantID,
			Role:       models.RoleAssistant,
			Content:    result.Reply,
			CreatedAt:  at,
		}); err != nil {
			return apperrors.NewMessagePersistFailedError(err)
		}
		return nil
	})
	if err != nil {
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) {
			return nil, stdErr
		}
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}

	if result.Escalated {
		h.indexIssue(ctx, result.IssueID)
	}

	return &Output{
		Response:          result.Reply,
		IssueCreated:      result.IssueID != "",
		Escalated:         result.Escalated,
		IssueID:           result.IssueID,
		ConversationState: string(result.State),
		Category:          string(result.Category),
		EstimatedCost:     result.EstimatedCost,
	}, nil
}

// resolveProperty checks the caller is a tenant and picks the explicit
// property or the tenant's own.
func (h *Handler) resolveProperty(ctx context.Context, q *store.Queries, input *Input) (string, error) {
	user, err := q.GetUser(ctx, input.TenantID)
	if errors.Is(err, store.ErrNotFound) {
		return "", apperrors.NewTenantNotFoundError(input.TenantID)
	}
	if err != nil {
		return "", apperrors.NewHistoryLoadFailedError(err)
	}
	if user.Role != models.UserRoleTenant {
		return "", apperrors.NewUserNotTenantError(user.ID)
	}

	propertyID := strings.TrimSpace(input.PropertyID)
	if propertyID == "" && user.PropertyID != nil {
		propertyID = *user.PropertyID
	}
	if propertyID == "" {
		return "", apperrors.NewPropertyRequiredError(user.ID)
	}
	return propertyID, nil
}

// indexIssue pushes a new issue to the search index. Failures are logged;
// the turn has already committed.
func (h *Handler) indexIssue(ctx context.Context, issueID string) {
	if h.deps.Issues == nil || h.deps.Indexer == nil {
		return
	}
	detail, err := h.deps.Issues.GetIssueDetail(ctx, issueID)
	if err == nil {
		err = h.deps.Indexer.IndexIssue(ctx, search.DocumentFromDetail(detail))
	}
	if err != nil {
		h.logger.Warn("issue not indexed", map[string]interface{}{
			"issueId": issueID,
			"error":   err.Error(),
		})
	}
}

func mapAgentError(err error) error {
	switch {
	case errors.Is(err, agent.ErrModelTimeout):
		return apperrors.NewModelTimeoutError(err)
	case errors.Is(err, agent.ErrModelUnavailable):
		return apperrors.NewModelUnavailableError(err)
	case errors.Is(err, agent.ErrHistoryLoad):
		return apperrors.NewHistoryLoadFailedError(err)
	case errors.Is(err, agent.ErrVendorLookup):
		return apperrors.NewVendorLookupFailedError(err)
	case errors.Is(err, agent.ErrIssueCreate):
		return apperrors.NewIssueCreateFailedError(err)
	default:
		return apperrors.NewInternalError(fmt.Errorf("agent turn: %w", err))
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	if err := camunda.CompleteJob(ctx, client, job, output, camunda.CompletionRetry); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
