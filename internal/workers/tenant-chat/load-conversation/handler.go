// internal/workers/tenant-chat/load-conversation/handler.go
package loadconversation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"proco-workers/internal/agent"
	"proco-workers/internal/common/camunda"
	apperrors "proco-workers/internal/common/errors"
	"proco-workers/internal/common/logger"
	"proco-workers/internal/common/validation"
	"proco-workers/internal/models"
	"proco-workers/internal/store"
)

const (
	TaskType = "load-conversation"
)

type IssueReader interface {
	GetIssueDetail(ctx context.Context, id string) (*models.IssueDetail, error)
}

type Dependencies struct {
	Store     agent.ConversationStore
	History   *agent.HistoryLoader
	Issues    IssueReader
	Validator *validation.Schema
	Logger    logger.Logger
}

type Handler struct {
	config     *Config
	deps       Dependencies
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, deps Dependencies) *Handler {
	log := deps.Logger.With(map[string]interface{}{"taskType": TaskType})
	if deps.History == nil {
		deps.History = agent.NewHistoryLoader(0)
	}
	return &Handler{
		config:     config,
		deps:       deps,
		logger:     log,
		errHandler: apperrors.NewErrorHandler(log),
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
	scope := models.Scope{
		TenantID:   strings.TrimSpace(input.TenantID),
		PropertyID: strings.TrimSpace(input.PropertyID),
		IssueID:    strings.TrimSpace(input.IssueID),
	}
	if !scope.HasIssue() && (scope.TenantID == "" || scope.PropertyID == "") {
		return nil, apperrors.NewInputValidationFailedError("issueId or tenantId and propertyId are required")
	}
	if input.Limit < 0 {
		return nil, apperrors.NewInputValidationFailedError("limit must not be negative")
	}

	limit := input.Limit
	if limit == 0 {
		limit = h.deps.History.Window()
	}
	if h.config.MaxLimit > 0 && limit > h.config.MaxLimit {
		limit = h.config.MaxLimit
	}

	messages, err := h.deps.History.LoadN(ctx, h.deps.Store, scope, limit)
	if err != nil {
		return nil, apperrors.NewHistoryLoadFailedError(err)
	}

	if len(messages) == 0 && scope.HasIssue() && h.deps.Issues != nil {
		if _, err := h.deps.Issues.GetIssueDetail(ctx, scope.IssueID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, apperrors.NewIssueNotFoundError(scope.IssueID)
			}
			return nil, apperrors.NewHistoryLoadFailedError(err)
		}
	}

	if messages == nil {
		messages = []models.Message{}
	}

	h.logger.Debug("conversation loaded", map[string]interface{}{
		"issueId":  scope.IssueID,
		"tenantId": scope.TenantID,
		"count":    len(messages),
	})

	return &Output{Messages: messages, Count: len(messages)}, nil
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
