// internal/workers/issues/post-issue-message/handler.go
package postissuemessage

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

	"proco-workers/internal/common/camunda"
	apperrors "proco-workers/internal/common/errors"
	"proco-workers/internal/common/logger"
	"proco-workers/internal/common/validation"
	"proco-workers/internal/models"
	"proco-workers/internal/store"
)

const (
	TaskType = "post-issue-message"
)

type IssueReader interface {
	GetIssueDetail(ctx context.Context, id string) (*models.IssueDetail, error)
}

type UserReader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type MessageWriter interface {
	InsertMessage(ctx context.Context, m *models.Message) error
}

// Dependencies wires the handler. Clock and NewID default to time.Now and
// random UUIDs.
type Dependencies struct {
	Issues    IssueReader
	Users     UserReader
	Messages  MessageWriter
	Validator *validation.Schema
	Logger    logger.Logger
	Clock     func() time.Time
	NewID     func() string
}

// Handler appends a message to an existing issue thread on behalf of the
// issue's tenant or the landlord of its property. No assistant reply is
// generated.
type Handler struct {
	config     *Config
	deps       Dependencies
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, deps Dependencies) *Handler {
	log := deps.Logger.With(map[string]interface{}{"taskType": TaskType})
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.New().String() }
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
	issueID := strings.TrimSpace(input.IssueID)
	authorID := strings.TrimSpace(input.AuthorID)
	content := strings.TrimSpace(input.Content)
	if issueID == "" || authorID == "" || content == "" {
		return nil, apperrors.NewInputValidationFailedError("issueId, authorId and content are required")
	}
	if h.config.MaxContent > 0 && len([]rune(content)) > h.config.MaxContent {
		return nil, apperrors.NewInputValidationFailedError(
			fmt.Sprintf("content exceeds %d characters", h.config.MaxContent))
	}

	issue, err := h.deps.Issues.GetIssueDetail(ctx, issueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewIssueNotFoundError(issueID)
		}
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}

	author, err := h.deps.Users.GetUser(ctx, authorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewNotParticipantError(authorID, issueID)
		}
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}

	role, ok := authorRole(author, issue)
	if !ok {
		return nil, apperrors.NewNotParticipantError(authorID, issueID)
	}

	propertyID := issue.PropertyID
	msg := models.Message{
		ID:         h.deps.NewID(),
		IssueID:    &issueID,
		PropertyID: &propertyID,
		TenantID:   issue.TenantID,
		Role:       role,
		Content:    content,
		CreatedAt:  h.deps.Clock().UTC(),
	}
	if err := h.deps.Messages.InsertMessage(ctx, &msg); err != nil {
		return nil, apperrors.NewMessagePersistFailedError(err)
	}

	h.logger.Info("issue message posted", map[string]interface{}{
		"issueId":   issueID,
		"messageId": msg.ID,
		"role":      string(role),
	})

	return &Output{Message: msg}, nil
}

// authorRole maps the author onto the thread: the issue's own tenant posts
// as user, the property's landlord as landlord.
func authorRole(author *models.User, issue *models.IssueDetail) (models.Role, bool) {
	switch author.Role {
	case models.UserRoleTenant:
		return models.RoleUser, author.ID == issue.TenantID
	case models.UserRoleLandlord:
		return models.RoleLandlord, author.ID == issue.LandlordID
	}
	return "", false
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
