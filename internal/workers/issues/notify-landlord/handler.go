// internal/workers/issues/notify-landlord/handler.go
package notifylandlord

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

	awsclients "proco-workers/internal/common/aws"
	"proco-workers/internal/common/camunda"
	apperrors "proco-workers/internal/common/errors"
	"proco-workers/internal/common/logger"
	"proco-workers/internal/common/metrics"
	"proco-workers/internal/common/validation"
	"proco-workers/internal/models"
	"proco-workers/internal/store"
)

const (
	TaskType = "notify-landlord"
)

type IssueReader interface {
	GetIssueDetail(ctx context.Context, id string) (*models.IssueDetail, error)
}

type Dependencies struct {
	Issues    IssueReader
	Email     awsclients.EmailAPI
	SMS       awsclients.PublishAPI
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
	if input == nil || strings.TrimSpace(input.IssueID) == "" {
		return nil, apperrors.NewInputValidationFailedError("issueId is required")
	}

	issue, err := h.deps.Issues.GetIssueDetail(ctx, input.IssueID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewIssueNotFoundError(input.IssueID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}

	output := &Output{
		NotificationID: uuid.New().String(),
		Status:         StatusDisabled,
		Channels:       []string{},
		SentAt:         h.now().UTC().Format(time.RFC3339),
	}

	subject := Subject(issue)
	body := Body(issue)

	var (
		attempted int
		lastErr   error
		lastChan  string
	)

	if h.config.EmailEnabled && h.deps.Email != nil && issue.LandlordEmail != "" {
		attempted++
		_, err := h.deps.Email.SendEmail(ctx, awsclients.Email{
			From:    h.config.FromEmail,
			To:      []string{issue.LandlordEmail},
			Subject: subject,
			Text:    body,
		}.Input())
		if err != nil {
			lastErr, lastChan = err, ChannelEmail
			h.logger.Error("email send failed", map[string]interface{}{
				"issueId": issue.ID,
				"error":   err.Error(),
			})
		} else {
			output.Channels = append(output.Channels, ChannelEmail)
		}
		recordNotification(ChannelEmail, err)
	}

	if h.config.SMSEnabled && h.deps.SMS != nil && h.config.TopicARN != "" {
		attempted++
		_, err := h.deps.SMS.Publish(ctx, awsclients.TopicMessage(h.config.TopicARN, subject, body, map[string]string{
			"category":   string(issue.Category),
			"landlordId": issue.LandlordID,
			"propertyId": issue.PropertyID,
		}))
		if err != nil {
			lastErr, lastChan = err, ChannelSMS
			h.logger.Error("alert publish failed", map[string]interface{}{
				"issueId": issue.ID,
				"error":   err.Error(),
			})
		} else {
			output.Channels = append(output.Channels, ChannelSMS)
		}
		recordNotification(ChannelSMS, err)
	}

	switch {
	case attempted == 0:
		h.logger.Info("no notification channel enabled", map[string]interface{}{"issueId": issue.ID})
	case len(output.Channels) == 0:
		// Nothing went out, so a retry cannot duplicate a delivery.
		return nil, apperrors.NewNotificationSendFailedError(lastChan, lastErr)
	case len(output.Channels) < attempted:
		output.Status = StatusFailed
	default:
		output.Status = StatusSent
	}

	return output, nil
}

// Subject is the landlord email subject for issue.
func Subject(issue *models.IssueDetail) string {
	return fmt.Sprintf("New maintenance issue: %s", issue.Category.Title())
}

// Body renders the plain-text alert: summary, address, estimate and vendor.
func Body(issue *models.IssueDetail) string {
	cost := "TBD"
	if issue.EstimatedCost != nil {
		cost = fmt.Sprintf("$%.2f", *issue.EstimatedCost)
	}
	vendor := "unassigned"
	if issue.VendorName != nil && *issue.VendorName != "" {
		vendor = *issue.VendorName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", issue.Summary)
	fmt.Fprintf(&b, "Property: %s\n", issue.PropertyAddress)
	fmt.Fprintf(&b, "Estimated cost: %s\n", cost)
	fmt.Fprintf(&b, "Vendor: %s\n", vendor)
	fmt.Fprintf(&b, "Issue ID: %s\n", issue.ID)
	return b.String()
}

func recordNotification(channel string, err error) {
	status := StatusSent
	if err != nil {
		status = StatusFailed
	}
	metrics.NotificationsSent.WithLabelValues(channel, status).Inc()
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
