// internal/workers/issues/search-issues/handler.go
package searchissues

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"proco-workers/internal/common/camunda"
	apperrors "proco-workers/internal/common/errors"
	"proco-workers/internal/common/logger"
	"proco-workers/internal/common/metrics"
	"proco-workers/internal/common/validation"
	"proco-workers/internal/models"
	"proco-workers/internal/search"
)

const (
	TaskType = "search-issues"
)

type Searcher interface {
	Name() string
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

type Handler struct {
	config     *Config
	index      Searcher
	validator  *validation.Schema
	logger     logger.Logger
	errHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, index Searcher, validator *validation.Schema, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		index:      index,
		validator:  validator,
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
	if h.validator != nil {
		if result := h.validator.ValidateJSON(variables); !result.Valid {
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
	if err := validateFilters(input); err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, h.config.QueryTimeout)
	defer cancel()

	result, err := h.index.Search(queryCtx, search.Query{
		Text:       strings.TrimSpace(input.Query),
		Category:   input.Category,
		Status:     input.Status,
		PropertyID: input.PropertyID,
		TenantID:   input.TenantID,
		From:       input.From,
		Size:       input.Size,
	})
	if err != nil {
		metrics.IssueSearches.WithLabelValues("error").Inc()
		return nil, h.mapSearchError(err)
	}
	metrics.IssueSearches.WithLabelValues("ok").Inc()

	h.logger.Debug("issue search completed", map[string]interface{}{
		"totalHits": result.TotalHits,
		"took":      result.Took,
	})

	return &Output{
		Issues:    result.Issues,
		TotalHits: result.TotalHits,
		Took:      result.Took,
	}, nil
}

func validateFilters(input *Input) error {
	if input.Category != "" && !models.Category(input.Category).Valid() {
		return apperrors.NewInputValidationFailedError(fmt.Sprintf("unknown category %q", input.Category))
	}
	if input.Status != "" && !models.Status(input.Status).Valid() {
		return apperrors.NewInputValidationFailedError(fmt.Sprintf("unknown status %q", input.Status))
	}
	if input.From < 0 || input.Size < 0 {
		return apperrors.NewInputValidationFailedError("from and size must not be negative")
	}
	return nil
}

func (h *Handler) mapSearchError(err error) error {
	switch {
	case errors.Is(err, search.ErrIndexNotFound):
		return apperrors.NewIndexNotFoundError(h.index.Name())
	case errors.Is(err, search.ErrSearchTimeout):
		return apperrors.NewSearchTimeoutError(h.index.Name())
	default:
		return apperrors.NewSearchQueryFailedError(h.index.Name(), err)
	}
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
