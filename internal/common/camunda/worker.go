// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"proco-workers/internal/common/config"
	"proco-workers/internal/common/metrics"
	"proco-workers/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// JobHandler is implemented by every worker package's Handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// HandlerFunc adapts a plain function to JobHandler.
type HandlerFunc func(client worker.JobClient, job entities.Job)

func (f HandlerFunc) Handle(client worker.JobClient, job entities.Job) { f(client, job) }

// Worker is an open Zeebe job subscription for one task type.
type Worker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// NewWorker opens a job worker whose handler runs inside a span and feeds
// the worker_* metrics.
func NewWorker(
	client zbc.Client,
	taskType string,
	cfg config.WorkerConfig,
	handler JobHandler,
	obs *observability.Observability,
	logger *zap.Logger,
) *Worker {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxActive := cfg.MaxJobsActive
	if maxActive <= 0 {
		maxActive = 5
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler, obs, logger)).
		MaxJobsActive(maxActive).
		Timeout(timeout).
		Name(taskType).
		Open()

	logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", maxActive),
		zap.Duration("timeout", timeout),
	)

	return &Worker{
		worker:   jobWorker,
		logger:   logger,
		taskType: taskType,
	}
}

// Instrument wraps handler with the active-jobs gauge, duration histograms,
// a span and panic recovery.
func Instrument(taskType string, handler JobHandler, obs *observability.Observability, logger *zap.Logger) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		active := metrics.WorkerJobsActive.WithLabelValues(taskType)
		active.Inc()

		ctx, span := obs.StartSpan(context.Background(), taskType,
			attribute.Int64("job.key", job.Key),
			attribute.Int64("process.instance.key", job.ProcessInstanceKey),
		)

		status := "handled"
		defer func() {
			if r := recover(); r != nil {
				status = "panic"
				logger.Error("handler panicked",
					zap.String("taskType", taskType),
					zap.Int64("jobKey", job.Key),
					zap.Any("panic", r),
				)
				metrics.WorkerJobsFailed.WithLabelValues(taskType, "PANIC").Inc()
				failCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_, _ = client.NewFailJobCommand().
					JobKey(job.Key).
					Retries(job.Retries - 1).
					ErrorMessage("worker panic").
					Send(failCtx)
			}

			elapsed := time.Since(start)
			active.Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
			obs.RecordJobDuration(ctx, taskType, elapsed)
			obs.RecordJobProcessed(ctx, taskType, status)
			span.SetAttributes(attribute.String("job.status", status))
			span.End()

			logger.Debug("job handled",
				zap.String("taskType", taskType),
				zap.Int64("jobKey", job.Key),
				zap.String("status", status),
				zap.String("traceId", span.SpanContext().TraceID().String()),
				zap.Duration("elapsed", elapsed),
			)
		}()

		handler.Handle(client, job)
	}
}

func (w *Worker) TaskType() string { return w.taskType }

// Close stops polling. The shared zbc.Client is closed by its owner.
func (w *Worker) Close() {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	w.worker.Close()
	w.worker.AwaitClose()
}
