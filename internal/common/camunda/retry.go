// internal/common/camunda/retry.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"proco-workers/internal/common/errors"
)

// RetryPolicy bounds how often a gateway command is resent after a
// transient failure. Delays double from BaseDelay up to MaxDelay.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// CompletionRetry is used for complete-job commands. The job deadline in
// ctx still bounds the total time spent.
var CompletionRetry = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  200 * time.Millisecond,
	MaxDelay:   2 * time.Second,
}

// CompleteJob completes job with variables, resending on transient gateway
// errors. A variables encoding error is returned without sending.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, variables interface{}, policy RetryPolicy) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(variables)
	if err != nil {
		return errors.NewInternalError(fmt.Errorf("encode job variables: %w", err))
	}
	return SendWithRetry(ctx, policy, "complete-job", func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	})
}

// SendWithRetry calls send until it succeeds, fails permanently, runs out
// of attempts, or ctx is done. Failures come back as StandardErrors.
func SendWithRetry(ctx context.Context, policy RetryPolicy, operation string, send func(context.Context) error) error {
	delay := policy.BaseDelay
	for attempt := 1; ; attempt++ {
		err := send(ctx)
		if err == nil {
			return nil
		}
		if !isTransient(err) || attempt > policy.MaxRetries {
			return mapSendError(err, operation, attempt)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errors.NewTimeoutError("zeebe",
				fmt.Errorf("%s cancelled after %d attempts: %w", operation, attempt, ctx.Err()))
		}
		if delay *= 2; delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
}

var transientPhrases = []string{
	"connection refused",
	"connection reset",
	"deadline exceeded",
	"timeout",
	"unavailable",
	"broken pipe",
}

// isTransient trusts the gRPC status code when there is one and falls back
// to the message text for wrapped transport errors.
func isTransient(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	case codes.Unknown:
		msg := strings.ToLower(err.Error())
		for _, phrase := range transientPhrases {
			if strings.Contains(msg, phrase) {
				return true
			}
		}
	}
	return false
}

func mapSendError(err error, operation string, attempts int) error {
	wrapped := fmt.Errorf("%s failed after %d attempt(s): %w", operation, attempts, err)

	switch status.Code(err) {
	case codes.NotFound:
		return errors.NewResourceNotFoundError("zeebe", wrapped.Error())
	case codes.FailedPrecondition, codes.AlreadyExists:
		return errors.NewBusinessRuleError(wrapped.Error(), "Job is no longer activatable")
	case codes.PermissionDenied, codes.Unauthenticated:
		return errors.NewAuthenticationError(wrapped.Error())
	case codes.DeadlineExceeded:
		return errors.NewTimeoutError("zeebe", wrapped)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return errors.NewTimeoutError("zeebe", wrapped)
	case strings.Contains(msg, "not found"):
		return errors.NewResourceNotFoundError("zeebe", wrapped.Error())
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}
