// Package llm talks to the inference endpoint used by the tenant agent.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"proco-workers/internal/common/config"
	"proco-workers/internal/common/logger"
	"proco-workers/internal/common/metrics"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// ResponseSchema asks the backend to constrain output to a JSON schema.
// Backends that cannot enforce it ignore it.
type ResponseSchema struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

type Request struct {
	// Purpose labels metrics, e.g. "reply", "summary", "vendor_tiebreak".
	Purpose     string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Schema      *ResponseSchema
}

// Client returns the raw text of the first completion.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

var (
	ErrTimeout     = errors.New("MODEL_TIMEOUT")
	ErrUnavailable = errors.New("MODEL_UNAVAILABLE")
	ErrEmpty       = errors.New("MODEL_EMPTY_RESPONSE")
)

// New builds the backend named by cfg.Provider and wraps it with latency
// metrics and debug logging.
func New(cfg config.GenAIConfig, log logger.Logger) (Client, error) {
	var (
		backend Client
		err     error
	)
	switch cfg.Provider {
	case "", "openai":
		backend, err = newOpenAIClient(cfg)
	case "http":
		backend, err = newGenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown genai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &instrumented{
		next:  backend,
		model: cfg.Model,
		log:   log.WithFields(map[string]interface{}{"component": "llm", "provider": cfg.Provider}),
	}, nil
}

type instrumented struct {
	next  Client
	model string
	log   logger.Logger
}

func (c *instrumented) Complete(ctx context.Context, req Request) (string, error) {
	purpose := req.Purpose
	if purpose == "" {
		purpose = "unspecified"
	}

	start := time.Now()
	text, err := c.next.Complete(ctx, req)
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	metrics.AgentModelCallDuration.WithLabelValues(purpose, outcome).Observe(elapsed.Seconds())

	fields := map[string]interface{}{
		"purpose":     purpose,
		"model":       c.model,
		"duration_ms": elapsed.Milliseconds(),
		"messages":    len(req.Messages),
	}
	if err != nil {
		fields["error"] = err.Error()
		c.log.Warn("model call failed", fields)
		return "", err
	}
	c.log.Debug("model call completed", fields)
	return text, nil
}

// classify maps transport failures onto ErrTimeout or ErrUnavailable.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
