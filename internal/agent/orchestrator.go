package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"proco-workers/internal/common/llm"
	"proco-workers/internal/common/logger"
	"proco-workers/internal/common/metrics"
	"proco-workers/internal/common/validation"
	"proco-workers/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrModelUnavailable = errors.New("MODEL_UNAVAILABLE")
	ErrModelTimeout     = errors.New("MODEL_TIMEOUT")
	ErrIssueCreate      = errors.New("ISSUE_CREATE_FAILED")
)

// ConversationState is derived per turn and never stored.
type ConversationState string

const (
	StateGathering                ConversationState = "gathering"
	StateReadyPendingConfirmation ConversationState = "ready_pending_confirmation"
	StateEscalated                ConversationState = "escalated"
)

// Turn is one inbound tenant message.
type Turn struct {
	TenantID         string
	PropertyID       string
	Message          string
	ImageDescription string
	IssueID          string
}

type Result struct {
	Reply         string
	IssueID       string
	Escalated     bool
	Ready         bool
	State         ConversationState
	Category      models.Category
	EstimatedCost *float64
	VendorID      *string
}

// Agent runs conversational turns. It holds no per-conversation state and is
// safe for concurrent use.
type Agent struct {
	cfg        Config
	model      llm.Client
	history    *HistoryLoader
	vendors    *VendorSelector
	gate       *Gate
	summarizer *Summarizer
	replyCheck *validation.Schema
	logger     logger.Logger
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() string
}

type Option func(*Agent)

// WithClock overrides the time source used for issue timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithIDGenerator overrides issue id generation.
func WithIDGenerator(newID func() string) Option {
	return func(a *Agent) { a.newID = newID }
}

func New(cfg Config, model llm.Client, log logger.Logger, opts ...Option) *Agent {
	cfg = cfg.withDefaults()
	log = log.WithFields(map[string]interface{}{"component": "agent"})

	a := &Agent{
		cfg:        cfg,
		model:      model,
		history:    NewHistoryLoader(cfg.HistoryWindow),
		vendors:    NewVendorSelector(model, cfg.Vendor, log),
		gate:       NewGate(cfg.Confirmation),
		summarizer: NewSummarizer(model, cfg.SummaryMaxChars, cfg.SummaryTemperature, log),
		replyCheck: validation.MustCompile(replySchema),
		logger:     log,
		tracer:     otel.Tracer("proco-workers/agent"),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) History() *HistoryLoader { return a.history }
func (a *Agent) Gate() *Gate             { return a.gate }

// Run handles one turn. conv must be scoped to the caller's transaction; on
// error nothing the agent wrote should be committed.
func (a *Agent) Run(ctx context.Context, conv ConversationStore, vendors VendorSource, turn Turn) (*Result, error) {
	ctx, span := a.tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.String("tenant.id", turn.TenantID),
		attribute.String("property.id", turn.PropertyID),
		attribute.Bool("issue.known", turn.IssueID != ""),
	))
	defer span.End()

	result, err := a.run(ctx, conv, vendors, turn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("conversation.state", string(result.State)),
		attribute.String("issue.category", string(result.Category)),
		attribute.Bool("issue.escalated", result.Escalated),
	)
	metrics.AgentTurns.WithLabelValues(string(result.State)).Inc()
	return result, nil
}

func (a *Agent) run(ctx context.Context, conv ConversationStore, vendors VendorSource, turn Turn) (*Result, error) {
	log := a.logger.WithFields(map[string]interface{}{
		"tenantId":   turn.TenantID,
		"propertyId": turn.PropertyID,
	})

	scope := models.Scope{TenantID: turn.TenantID, PropertyID: turn.PropertyID, IssueID: turn.IssueID}
	history, err := a.history.Load(ctx, conv, scope)
	if err != nil {
		return nil, err
	}

	augmented := augment(turn.Message, turn.ImageDescription)
	category := Classify(classificationText(turn.Message, turn.ImageDescription))

	vendor, err := a.vendors.Select(ctx, category, vendors)
	if err != nil {
		return nil, err
	}

	var cost *float64
	var vendorID *string
	if vendor != nil {
		id := vendor.ID
		vendorID = &id
		if c, err := EstimateCost(vendor.HourlyRate, category); err == nil {
			cost = &c
		} else {
			log.Warn("vendor rate unusable, cost left TBD", map[string]interface{}{
				"vendorId": vendor.ID,
				"error":    err.Error(),
			})
		}
	}

	raw, err := a.model.Complete(ctx, llm.Request{
		Purpose:     "reply",
		Messages:    buildMessages(history, turn.Message, augmented, category, cost),
		Temperature: a.cfg.ReplyTemperature,
		Schema:      replyResponseSchema,
	})
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrModelTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	reply, ready := a.parseReply(raw)

	result := &Result{
		IssueID:       turn.IssueID,
		Ready:         ready,
		Category:      category,
		EstimatedCost: cost,
		VendorID:      vendorID,
	}

	if turn.IssueID == "" && a.gate.Allow(ready, turn.Message) {
		issueID, created, err := a.escalate(ctx, conv, scope, history, turn.Message, augmented, category, vendor, cost)
		if err != nil {
			return nil, err
		}
		result.IssueID = issueID
		result.Escalated = created
		if created {
			metrics.AgentEscalations.WithLabelValues(string(category)).Inc()
		}
		log.Info("conversation escalated", map[string]interface{}{
			"issueId":  issueID,
			"created":  created,
			"category": string(category),
		})
	} else if ready && turn.IssueID == "" {
		log.Debug("model ready but tenant has not confirmed", nil)
	}

	result.Reply = strings.TrimSpace(reply)
	if result.Reply == "" {
		result.Reply = a.cfg.DefaultReply
	}
	result.State = deriveState(result.IssueID, ready)
	return result, nil
}

// escalate creates the issue for scope, or adopts one a concurrent turn
// created since the window began, and links the scope's unlinked messages.
func (a *Agent) escalate(
	ctx context.Context,
	conv ConversationStore,
	scope models.Scope,
	history []models.Message,
	rawMessage, description string,
	category models.Category,
	vendor *models.Vendor,
	cost *float64,
) (string, bool, error) {
	since := a.now()
	if len(history) > 0 && history[0].CreatedAt.Before(since) {
		since = history[0].CreatedAt
	}

	existing, found, err := conv.ScopeIssueSince(ctx, scope.TenantID, scope.PropertyID, since)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrIssueCreate, err)
	}

	issueID := existing
	created := false
	if !found {
		issue := &models.Issue{
			ID:            a.newID(),
			TenantID:      scope.TenantID,
			PropertyID:    scope.PropertyID,
			Category:      category,
			Description:   description,
			Status:        models.StatusPending,
			EstimatedCost: cost,
			CreatedAt:     a.now().UTC(),
		}
		if vendor != nil {
			id := vendor.ID
			issue.VendorID = &id
		}
		issue.Summary = a.summarizer.Generate(ctx, SummaryInput{
			Message:       description,
			RawMessage:    rawMessage,
			Category:      category,
			History:       history,
			EstimatedCost: cost,
			Vendor:        vendor,
		})

		if err := conv.CreateIssue(ctx, issue); err != nil {
			return "", false, fmt.Errorf("%w: %v", ErrIssueCreate, err)
		}
		issueID = issue.ID
		created = true
	}

	if _, err := conv.LinkScopeMessages(ctx, scope.TenantID, scope.PropertyID, issueID); err != nil {
		return "", false, fmt.Errorf("%w: backfill: %v", ErrIssueCreate, err)
	}
	return issueID, created, nil
}

// parseReply reads {response, ready_to_create}. Output that is not a
// conforming object is never treated as ready.
func (a *Agent) parseReply(raw string) (string, bool) {
	var doc map[string]interface{}
	if err := llm.DecodeJSON(raw, &doc); err != nil || doc == nil {
		metrics.AgentFallbacks.WithLabelValues("reply", "raw_text").Inc()
		return strings.TrimSpace(raw), false
	}

	if a.replyCheck.Validate(doc).Valid {
		response, _ := doc["response"].(string)
		ready, _ := doc["ready_to_create"].(bool)
		return response, ready
	}

	metrics.AgentFallbacks.WithLabelValues("reply", "schema_mismatch").Inc()
	if response, ok := doc["response"].(string); ok {
		return response, false
	}
	return strings.TrimSpace(raw), false
}

func deriveState(issueID string, ready bool) ConversationState {
	switch {
	case issueID != "":
		return StateEscalated
	case ready:
		return StateReadyPendingConfirmation
	default:
		return StateGathering
	}
}
