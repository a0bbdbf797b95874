package agent

import (
	"context"
	"fmt"
	"strings"

	"proco-workers/internal/common/llm"
	"proco-workers/internal/common/logger"
	"proco-workers/internal/common/metrics"
	"proco-workers/internal/models"
)

const summaryPrompt = `You write maintenance issue summaries for landlords.
Write 3 to 5 sentences covering: what is wrong, when it started, what the
tenant reported, how severe it is, the estimated cost, and the suggested
vendor. Write "unknown" for anything the conversation does not state.
Return only the summary text.`

// SummaryInput is what the landlord-facing summary is written from.
// Message may carry the photo description; RawMessage is the tenant's text
// as stored, used to spot it at the end of History.
type SummaryInput struct {
	Message       string
	RawMessage    string
	Category      models.Category
	History       []models.Message
	EstimatedCost *float64
	Vendor        *models.Vendor
}

// Summarizer writes the landlord-facing issue summary.
type Summarizer struct {
	model       llm.Client
	maxChars    int
	temperature float64
	logger      logger.Logger
}

func NewSummarizer(model llm.Client, maxChars int, temperature float64, log logger.Logger) *Summarizer {
	if maxChars <= 0 {
		maxChars = DefaultConfig().SummaryMaxChars
	}
	return &Summarizer{
		model:       model,
		maxChars:    maxChars,
		temperature: temperature,
		logger:      log.WithFields(map[string]interface{}{"component": "summary"}),
	}
}

// Fallback is "<Category> issue: <message>", the message cut to maxChars
// runes with "..." appended when longer.
func (s *Summarizer) Fallback(message string, category models.Category) string {
	text := message
	if runes := []rune(message); len(runes) > s.maxChars {
		text = string(runes[:s.maxChars]) + "..."
	}
	return fmt.Sprintf("%s issue: %s", category.Title(), text)
}

// Generate prefers a model-written summary and falls back to Fallback on
// any failure. It never fails.
func (s *Summarizer) Generate(ctx context.Context, in SummaryInput) string {
	if s.model == nil {
		return s.Fallback(in.Message, in.Category)
	}

	text, err := s.model.Complete(ctx, llm.Request{
		Purpose:     "summary",
		Temperature: s.temperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summaryPrompt},
			{Role: llm.RoleUser, Content: summaryContext(in)},
		},
	})
	if err != nil {
		metrics.AgentFallbacks.WithLabelValues("summary", "model_error").Inc()
		s.logger.Warn("summary model failed, using fallback", map[string]interface{}{"error": err.Error()})
		return s.Fallback(in.Message, in.Category)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		metrics.AgentFallbacks.WithLabelValues("summary", "empty").Inc()
		return s.Fallback(in.Message, in.Category)
	}
	return text
}

func summaryContext(in SummaryInput) string {
	var b strings.Builder
	history := in.History
	raw := in.RawMessage
	if raw == "" {
		raw = in.Message
	}
	if alreadySubmitted(history, raw) {
		history = history[:len(history)-1]
	}

	b.WriteString("Conversation:\n")
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", speaker(m.Role), m.Content)
	}
	fmt.Fprintf(&b, "Tenant: %s\n\n", in.Message)

	fmt.Fprintf(&b, "Category: %s\n", in.Category)
	fmt.Fprintf(&b, "Estimated cost: %s\n", CostText(in.EstimatedCost))
	if in.Vendor != nil {
		fmt.Fprintf(&b, "Suggested vendor: %s\n", in.Vendor.Name)
	} else {
		b.WriteString("Suggested vendor: unknown\n")
	}
	return b.String()
}

func speaker(r models.Role) string {
	switch r {
	case models.RoleUser:
		return "Tenant"
	case models.RoleLandlord:
		return "Landlord"
	default:
		return "Assistant"
	}
}
