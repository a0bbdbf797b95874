package agent

import (
	"proco-workers/internal/common/config"
)

// Config tunes one Agent. Zero values are replaced by DefaultConfig's.
type Config struct {
	HistoryWindow      int
	DefaultReply       string
	ReplyTemperature   float64
	SummaryTemperature float64
	SummaryMaxChars    int
	Confirmation       ConfirmationConfig
	Vendor             VendorSelectionConfig
}

type ConfirmationConfig struct {
	Exact     []string
	Phrases   []string
	Negations []string
}

type VendorSelectionConfig struct {
	TieBreakEnabled bool
	RatingGap       float64
	MaxCandidates   int
	Temperature     float64
}

var (
	defaultExactConfirmations = []string{
		"yes", "yes please", "yeah", "yep", "yup", "sure", "ok", "okay",
		"confirm", "confirmed", "go ahead", "please do", "do it", "proceed",
		"sounds good", "escalate", "please escalate", "go for it", "absolutely", "correct",
	}
	defaultConfirmationPhrases = []string{
		"please escalate", "escalate it", "escalate this", "go ahead", "yes please",
		"go for it", "please proceed", "i confirm", "you can escalate",
		"notify the landlord", "let the landlord know",
	}
	defaultNegations = []string{
		"not", "don't", "dont", "never", "no", "won't", "wont", "can't", "cannot", "shouldn't",
	}
)

func DefaultConfig() Config {
	return Config{
		HistoryWindow:      12,
		DefaultReply:       "Thanks! I've logged your issue.",
		ReplyTemperature:   0.7,
		SummaryTemperature: 0.2,
		SummaryMaxChars:    80,
		Confirmation: ConfirmationConfig{
			Exact:     append([]string(nil), defaultExactConfirmations...),
			Phrases:   append([]string(nil), defaultConfirmationPhrases...),
			Negations: append([]string(nil), defaultNegations...),
		},
		Vendor: VendorSelectionConfig{
			TieBreakEnabled: true,
			RatingGap:       0.5,
			MaxCandidates:   3,
		},
	}
}

// ConfigFromApp maps the agent and genai sections of the app config.
func ConfigFromApp(app *config.Config) Config {
	cfg := Config{
		HistoryWindow:      app.Agent.HistoryWindow,
		DefaultReply:       app.Agent.DefaultReply,
		ReplyTemperature:   app.APIs.GenAI.Temperature,
		SummaryTemperature: app.APIs.GenAI.SummaryTemperature,
		SummaryMaxChars:    app.Agent.SummaryMaxChars,
		Confirmation: ConfirmationConfig{
			Exact:     app.Agent.Confirmation.Exact,
			Phrases:   app.Agent.Confirmation.Phrases,
			Negations: app.Agent.Confirmation.Negations,
		},
		Vendor: VendorSelectionConfig{
			TieBreakEnabled: app.Agent.Vendor.TieBreakEnabled,
			RatingGap:       app.Agent.Vendor.RatingGap,
			MaxCandidates:   app.Agent.Vendor.MaxCandidates,
			Temperature:     app.APIs.GenAI.TieBreakTemperature,
		},
	}
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = d.HistoryWindow
	}
	if c.DefaultReply == "" {
		c.DefaultReply = d.DefaultReply
	}
	if c.SummaryMaxChars <= 0 {
		c.SummaryMaxChars = d.SummaryMaxChars
	}
	if len(c.Confirmation.Exact) == 0 {
		c.Confirmation.Exact = d.Confirmation.Exact
	}
	if len(c.Confirmation.Phrases) == 0 {
		c.Confirmation.Phrases = d.Confirmation.Phrases
	}
	if len(c.Confirmation.Negations) == 0 {
		c.Confirmation.Negations = d.Confirmation.Negations
	}
	if c.Vendor.RatingGap < 0 {
		c.Vendor.RatingGap = d.Vendor.RatingGap
	}
	if c.Vendor.MaxCandidates <= 0 {
		c.Vendor.MaxCandidates = d.Vendor.MaxCandidates
	}
	return c
}
