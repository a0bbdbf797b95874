package agent

import (
	"strings"
	"unicode"
)

// Gate decides whether a turn may escalate. The model's readiness flag is
// necessary but never sufficient: the tenant's own message must carry an
// explicit confirmation.
type Gate struct {
	exact     map[string]struct{}
	phrases   [][]string
	negations map[string]struct{}
}

func NewGate(cfg ConfirmationConfig) *Gate {
	g := &Gate{
		exact:     make(map[string]struct{}, len(cfg.Exact)),
		negations: make(map[string]struct{}, len(cfg.Negations)),
	}
	for _, e := range cfg.Exact {
		if n := normalizeConfirmation(e); n != "" {
			g.exact[n] = struct{}{}
		}
	}
	for _, p := range cfg.Phrases {
		if words := strings.Fields(normalizeConfirmation(p)); len(words) > 0 {
			g.phrases = append(g.phrases, words)
		}
	}
	for _, n := range cfg.Negations {
		if w := normalizeConfirmation(n); w != "" {
			g.negations[w] = struct{}{}
		}
	}
	return g
}

// Allow is true only when the model is ready and the message confirms.
func (g *Gate) Allow(modelReady bool, message string) bool {
	return modelReady && g.Confirmed(message)
}

// Confirmed reports whether message is an explicit go-ahead: either the
// whole message is a known confirmation, or one of its clauses contains a
// confirmation phrase with no negation anywhere before it in that clause.
// "but" starts a fresh clause.
func (g *Gate) Confirmed(message string) bool {
	normalized := normalizeConfirmation(message)
	if normalized == "" {
		return false
	}
	if _, ok := g.exact[normalized]; ok {
		return true
	}

	for _, clause := range splitClauses(message) {
		if g.clauseConfirms(strings.Fields(normalizeConfirmation(clause))) {
			return true
		}
	}
	return false
}

func (g *Gate) clauseConfirms(words []string) bool {
	negated := false
	for i, w := range words {
		if w == "but" {
			negated = false
			continue
		}
		if _, ok := g.negations[w]; ok {
			negated = true
			continue
		}
		if negated {
			continue
		}
		for _, phrase := range g.phrases {
			if i+len(phrase) <= len(words) && wordsEqual(words[i:i+len(phrase)], phrase) {
				return true
			}
		}
	}
	return false
}

// splitClauses cuts s at sentence and clause punctuation.
func splitClauses(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', ';', ':', '.', '!', '?', '\n':
			return true
		}
		return false
	})
}

// normalizeConfirmation lower-cases s, turns punctuation other than
// apostrophes into spaces and collapses whitespace.
func normalizeConfirmation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '’':
			b.WriteRune('\'')
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func wordsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
