package agent

import (
	"context"
	"errors"
	"fmt"

	"proco-workers/internal/models"
)

var ErrHistoryLoad = errors.New("HISTORY_LOAD_FAILED")

// HistoryLoader rebuilds a conversation thread, oldest message first.
type HistoryLoader struct {
	window int
}

func NewHistoryLoader(window int) *HistoryLoader {
	if window <= 0 {
		window = DefaultConfig().HistoryWindow
	}
	return &HistoryLoader{window: window}
}

func (l *HistoryLoader) Window() int { return l.window }

// Load returns every message linked to scope.IssueID, or, before an issue
// exists, the most recent unlinked messages for the tenant and property.
func (l *HistoryLoader) Load(ctx context.Context, store ConversationStore, scope models.Scope) ([]models.Message, error) {
	return l.LoadN(ctx, store, scope, l.window)
}

// LoadN is Load with an explicit window for scope reads.
func (l *HistoryLoader) LoadN(ctx context.Context, store ConversationStore, scope models.Scope, limit int) ([]models.Message, error) {
	if scope.HasIssue() {
		msgs, err := store.MessagesByIssue(ctx, scope.IssueID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHistoryLoad, err)
		}
		return msgs, nil
	}

	if limit <= 0 {
		limit = l.window
	}
	recent, err := store.RecentScopeMessages(ctx, scope.TenantID, scope.PropertyID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryLoad, err)
	}

	ordered := make([]models.Message, len(recent))
	for i, m := range recent {
		ordered[len(recent)-1-i] = m
	}
	return ordered, nil
}
