package agent

import (
	"context"
	"time"

	"proco-workers/internal/models"
)

// VendorSource lists vendors ordered by rating descending, unrated last.
type VendorSource interface {
	VendorsBySpecialty(ctx context.Context, specialty models.Specialty) ([]models.Vendor, error)
	AllVendors(ctx context.Context) ([]models.Vendor, error)
}

// ConversationStore is the transaction-scoped persistence handle a turn
// reads and writes through.
type ConversationStore interface {
	// MessagesByIssue returns the issue's messages oldest first.
	MessagesByIssue(ctx context.Context, issueID string) ([]models.Message, error)
	// RecentScopeMessages returns up to limit messages not yet linked to an
	// issue, newest first.
	RecentScopeMessages(ctx context.Context, tenantID, propertyID string, limit int) ([]models.Message, error)
	// ScopeIssueSince serialises escalations for the scope for the rest of
	// the transaction and reports an issue created at or after since.
	ScopeIssueSince(ctx context.Context, tenantID, propertyID string, since time.Time) (string, bool, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	// LinkScopeMessages assigns issueID to the scope's unlinked messages.
	LinkScopeMessages(ctx context.Context, tenantID, propertyID, issueID string) (int64, error)
}
