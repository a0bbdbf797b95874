// internal/models/message.go
package models

import "time"

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleLandlord  Role = "landlord"
)

type Message struct {
	ID         string    `json:"id"`
	IssueID    *string   `json:"issueId,omitempty"`
	PropertyID *string   `json:"propertyId,omitempty"`
	TenantID   string    `json:"tenantId"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Scope identifies a conversation: the issue once one exists, otherwise
// the tenant and property pair.
type Scope struct {
	TenantID   string
	PropertyID string
	IssueID    string
}

func (s Scope) HasIssue() bool { return s.IssueID != "" }

// Key is stable per scope and used for advisory locking.
func (s Scope) Key() string {
	if s.HasIssue() {
		return "issue:" + s.IssueID
	}
	return "scope:" + s.TenantID + ":" + s.PropertyID
}
