// internal/workers/tenant-chat/load-conversation/models.go
package loadconversation

import "proco-workers/internal/models"

type Input struct {
	IssueID    string `json:"issueId,omitempty"`
	TenantID   string `json:"tenantId,omitempty"`
	PropertyID string `json:"propertyId,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type Output struct {
	Messages []models.Message `json:"messages"`
	Count    int              `json:"count"`
}
