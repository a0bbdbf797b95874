// internal/workers/tenant-chat/process-tenant-message/models.go
package processtenantmessage

type Input struct {
	TenantID         string `json:"tenantId"`
	Message          string `json:"message"`
	ImageDescription string `json:"imageDescription,omitempty"`
	IssueID          string `json:"issueId,omitempty"`
	PropertyID       string `json:"propertyId,omitempty"`
}

type Output struct {
	Response          string   `json:"response"`
	IssueCreated      bool     `json:"issueCreated"`
	Escalated         bool     `json:"escalated"`
	IssueID           string   `json:"issueId,omitempty"`
	ConversationState string   `json:"conversationState"`
	Category          string   `json:"category"`
	EstimatedCost     *float64 `json:"estimatedCost"`
}
