// internal/workers/issues/search-issues/models.go
package searchissues

import "proco-workers/internal/search"

type Input struct {
	Query      string `json:"query,omitempty"`
	Category   string `json:"category,omitempty"`
	Status     string `json:"status,omitempty"`
	PropertyID string `json:"propertyId,omitempty"`
	TenantID   string `json:"tenantId,omitempty"`
	From       int    `json:"from,omitempty"`
	Size       int    `json:"size,omitempty"`
}

type Output struct {
	Issues    []search.IssueDocument `json:"issues"`
	TotalHits int64                  `json:"totalHits"`
	Took      int64                  `json:"took"`
}
