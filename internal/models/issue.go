// internal/models/issue.go
package models

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Issue is a tenant-reported maintenance problem awaiting landlord review.
type Issue struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenantId"`
	PropertyID    string     `json:"propertyId"`
	Category      Category   `json:"category"`
	Summary       string     `json:"summary"`
	Description   string     `json:"description"`
	Status        Status     `json:"status"`
	VendorID      *string    `json:"vendorId,omitempty"`
	EstimatedCost *float64   `json:"estimatedCost,omitempty"`
	AppointmentAt *time.Time `json:"appointmentAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// IssueDetail is an issue joined with what a landlord notification needs.
type IssueDetail struct {
	Issue
	PropertyAddress string  `json:"propertyAddress"`
	LandlordID      string  `json:"landlordId"`
	LandlordName    string  `json:"landlordName"`
	LandlordEmail   string  `json:"landlordEmail"`
	VendorName      *string `json:"vendorName,omitempty"`
}
