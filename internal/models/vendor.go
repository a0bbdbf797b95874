// internal/models/vendor.go
package models

type Vendor struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      *string   `json:"email,omitempty"`
	Specialty  Specialty `json:"specialty"`
	HourlyRate float64   `json:"hourlyRate"`
	Rating     *float64  `json:"rating,omitempty"`
}
