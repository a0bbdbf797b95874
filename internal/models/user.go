// internal/models/user.go
package models

type UserRole string

const (
	UserRoleTenant   UserRole = "tenant"
	UserRoleLandlord UserRole = "landlord"
)

type User struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	Role       UserRole `json:"role"`
	Name       string   `json:"name"`
	PropertyID *string  `json:"propertyId,omitempty"`
}

type Property struct {
	ID         string   `json:"id"`
	Address    string   `json:"address"`
	LandlordID string   `json:"landlordId"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}
