// internal/models/category.go
package models

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is the maintenance category assigned to an issue.
type Category string

const (
	CategoryHeating    Category = "heating"
	CategoryPlumbing   Category = "plumbing"
	CategoryElectrical Category = "electrical"
	CategoryOther      Category = "other"
)

// Categories lists every category in classifier priority order.
var Categories = []Category{CategoryHeating, CategoryPlumbing, CategoryElectrical, CategoryOther}

func (c Category) Valid() bool {
	switch c {
	case CategoryHeating, CategoryPlumbing, CategoryElectrical, CategoryOther:
		return true
	}
	return false
}

// Title is the display form, e.g. "Heating".
func (c Category) Title() string {
	return cases.Title(language.English).String(string(c))
}

// Specialty is the trade a vendor is registered under.
type Specialty string

const (
	SpecialtyHeating    Specialty = "heating"
	SpecialtyPlumbing   Specialty = "plumbing"
	SpecialtyElectrical Specialty = "electrical"
	SpecialtyGeneral    Specialty = "general"
)

// SpecialtyFor maps a category to the vendor specialty that services it.
// Anything without a dedicated trade goes to general.
func SpecialtyFor(c Category) Specialty {
	switch c {
	case CategoryHeating:
		return SpecialtyHeating
	case CategoryPlumbing:
		return SpecialtyPlumbing
	case CategoryElectrical:
		return SpecialtyElectrical
	default:
		return SpecialtyGeneral
	}
}
