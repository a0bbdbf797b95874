package agent

import (
	"errors"
	"fmt"
	"math"

	"proco-workers/internal/models"
)

var ErrInvalidHourlyRate = errors.New("INVALID_HOURLY_RATE")

const defaultHours = 1.0

var hoursByCategory = map[models.Category]float64{
	models.CategoryHeating:    2.0,
	models.CategoryPlumbing:   1.5,
	models.CategoryElectrical: 2.5,
	models.CategoryOther:      1.0,
}

// EstimateCost returns rate times the category's labour hours, rounded to
// cents. The rate must be finite and positive.
func EstimateCost(hourlyRate float64, category models.Category) (float64, error) {
	if math.IsNaN(hourlyRate) || math.IsInf(hourlyRate, 0) || hourlyRate <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidHourlyRate, hourlyRate)
	}
	hours, ok := hoursByCategory[category]
	if !ok {
		hours = defaultHours
	}
	return math.Round(hourlyRate*hours*100) / 100, nil
}

// CostText renders an estimate for prompts and notifications.
func CostText(cost *float64) string {
	if cost == nil {
		return "TBD"
	}
	return fmt.Sprintf("$%.2f", *cost)
}
