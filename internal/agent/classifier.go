package agent

import (
	"strings"

	"proco-workers/internal/models"
)

type keywordSet struct {
	category models.Category
	keywords []string
}

// Checked in order; the first set with a hit wins.
var categoryKeywords = []keywordSet{
	{models.CategoryHeating, []string{"heater", "heat", "furnace", "thermostat", "ac"}},
	{models.CategoryPlumbing, []string{"leak", "pipe", "sink", "toilet", "faucet", "drain"}},
	{models.CategoryElectrical, []string{"outlet", "breaker", "electric", "power", "light"}},
}

// Classify maps free text to a category by case-insensitive substring
// match. Text with no keyword is CategoryOther.
func Classify(text string) models.Category {
	normalized := strings.ToLower(text)
	if strings.TrimSpace(normalized) == "" {
		return models.CategoryOther
	}
	for _, set := range categoryKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(normalized, kw) {
				return set.category
			}
		}
	}
	return models.CategoryOther
}
