package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"proco-workers/internal/common/llm"
	"proco-workers/internal/common/logger"
	"proco-workers/internal/common/metrics"
	"proco-workers/internal/models"
)

var ErrVendorLookup = errors.New("VENDOR_LOOKUP_FAILED")

const tieBreakPrompt = `You help a property manager pick a maintenance vendor.
Choose exactly one vendor from the candidates. Favor the higher rating, but
accept a materially cheaper vendor when the rating gap is small.
Respond ONLY as JSON: {"vendor_id": "<id of the chosen candidate>"}`

var tieBreakSchema = &llm.ResponseSchema{
	Name:        "vendor_choice",
	Description: "The chosen vendor",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"vendor_id": map[string]interface{}{"type": "string"},
		},
		"required":             []interface{}{"vendor_id"},
		"additionalProperties": false,
	},
}

// VendorSelector picks one vendor for a category. The model only ever
// refines the choice among near-equal candidates; without it the result is
// the head of a fixed ordering.
type VendorSelector struct {
	model  llm.Client
	cfg    VendorSelectionConfig
	logger logger.Logger
}

func NewVendorSelector(model llm.Client, cfg VendorSelectionConfig, log logger.Logger) *VendorSelector {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = DefaultConfig().Vendor.MaxCandidates
	}
	return &VendorSelector{
		model:  model,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "vendor_selector"}),
	}
}

// Select returns nil only when no vendor exists at all. Errors come from the
// source, never from the model.
func (s *VendorSelector) Select(ctx context.Context, category models.Category, source VendorSource) (*models.Vendor, error) {
	specialty := models.SpecialtyFor(category)

	candidates, err := source.VendorsBySpecialty(ctx, specialty)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVendorLookup, err)
	}
	if len(candidates) == 0 {
		candidates, err = source.AllVendors(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVendorLookup, err)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ranked := RankVendors(candidates)
	head := ranked[0]

	plausible := s.plausible(ranked)
	if len(plausible) < 2 || !s.cfg.TieBreakEnabled || s.model == nil {
		return &head, nil
	}

	chosen, reason := s.tieBreak(ctx, category, plausible)
	if chosen == nil {
		metrics.AgentFallbacks.WithLabelValues("vendor_selector", reason).Inc()
		s.logger.Info("vendor tie-break fell back to ranking", map[string]interface{}{
			"reason":   reason,
			"vendorId": head.ID,
		})
		return &head, nil
	}
	return chosen, nil
}

// RankVendors sorts a copy of vendors by rating descending (unrated last),
// then hourly rate ascending, then name, then id.
func RankVendors(vendors []models.Vendor) []models.Vendor {
	ranked := append([]models.Vendor(nil), vendors...)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		ra, rb := ratingKey(a), ratingKey(b)
		if ra != rb {
			return ra > rb
		}
		if a.HourlyRate != b.HourlyRate {
			return a.HourlyRate < b.HourlyRate
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return ranked
}

func ratingKey(v models.Vendor) float64 {
	if v.Rating == nil {
		return math.Inf(-1)
	}
	return *v.Rating
}

// plausible is the prefix of ranked within the rating gap of the head,
// capped at MaxCandidates.
func (s *VendorSelector) plausible(ranked []models.Vendor) []models.Vendor {
	head := ranked[0]
	out := []models.Vendor{head}
	for _, v := range ranked[1:] {
		if len(out) >= s.cfg.MaxCandidates {
			break
		}
		switch {
		case head.Rating == nil:
			if v.Rating != nil {
				return out
			}
		case v.Rating == nil:
			return out
		case *head.Rating-*v.Rating > s.cfg.RatingGap+1e-9:
			return out
		}
		out = append(out, v)
	}
	return out
}

type tieBreakCandidate struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	HourlyRate float64  `json:"hourly_rate"`
	Rating     *float64 `json:"rating"`
}

func (s *VendorSelector) tieBreak(ctx context.Context, category models.Category, plausible []models.Vendor) (*models.Vendor, string) {
	list := make([]tieBreakCandidate, len(plausible))
	for i, v := range plausible {
		list[i] = tieBreakCandidate{ID: v.ID, Name: v.Name, HourlyRate: v.HourlyRate, Rating: v.Rating}
	}
	payload, _ := json.Marshal(list)

	raw, err := s.model.Complete(ctx, llm.Request{
		Purpose:     "vendor_tiebreak",
		Temperature: s.cfg.Temperature,
		Schema:      tieBreakSchema,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: tieBreakPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Issue category: %s\nCandidates: %s", category, payload)},
		},
	})
	if err != nil {
		return nil, "model_error"
	}

	var choice struct {
		VendorID string `json:"vendor_id"`
	}
	if err := llm.DecodeJSON(raw, &choice); err != nil || strings.TrimSpace(choice.VendorID) == "" {
		return nil, "unparseable"
	}

	id := strings.TrimSpace(choice.VendorID)
	for i := range plausible {
		if plausible[i].ID == id {
			v := plausible[i]
			return &v, ""
		}
	}
	return nil, "out_of_set"
}
