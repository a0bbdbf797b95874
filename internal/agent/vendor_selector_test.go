package agent

import (
	"context"
	"errors"
	"testing"

	"proco-workers/internal/common/llm"
	"proco-workers/internal/common/logger"
	"proco-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectorConfig() VendorSelectionConfig {
	return VendorSelectionConfig{TieBreakEnabled: true, RatingGap: 0.5, MaxCandidates: 3}
}

func ids(vs []models.Vendor) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.ID
	}
	return out
}

// ==========================
// Deterministic ranking
// ==========================

func TestRankVendors(t *testing.T) {
	vendors := []models.Vendor{
		vendor("v-unrated-cheap", "Zed", models.SpecialtyHeating, 40, nil),
		vendor("v-4.5-pricey", "Bolt", models.SpecialtyHeating, 120, rating(4.5)),
		vendor("v-4.5-cheap", "Arc", models.SpecialtyHeating, 90, rating(4.5)),
		vendor("v-4.9", "Prime", models.SpecialtyHeating, 150, rating(4.9)),
		vendor("v-4.5-cheap-b", "Arc", models.SpecialtyHeating, 90, rating(4.5)),
		vendor("v-4.5-cheap-a", "Arc", models.SpecialtyHeating, 90, rating(4.5)),
		vendor("v-unrated-pricey", "Acme", models.SpecialtyHeating, 100, nil),
	}

	ranked := RankVendors(vendors)

	assert.Equal(t, []string{
		"v-4.9",
		"v-4.5-cheap", "v-4.5-cheap-a", "v-4.5-cheap-b",
		"v-4.5-pricey",
		"v-unrated-cheap", "v-unrated-pricey",
	}, ids(ranked))
	assert.Equal(t, "v-unrated-cheap", vendors[0].ID, "input slice is not reordered")
}

func TestVendorSelector_Select_Deterministic(t *testing.T) {
	tests := []struct {
		name     string
		category models.Category
		vendors  []models.Vendor
		wantID   string
		wantNil  bool
		wantAll  bool
	}{
		{
			name:     "top rated specialty match",
			category: models.CategoryHeating,
			vendors: []models.Vendor{
				vendor("h1", "Warm Co", models.SpecialtyHeating, 90, rating(4.2)),
				vendor("h2", "Heat Pros", models.SpecialtyHeating, 110, rating(4.8)),
				vendor("p1", "Pipe Pros", models.SpecialtyPlumbing, 50, rating(5.0)),
			},
			wantID: "h2",
		},
		{
			name:     "other maps to general",
			category: models.CategoryOther,
			vendors: []models.Vendor{
				vendor("g1", "Handy", models.SpecialtyGeneral, 60, nil),
				vendor("h1", "Heat Pros", models.SpecialtyHeating, 110, rating(4.8)),
			},
			wantID: "g1",
		},
		{
			name:     "falls back to every vendor",
			category: models.CategoryElectrical,
			vendors: []models.Vendor{
				vendor("p1", "Pipe Pros", models.SpecialtyPlumbing, 50, rating(3.0)),
				vendor("g1", "Handy", models.SpecialtyGeneral, 60, rating(4.1)),
			},
			wantID:  "g1",
			wantAll: true,
		},
		{
			name:     "rated beats unrated",
			category: models.CategoryPlumbing,
			vendors: []models.Vendor{
				vendor("p1", "Cheap", models.SpecialtyPlumbing, 10, nil),
				vendor("p2", "Rated", models.SpecialtyPlumbing, 200, rating(1.0)),
			},
			wantID: "p2",
		},
		{
			name:     "empty pool",
			category: models.CategoryHeating,
			wantNil:  true,
			wantAll:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeVendors{vendors: tt.vendors}
			s := NewVendorSelector(nil, selectorConfig(), logger.NewTestLogger(t))

			got, err := s.Select(context.Background(), tt.category, source)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, tt.wantID, got.ID)
			}
			assert.Equal(t, 1, source.bySpec)
			if tt.wantAll {
				assert.Equal(t, 1, source.all)
			} else {
				assert.Zero(t, source.all)
			}
		})
	}
}

func TestVendorSelector_Select_SourceError(t *testing.T) {
	s := NewVendorSelector(nil, selectorConfig(), logger.NewNoOpLogger())

	_, err := s.Select(context.Background(), models.CategoryHeating, &fakeVendors{err: errors.New("conn reset")})

	assert.ErrorIs(t, err, ErrVendorLookup)
}

// ==========================
// Plausible set
// ==========================

func TestVendorSelector_Plausible(t *testing.T) {
	tests := []struct {
		name    string
		gap     float64
		max     int
		vendors []models.Vendor
		want    []string
	}{
		{
			name: "within gap",
			gap:  0.5, max: 3,
			vendors: []models.Vendor{
				vendor("a", "A", models.SpecialtyHeating, 100, rating(4.8)),
				vendor("b", "B", models.SpecialtyHeating, 60, rating(4.3)),
				vendor("c", "C", models.SpecialtyHeating, 50, rating(4.2)),
			},
			want: []string{"a", "b"},
		},
		{
			name: "capped",
			gap:  1, max: 2,
			vendors: []models.Vendor{
				vendor("a", "A", models.SpecialtyHeating, 100, rating(5)),
				vendor("b", "B", models.SpecialtyHeating, 90, rating(5)),
				vendor("c", "C", models.SpecialtyHeating, 80, rating(5)),
			},
			want: []string{"c", "b"},
		},
		{
			name: "unrated excluded behind rated head",
			gap:  5, max: 3,
			vendors: []models.Vendor{
				vendor("a", "A", models.SpecialtyHeating, 100, rating(3)),
				vendor("b", "B", models.SpecialtyHeating, 10, nil),
			},
			want: []string{"a"},
		},
		{
			name: "all unrated",
			gap:  0, max: 3,
			vendors: []models.Vendor{
				vendor("a", "A", models.SpecialtyHeating, 100, nil),
				vendor("b", "B", models.SpecialtyHeating, 10, nil),
			},
			want: []string{"b", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewVendorSelector(nil, VendorSelectionConfig{RatingGap: tt.gap, MaxCandidates: tt.max}, logger.NewNoOpLogger())
			assert.Equal(t, tt.want, ids(s.plausible(RankVendors(tt.vendors))))
		})
	}
}

// ==========================
// Model tie-break
// ==========================

func tieVendors() []models.Vendor {
	return []models.Vendor{
		vendor("h-top", "Premium Heat", models.SpecialtyHeating, 150, rating(4.9)),
		vendor("h-cheap", "Budget Heat", models.SpecialtyHeating, 80, rating(4.6)),
		vendor("h-low", "Meh Heat", models.SpecialtyHeating, 40, rating(3.0)),
	}
}

func TestVendorSelector_TieBreak(t *testing.T) {
	tests := []struct {
		name     string
		model    *scriptedModel
		enabled  bool
		wantID   string
		wantCall bool
	}{
		{
			name:     "model picks cheaper plausible vendor",
			model:    newScriptedModel().on("vendor_tiebreak", `{"vendor_id":"h-cheap"}`),
			enabled:  true,
			wantID:   "h-cheap",
			wantCall: true,
		},
		{
			name:     "repaired JSON is accepted",
			model:    newScriptedModel().on("vendor_tiebreak", "```json\n{'vendor_id': 'h-cheap',}\n```"),
			enabled:  true,
			wantID:   "h-cheap",
			wantCall: true,
		},
		{
			name:     "id outside plausible set falls back",
			model:    newScriptedModel().on("vendor_tiebreak", `{"vendor_id":"h-low"}`),
			enabled:  true,
			wantID:   "h-top",
			wantCall: true,
		},
		{
			name:     "unknown id falls back",
			model:    newScriptedModel().on("vendor_tiebreak", `{"vendor_id":"nope"}`),
			enabled:  true,
			wantID:   "h-top",
			wantCall: true,
		},
		{
			name:     "prose falls back",
			model:    newScriptedModel().on("vendor_tiebreak", `I would go with Budget Heat.`),
			enabled:  true,
			wantID:   "h-top",
			wantCall: true,
		},
		{
			name:     "model error falls back",
			model:    newScriptedModel().fail("vendor_tiebreak", llm.ErrTimeout),
			enabled:  true,
			wantID:   "h-top",
			wantCall: true,
		},
		{
			name:    "disabled never calls the model",
			model:   newScriptedModel().on("vendor_tiebreak", `{"vendor_id":"h-cheap"}`),
			enabled: false,
			wantID:  "h-top",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := selectorConfig()
			cfg.TieBreakEnabled = tt.enabled
			s := NewVendorSelector(tt.model, cfg, logger.NewTestLogger(t))

			got, err := s.Select(context.Background(), models.CategoryHeating, &fakeVendors{vendors: tieVendors()})

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)

			calls := tt.model.calls("vendor_tiebreak")
			if !tt.wantCall {
				assert.Empty(t, calls)
				return
			}
			require.Len(t, calls, 1)
			prompt := calls[0].Messages[1].Content
			assert.Contains(t, prompt, "h-top")
			assert.Contains(t, prompt, "h-cheap")
			assert.NotContains(t, prompt, "h-low", "only plausible candidates are presented")
			assert.NotNil(t, calls[0].Schema)
		})
	}
}

func TestVendorSelector_SingleCandidateSkipsModel(t *testing.T) {
	model := newScriptedModel()
	s := NewVendorSelector(model, selectorConfig(), logger.NewNoOpLogger())

	got, err := s.Select(context.Background(), models.CategoryHeating, &fakeVendors{vendors: []models.Vendor{
		vendor("h1", "Only Heat", models.SpecialtyHeating, 100, rating(4.0)),
		vendor("h2", "Worse Heat", models.SpecialtyHeating, 20, rating(2.0)),
	}})

	require.NoError(t, err)
	assert.Equal(t, "h1", got.ID)
	assert.Empty(t, model.requests)
}
