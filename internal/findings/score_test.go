package findings

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kestrelsec/a11yaudit/api/schemas"
	"github.com/kestrelsec/a11yaudit/internal/config"
)

func defaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Weights: map[string]int{
			"critical": 25,
			"serious":  10,
			"moderate": 3,
			"minor":    1,
		},
		Thresholds: []config.GradeThreshold{
			{MinScore: 90, Label: "AA-ready"},
			{MinScore: 75, Label: "B"},
			{MinScore: 50, Label: "C"},
			{MinScore: 25, Label: "D"},
		},
	}
}

func TestScorerScoreCounts(t *testing.T) {
	t.Parallel()
	scorer := NewScorer(defaultScoringConfig())

	testCases := []struct {
		name      string
		counts    map[schemas.Severity]int
		wantValue int
		wantGrade string
	}{
		{
			name:      "no findings is a perfect score",
			counts:    map[schemas.Severity]int{},
			wantValue: 100,
			wantGrade: "AA-ready",
		},
		{
			name:      "one critical",
			counts:    map[schemas.Severity]int{schemas.SeverityCritical: 1},
			wantValue: 75,
			wantGrade: "B",
		},
		{
			name: "mixed tiers",
			counts: map[schemas.Severity]int{
				schemas.SeverityCritical: 1,
				schemas.SeveritySerious:  2,
				schemas.SeverityModerate: 3,
				schemas.SeverityMinor:    4,
			},
			wantValue: 100 - 25 - 20 - 9 - 4,
			wantGrade: "D",
		},
		{
			name:      "score clamps at zero",
			counts:    map[schemas.Severity]int{schemas.SeverityCritical: 1000},
			wantValue: 0,
			wantGrade: "F",
		},
		{
			name:      "boundary value lands on its grade",
			counts:    map[schemas.Severity]int{schemas.SeverityMinor: 10},
			wantValue: 90,
			wantGrade: "AA-ready",
		},
		{
			name:      "just below a boundary drops a grade",
			counts:    map[schemas.Severity]int{schemas.SeverityMinor: 11},
			wantValue: 89,
			wantGrade: "B",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := scorer.ScoreCounts(tc.counts)
			assert.Equal(t, tc.wantValue, got.Value)
			assert.Equal(t, tc.wantGrade, got.Grade)
		})
	}
}

func TestScorerIsOrderIndependentAndIdempotent(t *testing.T) {
	t.Parallel()
	scorer := NewScorer(defaultScoringConfig())

	findings := []schemas.NormalizedFinding{
		{Severity: schemas.SeverityMinor},
		{Severity: schemas.SeverityCritical},
		{Severity: schemas.SeveritySerious},
	}
	reversed := []schemas.NormalizedFinding{findings[2], findings[1], findings[0]}

	first := scorer.Score(findings)
	assert.Equal(t, first, scorer.Score(reversed))
	assert.Equal(t, first, scorer.Score(findings))
}

func TestScorerUnknownSeverityCarriesNoWeight(t *testing.T) {
	t.Parallel()
	scorer := NewScorer(defaultScoringConfig())

	got := scorer.ScoreCounts(map[schemas.Severity]int{schemas.Severity("bogus"): 50})
	assert.Equal(t, 100, got.Value)
}

func TestScorerThresholdOrderDoesNotMatter(t *testing.T) {
	t.Parallel()
	cfg := defaultScoringConfig()
	// Shuffle the threshold declaration order; the scorer sorts internally.
	cfg.Thresholds = []config.GradeThreshold{
		{MinScore: 25, Label: "D"},
		{MinScore: 90, Label: "AA-ready"},
		{MinScore: 50, Label: "C"},
		{MinScore: 75, Label: "B"},
	}
	scorer := NewScorer(cfg)

	got := scorer.ScoreCounts(map[schemas.Severity]int{})
	assert.Equal(t, "AA-ready", got.Grade)
}
