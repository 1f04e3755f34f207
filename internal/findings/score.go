package findings

import (
	"math"
	"sort"

	"github.com/kestrelsec/a11yaudit/api/schemas"
	"github.com/kestrelsec/a11yaudit/internal/config"
)

// failingGrade is returned when no threshold matches, which covers a score
// of zero.
const failingGrade = "F"

// Scorer computes the weighted 0-100 compliance score. It depends only on
// per-tier counts: order-independent and idempotent by construction.
type Scorer struct {
	weights    map[schemas.Severity]int
	thresholds []config.GradeThreshold
}

// NewScorer builds a scorer from injected scoring configuration.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	weights := make(map[schemas.Severity]int, len(cfg.Weights))
	for k, w := range cfg.Weights {
		weights[schemas.Severity(k)] = w
	}

	thresholds := make([]config.GradeThreshold, len(cfg.Thresholds))
	copy(thresholds, cfg.Thresholds)
	sort.SliceStable(thresholds, func(i, j int) bool {
		return thresholds[i].MinScore > thresholds[j].MinScore
	})

	return &Scorer{weights: weights, thresholds: thresholds}
}

// Score aggregates the findings and scores the resulting counts.
func (s *Scorer) Score(findings []schemas.NormalizedFinding) schemas.ComplianceScore {
	return s.ScoreCounts(schemas.CountBySeverity(findings))
}

// ScoreCounts applies the weight table to per-tier counts. The result is
// always within [0, 100].
func (s *Scorer) ScoreCounts(counts map[schemas.Severity]int) schemas.ComplianceScore {
	penalty := 0.0
	for tier, count := range counts {
		penalty += float64(count * s.weights[tier])
	}

	value := int(math.Round(100 - penalty))
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}

	return schemas.ComplianceScore{Value: value, Grade: s.grade(value)}
}

// grade scans the ordered thresholds highest first and returns the first
// label whose floor the value clears.
func (s *Scorer) grade(value int) string {
	for _, t := range s.thresholds {
		if value >= t.MinScore {
			return t.Label
		}
	}
	return failingGrade
}
