package schemas

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityRankOrdering(t *testing.T) {
	t.Parallel()
	tiers := []Severity{SeverityMinor, SeverityCritical, SeverityModerate, SeveritySerious}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Rank() < tiers[j].Rank() })

	assert.Equal(t, []Severity{SeverityCritical, SeveritySerious, SeverityModerate, SeverityMinor}, tiers)
	assert.Greater(t, Severity("wat").Rank(), SeverityMinor.Rank(), "unknown severities sort last")
}

func TestCountBySeverity(t *testing.T) {
	t.Parallel()
	findings := []NormalizedFinding{
		{Severity: SeverityCritical},
		{Severity: SeverityCritical},
		{Severity: SeverityMinor},
	}

	counts := CountBySeverity(findings)
	assert.Equal(t, 2, counts[SeverityCritical])
	assert.Equal(t, 1, counts[SeverityMinor])
	assert.Equal(t, 0, counts[SeveritySerious])
}
