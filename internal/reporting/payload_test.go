package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelsec/a11yaudit/api/schemas"
)

func samplePayload() *schemas.AuditPayload {
	findings := []schemas.NormalizedFinding{
		{
			ID:              "1a2b3c4d5e6f7a8b",
			RuleID:          "image-alt",
			Severity:        schemas.SeverityCritical,
			Message:         "Images must have alternate text",
			PrimarySelector: `id="hero"`,
			FullSelector:    "img#hero",
			Evidence:        []schemas.Evidence{{HTML: `<img src="hero.png">`}},
			TotalInstances:  4,
			PagesAffected:   2,
			AffectedURLs:    []string{"/", "/about"},
			WCAG:            []string{"wcag2a", "wcag111"},
			FixAvailable:    true,
			PriorityScore:   67,
		},
		{
			ID:              "ffeeddccbbaa0099",
			RuleID:          "html-lang",
			Severity:        schemas.SeverityMinor,
			Message:         "html element must have a lang attribute",
			PrimarySelector: "<html",
			TotalInstances:  1,
			PagesAffected:   1,
			AffectedURLs:    []string{"/"},
			PriorityScore:   15,
		},
	}
	results := []schemas.ScanResult{
		{Route: schemas.Route{Path: "/"}},
		{Route: schemas.Route{Path: "/about"}},
		{Route: schemas.Route{Path: "/broken", Errored: true, ErrorReason: "navigate: timeout"}, Errored: true},
	}
	return BuildPayload("audit-123", "https://example.com", results, findings, schemas.ComplianceScore{Value: 74, Grade: "C"})
}

func TestBuildPayload(t *testing.T) {
	t.Parallel()
	payload := samplePayload()

	assert.Equal(t, "audit-123", payload.AuditID)
	assert.Equal(t, "https://example.com", payload.Origin)
	assert.WithinDuration(t, time.Now().UTC(), payload.GeneratedAt, time.Minute)

	assert.Len(t, payload.Routes, 3)
	assert.Len(t, payload.Findings, 2)

	require.Len(t, payload.ErroredRoutes, 1)
	assert.Equal(t, "/broken", payload.ErroredRoutes[0].Path)
	assert.Equal(t, "navigate: timeout", payload.ErroredRoutes[0].Reason)

	assert.Equal(t, 1, payload.Summary[schemas.SeverityCritical])
	assert.Equal(t, 1, payload.Summary[schemas.SeverityMinor])
	assert.Equal(t, 0, payload.Summary[schemas.SeveritySerious])
}

func TestBuildPayloadDefaultsErrorReason(t *testing.T) {
	t.Parallel()
	results := []schemas.ScanResult{
		{Route: schemas.Route{Path: "/x"}, Errored: true},
	}
	payload := BuildPayload("id", "https://example.com", results, nil, schemas.ComplianceScore{Value: 100, Grade: "AA-ready"})

	require.Len(t, payload.ErroredRoutes, 1)
	assert.Equal(t, "scan failed", payload.ErroredRoutes[0].Reason)
}

func TestNewAuditIDIsUnique(t *testing.T) {
	t.Parallel()
	assert.NotEqual(t, NewAuditID(), NewAuditID())
}
