package reporting

import (
	"time"

	"github.com/google/uuid"

	"github.com/kestrelsec/a11yaudit/api/schemas"
)

// NewAuditID mints the identifier stamped onto a single audit run.
func NewAuditID() string {
	return uuid.NewString()
}

// BuildPayload assembles the renderer-facing payload from the pipeline
// outputs. Errored routes are surfaced explicitly so the report can list what
// was not tested instead of silently shrinking the route set.
func BuildPayload(auditID, origin string, results []schemas.ScanResult, findings []schemas.NormalizedFinding, score schemas.ComplianceScore) *schemas.AuditPayload {
	payload := &schemas.AuditPayload{
		AuditID:     auditID,
		Origin:      origin,
		GeneratedAt: time.Now().UTC(),
		Findings:    findings,
		Score:       score,
		Summary:     schemas.CountBySeverity(findings),
	}

	for _, res := range results {
		payload.Routes = append(payload.Routes, res.Route)
		if res.Errored || res.Route.Errored {
			reason := res.Route.ErrorReason
			if reason == "" {
				reason = "scan failed"
			}
			payload.ErroredRoutes = append(payload.ErroredRoutes, schemas.ErroredRoute{
				Path:   res.Route.Path,
				Reason: reason,
			})
		}
	}
	return payload
}
