package findings

import (
	"strings"

	"github.com/kestrelsec/a11yaudit/api/schemas"
)

// impactMap translates the rule engine's impact vocabulary onto our four
// tiers. Unknown impacts map to the lowest tier; never reject.
var impactMap = map[string]schemas.Severity{
	"critical": schemas.SeverityCritical,
	"serious":  schemas.SeveritySerious,
	"moderate": schemas.SeverityModerate,
	"minor":    schemas.SeverityMinor,
}

// MapImpact converts a raw impact string into a severity tier.
func MapImpact(impact string) schemas.Severity {
	if sev, ok := impactMap[strings.ToLower(strings.TrimSpace(impact))]; ok {
		return sev
	}
	return schemas.SeverityMinor
}
