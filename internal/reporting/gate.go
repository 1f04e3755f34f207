package reporting

import (
	"fmt"
	"strings"

	"github.com/kestrelsec/a11yaudit/api/schemas"
	"github.com/kestrelsec/a11yaudit/internal/config"
)

// GateError reports which severity budgets a run exceeded. Callers translate
// it into a non-zero exit so CI can block merges on regressions.
type GateError struct {
	Breaches []string
}

func (e *GateError) Error() string {
	return fmt.Sprintf("severity gate failed: %s", strings.Join(e.Breaches, "; "))
}

// EvaluateGate checks per-severity finding counts against configured budgets.
// A budget of -1 means the tier is unlimited. Returns nil when the gate is
// disabled or every budget holds.
func EvaluateGate(cfg config.GateConfig, summary map[schemas.Severity]int) error {
	if !cfg.Enabled {
		return nil
	}

	budgets := []struct {
		severity schemas.Severity
		max      int
	}{
		{schemas.SeverityCritical, cfg.MaxCritical},
		{schemas.SeveritySerious, cfg.MaxSerious},
		{schemas.SeverityModerate, cfg.MaxModerate},
		{schemas.SeverityMinor, cfg.MaxMinor},
	}

	var breaches []string
	for _, b := range budgets {
		if b.max < 0 {
			continue
		}
		if count := summary[b.severity]; count > b.max {
			breaches = append(breaches, fmt.Sprintf("%s: %d found, %d allowed", b.severity, count, b.max))
		}
	}

	if len(breaches) > 0 {
		return &GateError{Breaches: breaches}
	}
	return nil
}
