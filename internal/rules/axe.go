// Package rules adapts the external accessibility rule engine (an axe-style
// checker script) into the fixed result shape the rest of the pipeline
// consumes. The rule catalog and its evaluation semantics are not ours; the
// external shape never leaves this package.
package rules

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kestrelsec/a11yaudit/api/schemas"
	"github.com/kestrelsec/a11yaudit/internal/config"
)

// runExpr invokes the injected checker and strips its result down to what we
// actually consume in one round trip.
const runExpr = `axe.run(document, { resultTypes: ['violations'] }).then(r => ({
	violations: r.violations,
	passes: r.passes ? r.passes.length : 0,
	incomplete: r.incomplete ? r.incomplete.length : 0
}))`

// axeNode is the engine's per-occurrence shape.
type axeNode struct {
	Target []string `json:"target"`
	HTML   string   `json:"html"`
}

// axeViolation is the engine's per-rule shape.
type axeViolation struct {
	ID          string    `json:"id"`
	Impact      string    `json:"impact"`
	Description string    `json:"description"`
	Help        string    `json:"help"`
	Tags        []string  `json:"tags"`
	Nodes       []axeNode `json:"nodes"`
}

type axeResults struct {
	Violations []axeViolation `json:"violations"`
	Passes     int            `json:"passes"`
	Incomplete int            `json:"incomplete"`
}

// Runner injects the checker script into a loaded page and maps its results.
// Implements schemas.RuleEngine.
type Runner struct {
	script string
	logger *zap.Logger
}

// NewRunner loads the checker script from the configured path.
func NewRunner(cfg config.RulesConfig, logger *zap.Logger) (*Runner, error) {
	if cfg.ScriptPath == "" {
		return nil, fmt.Errorf("rules.script_path is required: point it at the accessibility checker bundle")
	}
	script, err := os.ReadFile(cfg.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules script: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{script: string(script), logger: logger.Named("rules")}, nil
}

// Evaluate runs the checker against the page currently loaded in the session.
func (r *Runner) Evaluate(ctx context.Context, session schemas.BrowserSession) (*schemas.RawResult, error) {
	var present bool
	if err := session.Evaluate(ctx, `typeof window.axe !== 'undefined'`, &present); err != nil {
		return nil, fmt.Errorf("checker presence probe failed: %w", err)
	}
	if !present {
		if err := session.Evaluate(ctx, r.script, nil); err != nil {
			return nil, fmt.Errorf("checker injection failed: %w", err)
		}
	}

	var raw axeResults
	if err := session.Evaluate(ctx, runExpr, &raw); err != nil {
		return nil, fmt.Errorf("checker run failed: %w", err)
	}

	return mapResults(raw), nil
}

// mapResults converts the engine shape into ours immediately, at the seam.
func mapResults(raw axeResults) *schemas.RawResult {
	result := &schemas.RawResult{
		Passes:     raw.Passes,
		Incomplete: raw.Incomplete,
	}

	for _, v := range raw.Violations {
		violation := schemas.RawViolation{
			RuleID:  v.ID,
			Impact:  v.Impact,
			Message: v.Description,
			Help:    v.Help,
			WCAG:    wcagTags(v.Tags),
		}
		for _, n := range v.Nodes {
			violation.Nodes = append(violation.Nodes, schemas.ViolationNode{
				Selector: strings.Join(n.Target, " "),
				HTML:     n.HTML,
			})
		}
		result.Violations = append(result.Violations, violation)
	}
	return result
}

// wcagTags keeps only the WCAG criterion tags from the engine's tag list.
func wcagTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if strings.HasPrefix(t, "wcag") {
			out = append(out, t)
		}
	}
	return out
}
