package orchestrator

import (
	"context"
	"fmt"

	"github.com/kestrelsec/a11yaudit/api/schemas"
)

// Collector is the sole seam between the scan loop and the rule engine. It
// invokes the engine against a loaded session and hands back violations in
// our fixed shape; nothing downstream ever sees the engine's own result
// format.
type Collector struct {
	engine schemas.RuleEngine
}

// NewCollector wraps a rule engine.
func NewCollector(engine schemas.RuleEngine) *Collector {
	return &Collector{engine: engine}
}

// Collect evaluates the page currently loaded in the session. Errors here
// are rule-engine failures and are recoverable at the route level.
func (c *Collector) Collect(ctx context.Context, session schemas.BrowserSession) ([]schemas.RawViolation, error) {
	result, err := c.engine.Evaluate(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("rule engine evaluation: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("rule engine returned no result")
	}
	return result.Violations, nil
}
