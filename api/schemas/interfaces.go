package schemas

import (
	"context"
	"time"
)

// -- Browser Interfaces --

// WaitStrategy names the readiness signal a scan waits for after navigation.
type WaitStrategy string

const (
	// WaitLoad returns as soon as the load event has fired.
	WaitLoad WaitStrategy = "load"
	// WaitNetworkIdle waits until the network has been quiet for a short
	// window, bounded by the scan timeout.
	WaitNetworkIdle WaitStrategy = "networkidle"
	// WaitDelay waits a fixed post-load delay.
	WaitDelay WaitStrategy = "delay"
)

// BrowserSession controls a single isolated browser tab. A session is
// exclusively owned by one in-flight scan at a time.
type BrowserSession interface {
	// ID returns the unique ID of the session.
	ID() string
	// Navigate loads a URL in the session's tab.
	Navigate(ctx context.Context, url string) error
	// ExtractLinks returns the href of every anchor on the current page.
	ExtractLinks(ctx context.Context) ([]string, error)
	// WaitForReady blocks until the configured readiness signal fires or the
	// timeout elapses.
	WaitForReady(ctx context.Context, strategy WaitStrategy, timeout time.Duration) error
	// Evaluate runs a script in the page and unmarshals its JSON result into
	// out.
	Evaluate(ctx context.Context, script string, out any) error
	// Close releases the tab.
	Close(ctx context.Context) error
}

// BrowserManager owns the browser process lifecycle and hands out isolated
// sessions.
type BrowserManager interface {
	NewSession(ctx context.Context) (BrowserSession, error)
	Shutdown(ctx context.Context) error
}

// -- Engine Interfaces --

// RuleEngine evaluates the page currently loaded in a session against the
// external accessibility rule catalog. The catalog and its evaluation
// semantics live outside this module.
type RuleEngine interface {
	Evaluate(ctx context.Context, session BrowserSession) (*RawResult, error)
}

// RawResult is the unmapped shape handed back by the rule engine adapter.
// It never travels past the violation collector.
type RawResult struct {
	Violations []RawViolation `json:"violations"`
	Passes     int            `json:"passes"`
	Incomplete int            `json:"incomplete"`
}

// RouteDiscoverer produces the bounded route set to scan.
type RouteDiscoverer interface {
	Discover(ctx context.Context) ([]Route, error)
}

// ScanOrchestrator drives the session pool over the discovered routes and
// returns results in discovery order.
type ScanOrchestrator interface {
	Scan(ctx context.Context, routes []Route) ([]ScanResult, error)
}
