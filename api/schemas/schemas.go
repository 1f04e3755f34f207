package schemas

import (
	"time"
)

// -- Route Schemas --

// Route is a normalized same-origin path scheduled for scanning during a
// single audit run. The path string is unique within one run's route set.
type Route struct {
	// Path is the normalized path (fragment stripped, pagination query
	// parameters stripped, default port removed).
	Path string `json:"path"`
	// DepthDiscovered records the BFS depth at which the route was first
	// seen. The homepage is depth 0.
	DepthDiscovered int `json:"depth_discovered"`
	// Source names where the route came from ("seed", "crawler", "sitemap",
	// "override").
	Source string `json:"source,omitempty"`
	// Errored marks routes whose navigation failed during crawl or scan.
	Errored bool `json:"errored"`
	// ErrorReason retains the underlying failure for the final accounting.
	ErrorReason string `json:"error_reason,omitempty"`
}

// -- Violation Schemas --

// ViolationNode is one DOM occurrence of a violation.
type ViolationNode struct {
	Selector string `json:"selector"`
	HTML     string `json:"html"`
}

// RawViolation is the per-route output of the rule engine, already mapped
// into our shape at the collector seam. It is transient: consumed by the
// normalizer and never persisted.
type RawViolation struct {
	RuleID  string          `json:"rule_id"`
	Impact  string          `json:"impact"`
	Message string          `json:"message"`
	Help    string          `json:"help,omitempty"`
	WCAG    []string        `json:"wcag,omitempty"`
	Nodes   []ViolationNode `json:"nodes"`
}

// ScanResult pairs a route with whatever the rule engine produced for it.
// Violations is nil when the scan errored.
type ScanResult struct {
	Route      Route          `json:"route"`
	Violations []RawViolation `json:"violations"`
	Errored    bool           `json:"errored"`
}

// -- Finding Schemas --

// Severity is one of the four ordered defect tiers used for scoring and
// triage. Values are lowercase to align with persisted ENUMs.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeveritySerious  Severity = "serious"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// Rank returns the ordering of a severity, highest first. Unknown values
// rank below minor so they sort last rather than panic.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeveritySerious:
		return 1
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 3
	default:
		return 4
	}
}

// Evidence is a captured HTML snippet proving one instance of a finding.
type Evidence struct {
	HTML string `json:"html"`
}

// NormalizedFinding is a deduplicated accessibility defect, the unit handed
// to renderers and persisted between runs. Uniqueness key across the run is
// (RuleID, canonicalized Message).
type NormalizedFinding struct {
	// ID is a deterministic hash of rule, selector and representative route,
	// stable across runs over an unchanged raw result set.
	ID     string `json:"id"`
	RuleID string `json:"rule_id"`

	Severity Severity `json:"severity"`
	Message  string   `json:"message"`

	// PrimarySelector is the simplified ("surgical") selector of the first
	// observed node.
	PrimarySelector string `json:"primary_selector"`
	// FullSelector keeps the untouched selector for debugging.
	FullSelector string `json:"full_selector,omitempty"`

	// Evidence holds at most a fixed cap of HTML instances; TotalInstances
	// still reflects every occurrence.
	Evidence       []Evidence `json:"evidence"`
	TotalInstances int        `json:"total_instances"`

	PagesAffected int      `json:"pages_affected"`
	AffectedURLs  []string `json:"affected_urls"`

	WCAG         []string `json:"wcag,omitempty"`
	FixAvailable bool     `json:"fix_available"`

	// PriorityScore is a triage ordering aid only; it does not feed the
	// compliance score.
	PriorityScore int `json:"priority_score"`
}

// -- Score Schemas --

// ComplianceScore is the 0-100 aggregate health metric with its grade label.
// It is a pure function of per-severity counts.
type ComplianceScore struct {
	Value int    `json:"value"`
	Grade string `json:"grade"`
}

// -- Payload Schemas --

// ErroredRoute is the explicit accounting of routes the audit could not test.
type ErroredRoute struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// AuditPayload is the structured output consumed by report renderers.
type AuditPayload struct {
	AuditID     string    `json:"audit_id"`
	Origin      string    `json:"origin"`
	GeneratedAt time.Time `json:"generated_at"`

	Findings []NormalizedFinding `json:"findings"`
	Routes   []Route             `json:"routes"`
	Score    ComplianceScore     `json:"score"`

	// ErroredRoutes lists routes that were discovered but not fully tested.
	// Renderers surface these as "not tested" rather than silently dropping
	// them.
	ErroredRoutes []ErroredRoute `json:"errored_routes"`

	Summary map[Severity]int `json:"summary"`
}

// CountBySeverity tallies findings into per-tier counts.
func CountBySeverity(findings []NormalizedFinding) map[Severity]int {
	summary := make(map[Severity]int, 4)
	for _, f := range findings {
		summary[f.Severity]++
	}
	return summary
}
