package findings

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kestrelsec/a11yaudit/api/schemas"
)

// ErrMalformedViolation signals a rule-engine integration defect: a violation
// arrived without its required fields. The whole normalization run fails.
var ErrMalformedViolation = errors.New("malformed raw violation")

// NormalizerConfig tunes evidence capping and the priority-score formula.
type NormalizerConfig struct {
	// EvidenceCap is the maximum HTML instances kept per finding.
	EvidenceCap int
	// InstancePointCap bounds the instance-count contribution to priority.
	InstancePointCap int
	// InstanceScale multiplies log2(instances+1).
	InstanceScale float64
	// FixBonus is added when the rule engine supplied remediation help.
	FixBonus int
	// SeverityPoints is the base priority per tier.
	SeverityPoints map[schemas.Severity]int
}

// DefaultNormalizerConfig returns the stock tuning.
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		EvidenceCap:      3,
		InstancePointCap: 20,
		InstanceScale:    5,
		FixBonus:         5,
		SeverityPoints: map[schemas.Severity]int{
			schemas.SeverityCritical: 50,
			schemas.SeveritySerious:  35,
			schemas.SeverityModerate: 20,
			schemas.SeverityMinor:    10,
		},
	}
}

// Normalizer canonicalizes raw per-route violations into the deduplicated
// finding set handed to scoring and rendering.
type Normalizer struct {
	cfg    NormalizerConfig
	logger *zap.Logger
}

// NewNormalizer creates a normalizer with the given tuning.
func NewNormalizer(cfg NormalizerConfig, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EvidenceCap <= 0 {
		cfg.EvidenceCap = 3
	}
	return &Normalizer{cfg: cfg, logger: logger.Named("normalizer")}
}

// mergeState accumulates one finding across routes before finalization.
type mergeState struct {
	finding     schemas.NormalizedFinding
	urlSet      map[string]struct{}
	repRoute    string
	fullWCAG    map[string]struct{}
	wcagOrdered []string
}

// Normalize merges every scan result's violations across pages. Two
// violations sharing (ruleID, canonicalized message) collapse into one
// finding regardless of which routes they came from. Errored results are
// skipped; their accounting happens in the payload, not here.
func (n *Normalizer) Normalize(results []schemas.ScanResult) ([]schemas.NormalizedFinding, error) {
	merged := make(map[string]*mergeState)
	var order []string

	for _, res := range results {
		if res.Errored || res.Violations == nil {
			continue
		}
		for _, v := range res.Violations {
			if err := validate(v); err != nil {
				return nil, err
			}

			key := v.RuleID + "\x1f" + canonicalMessage(v.Message)
			state, ok := merged[key]
			if !ok {
				primary := v.Nodes[0].Selector
				state = &mergeState{
					finding: schemas.NormalizedFinding{
						RuleID:          v.RuleID,
						Severity:        MapImpact(v.Impact),
						Message:         canonicalMessage(v.Message),
						PrimarySelector: SimplifySelector(primary),
						FullSelector:    primary,
					},
					urlSet:   make(map[string]struct{}),
					fullWCAG: make(map[string]struct{}),
					repRoute: res.Route.Path,
				}
				merged[key] = state
				order = append(order, key)
			}

			// Any merged occurrence carrying help text flips the fix flag.
			if v.Help != "" {
				state.finding.FixAvailable = true
			}

			state.finding.TotalInstances += len(v.Nodes)
			for _, node := range v.Nodes {
				if len(state.finding.Evidence) < n.cfg.EvidenceCap {
					state.finding.Evidence = append(state.finding.Evidence, schemas.Evidence{HTML: node.HTML})
				}
			}
			if _, seen := state.urlSet[res.Route.Path]; !seen {
				state.urlSet[res.Route.Path] = struct{}{}
				state.finding.AffectedURLs = append(state.finding.AffectedURLs, res.Route.Path)
			}
			for _, tag := range v.WCAG {
				if _, seen := state.fullWCAG[tag]; !seen {
					state.fullWCAG[tag] = struct{}{}
					state.wcagOrdered = append(state.wcagOrdered, tag)
				}
			}
		}
	}

	findings := make([]schemas.NormalizedFinding, 0, len(order))
	for _, key := range order {
		state := merged[key]
		f := state.finding
		f.PagesAffected = len(f.AffectedURLs)
		f.WCAG = state.wcagOrdered
		f.ID = findingID(f.RuleID, f.PrimarySelector, state.repRoute)
		f.PriorityScore = n.priorityScore(f)
		findings = append(findings, f)
	}

	// Deterministic triage order: highest tier first, then priority, then ID
	// as the stable tiebreak.
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.Rank() != findings[j].Severity.Rank() {
			return findings[i].Severity.Rank() < findings[j].Severity.Rank()
		}
		if findings[i].PriorityScore != findings[j].PriorityScore {
			return findings[i].PriorityScore > findings[j].PriorityScore
		}
		return findings[i].ID < findings[j].ID
	})

	n.logger.Info("Normalized findings",
		zap.Int("raw_results", len(results)), zap.Int("findings", len(findings)))
	return findings, nil
}

// priorityScore ranks a finding for triage. Not the compliance score.
func (n *Normalizer) priorityScore(f schemas.NormalizedFinding) int {
	score := n.cfg.SeverityPoints[f.Severity]

	instancePoints := int(math.Round(math.Log2(float64(f.TotalInstances)+1) * n.cfg.InstanceScale))
	if instancePoints > n.cfg.InstancePointCap {
		instancePoints = n.cfg.InstancePointCap
	}
	score += instancePoints

	if f.FixAvailable {
		score += n.cfg.FixBonus
	}
	return score
}

// validate enforces the required RawViolation fields.
func validate(v schemas.RawViolation) error {
	switch {
	case v.RuleID == "":
		return fmt.Errorf("%w: missing rule ID", ErrMalformedViolation)
	case strings.TrimSpace(v.Message) == "":
		return fmt.Errorf("%w: rule %s has no message", ErrMalformedViolation, v.RuleID)
	case len(v.Nodes) == 0:
		return fmt.Errorf("%w: rule %s has no nodes", ErrMalformedViolation, v.RuleID)
	}
	return nil
}

// canonicalMessage collapses whitespace; the merge key otherwise relies on
// exact string equality, so messages differing only in embedded numeric
// detail stay separate findings.
func canonicalMessage(msg string) string {
	return strings.Join(strings.Fields(msg), " ")
}

// findingID derives the deterministic finding ID. Re-normalizing an
// unchanged raw result set reproduces identical IDs, so runs can be diffed.
func findingID(ruleID, primarySelector, representativeRoute string) string {
	sum := sha256.Sum256([]byte(ruleID + "|" + primarySelector + "|" + representativeRoute))
	return hex.EncodeToString(sum[:8])
}
