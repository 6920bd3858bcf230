// Package risk classifies betting intents by stake size. The gate is pure
// and deterministic: no I/O, no clock, no state, so the same intent always
// yields the same assessment and the caller can recompute it on every intent
// change for free.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/daredevil-core/core"
)

// Thresholds are the tier boundaries. Comparisons are strict, so a stake
// exactly on a boundary stays in the lower tier.
type Thresholds struct {
	Moderate decimal.Decimal // above this is at least moderate
	High     decimal.Decimal // above this is at least high
	Extreme  decimal.Decimal // above this is extreme
}

// DefaultThresholds returns the production boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Moderate: decimal.NewFromInt(100),
		High:     decimal.NewFromInt(500),
		Extreme:  decimal.NewFromInt(1000),
	}
}

// Monotonic reports whether the boundaries are strictly increasing, which
// the tier ordering depends on.
func (t Thresholds) Monotonic() bool {
	return t.Moderate.IsPositive() &&
		t.High.GreaterThan(t.Moderate) &&
		t.Extreme.GreaterThan(t.High)
}

// verifiedConfidenceFloor mirrors the extractor's model floor. Intents
// scored below it came from the regex path or arrived unscored, and earn an
// extra verification step once real money is on the line.
const verifiedConfidenceFloor = 0.8

// Gate assesses intents against a fixed set of thresholds.
type Gate struct {
	thresholds Thresholds
}

// NewGate builds a gate, falling back to defaults when the given thresholds
// are not strictly increasing.
func NewGate(t Thresholds) *Gate {
	if !t.Monotonic() {
		t = DefaultThresholds()
	}
	return &Gate{thresholds: t}
}

// Assess classifies the intent's stake. MayAutoProceed is false for high and
// extreme tiers; callers must then surface the warnings and collect an
// explicit acknowledgment before committing. Nothing downstream may override
// that.
func (g *Gate) Assess(in core.BettingIntent) core.RiskAssessment {
	amount := in.Amount
	currency := in.CurrencyOrDefault()

	var a core.RiskAssessment
	switch {
	case amount.GreaterThan(g.thresholds.Extreme):
		a.Tier = core.RiskExtreme
		a.MayAutoProceed = false
		a.Rationale = append(a.Rationale,
			fmt.Sprintf("stake %s %s exceeds the extreme threshold of %s", amount, currency, g.thresholds.Extreme))
		a.Warnings = append(a.Warnings,
			"bet only what you can lose",
			"this stake requires an explicit acknowledgment before it is committed")
	case amount.GreaterThan(g.thresholds.High):
		a.Tier = core.RiskHigh
		a.MayAutoProceed = false
		a.Rationale = append(a.Rationale,
			fmt.Sprintf("stake %s %s exceeds the high threshold of %s", amount, currency, g.thresholds.High))
		a.Warnings = append(a.Warnings,
			"this stake requires an explicit acknowledgment before it is committed")
	case amount.GreaterThan(g.thresholds.Moderate):
		a.Tier = core.RiskModerate
		a.MayAutoProceed = true
		a.Rationale = append(a.Rationale,
			fmt.Sprintf("stake %s %s is above the advisory threshold of %s", amount, currency, g.thresholds.Moderate))
	default:
		a.Tier = core.RiskLow
		a.MayAutoProceed = true
		a.Rationale = append(a.Rationale,
			fmt.Sprintf("stake %s %s is within the low tier", amount, currency))
	}

	// Unverified extraction plus real exposure earns an extra check. Low
	// stakes stay frictionless regardless of how they were parsed.
	if in.Confidence < verifiedConfidenceFloor && a.Tier != core.RiskLow {
		a.Warnings = append(a.Warnings,
			"this bet was parsed without model confidence; double-check amount and competitor")
		a.MayAutoProceed = false
	}

	if in.RiskTolerance == core.ToleranceConservative && a.Tier.Level() >= core.RiskHigh.Level() {
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("a %s stake sits outside your stated conservative profile", a.Tier))
	}

	return a
}
