// Package core holds the shared domain types for the wager pipeline:
// intents, contests, wagers, risk assessments, and the failure taxonomy.
package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency identifies what a wager amount is denominated in.
type Currency string

const (
	CurrencyCORE Currency = "CORE" // chain-native token
	CurrencyUSDC Currency = "USDC"
	CurrencyUSDT Currency = "USDT"
	CurrencyUSD  Currency = "USD" // fiat quote, settled as stable
)

// DefaultCurrency is assumed when the user never names one.
const DefaultCurrency = CurrencyCORE

// ParseCurrency normalizes free-form currency tokens ("$", "usd", "bucks")
// into a Currency. The second return is false for unrecognized tokens.
func ParseCurrency(s string) (Currency, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CORE":
		return CurrencyCORE, true
	case "USDC":
		return CurrencyUSDC, true
	case "USDT", "TETHER":
		return CurrencyUSDT, true
	case "USD", "$", "DOLLAR", "DOLLARS", "BUCK", "BUCKS":
		return CurrencyUSD, true
	}
	return "", false
}

// IsNative reports whether the currency is the chain-native token.
func (c Currency) IsNative() bool { return c == CurrencyCORE }

// RiskTolerance is the user's self-declared appetite, collected only for
// large bets and never required.
type RiskTolerance string

const (
	ToleranceConservative RiskTolerance = "conservative"
	ToleranceModerate     RiskTolerance = "moderate"
	ToleranceAggressive   RiskTolerance = "aggressive"
)

// ParseRiskTolerance matches a free-form answer against the tolerance set.
func ParseRiskTolerance(s string) (RiskTolerance, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "conservative", "safe", "careful":
		return ToleranceConservative, true
	case "moderate", "balanced", "medium":
		return ToleranceModerate, true
	case "aggressive", "risky", "bold":
		return ToleranceAggressive, true
	}
	return "", false
}

// BettingIntent is the structured representation of what the user wants to
// wager. Fields fill in gradually during the dialogue; amount, competitor and
// sport are required before commit.
type BettingIntent struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      Currency        `json:"currency,omitempty"`
	Competitor    string          `json:"competitor,omitempty"`
	Sport         string          `json:"sport,omitempty"`
	RiskTolerance RiskTolerance   `json:"riskTolerance,omitempty"`
	Confidence    float64         `json:"confidence,omitempty"`
}

// HasAmount reports whether a positive stake has been captured.
func (i BettingIntent) HasAmount() bool { return i.Amount.IsPositive() }

// HasCompetitor reports whether a competitor has been captured.
func (i BettingIntent) HasCompetitor() bool { return strings.TrimSpace(i.Competitor) != "" }

// HasSport reports whether a sport has been captured.
func (i BettingIntent) HasSport() bool { return strings.TrimSpace(i.Sport) != "" }

// Complete reports whether every required slot is filled.
func (i BettingIntent) Complete() bool {
	return i.HasAmount() && i.HasCompetitor() && i.HasSport()
}

// CurrencyOrDefault returns the captured currency, or the native token when
// the user never named one.
func (i BettingIntent) CurrencyOrDefault() Currency {
	if i.Currency == "" {
		return DefaultCurrency
	}
	return i.Currency
}

// Summary renders the intent for confirmation prompts and logs.
func (i BettingIntent) Summary() string {
	return fmt.Sprintf("%s %s on %s (%s)",
		i.Amount.String(), i.CurrencyOrDefault(), i.Competitor, i.Sport)
}

// Competitor is a known participant from the reference tables.
type Competitor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Sport string `json:"sport"`
}

// QuestionKind discriminates how a guiding question's answer is validated.
type QuestionKind string

const (
	QuestionFreeText     QuestionKind = "freeText"
	QuestionNumeric      QuestionKind = "numeric"
	QuestionChoice       QuestionKind = "choice"
	QuestionConfirmation QuestionKind = "confirmation"
)

// GuidingQuestion is the single question the dialogue engine asks per turn.
// Generated fresh every turn and never persisted.
type GuidingQuestion struct {
	ID       string       `json:"id"`
	Prompt   string       `json:"prompt"`
	Kind     QuestionKind `json:"kind"`
	Options  []string     `json:"options,omitempty"`
	Required bool         `json:"required"`
}

// RiskTier classifies a completed intent by stake size.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskModerate RiskTier = "moderate"
	RiskHigh     RiskTier = "high"
	RiskExtreme  RiskTier = "extreme"
)

// Level returns the tier's position in the low < moderate < high < extreme
// ordering, for monotonicity checks.
func (t RiskTier) Level() int {
	switch t {
	case RiskLow:
		return 0
	case RiskModerate:
		return 1
	case RiskHigh:
		return 2
	case RiskExtreme:
		return 3
	}
	return -1
}

// RiskAssessment is the gate's verdict on the current intent. Recomputed
// whenever the intent changes.
type RiskAssessment struct {
	Tier           RiskTier `json:"tier"`
	Rationale      []string `json:"rationale,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	MayAutoProceed bool     `json:"mayAutoProceed"`
}

// ContestSource records whether a contest came from the reference catalog or
// was synthesized as a placeholder.
type ContestSource string

const (
	ContestCatalog     ContestSource = "catalog"
	ContestSynthesized ContestSource = "synthesized"
)

// Contest is the sporting event a wager references.
type Contest struct {
	ID           string        `json:"id"`
	SportTag     string        `json:"sportTag"`
	Participants []string      `json:"participants,omitempty"`
	ScheduledAt  time.Time     `json:"scheduledAt"`
	VenueLabel   string        `json:"venueLabel,omitempty"`
	Source       ContestSource `json:"source"`
}

// Synthesized reports whether the contest is a placeholder rather than a
// catalog-backed event.
func (c Contest) Synthesized() bool { return c.Source == ContestSynthesized }

// WagerStatus is the on-ledger lifecycle state of a wager.
type WagerStatus string

const (
	WagerOpen      WagerStatus = "open"
	WagerAccepted  WagerStatus = "accepted"
	WagerResolved  WagerStatus = "resolved"
	WagerCancelled WagerStatus = "cancelled"
)

// Party identifies one side of a wager.
type Party struct {
	Identity              string `json:"identity"`
	SigningAddress        string `json:"signingAddress,omitempty"`
	SelectedParticipantID string `json:"selectedParticipantId,omitempty"`
}

// Wager is the committed artifact. The ID is assigned by the ledger and is
// unknown until the ledger write succeeds.
type Wager struct {
	ID                    string          `json:"id"`
	ContestID             string          `json:"contestId"`
	Creator               Party           `json:"creator"`
	Acceptor              *Party          `json:"acceptor,omitempty"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              Currency        `json:"currency"`
	Status                WagerStatus     `json:"status"`
	SelectedParticipantID string          `json:"selectedParticipantId"`
	Winner                *Party          `json:"winner,omitempty"`
	MetadataURI           string          `json:"metadataUri,omitempty"`
	ProofURI              string          `json:"proofUri,omitempty"`
	MintedArtifactID      string          `json:"mintedArtifactId,omitempty"`
	ContestVerified       bool            `json:"contestVerified"`
	CreatedAt             time.Time       `json:"createdAt"`
}

// LedgerReceipt is the typed result of a successful ledger write, parsed from
// the transaction's event logs.
type LedgerReceipt struct {
	WagerID          string `json:"wagerId"`
	MintedArtifactID string `json:"mintedArtifactId,omitempty"`
	TxHash           string `json:"txHash"`
	BlockNumber      uint64 `json:"blockNumber,omitempty"`
	GasUsed          uint64 `json:"gasUsed,omitempty"`
}
