// Package dialogue turns a partially filled betting intent into a complete,
// confirmed one by asking guiding questions one at a time. The engine is a
// pure state machine over Conversation values: given the same conversation
// and the same answer it always produces the same outcome, which keeps the
// flow replayable and easy to test.
package dialogue

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/daredevil-core/core"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/intent"
)

// Question IDs. ApplyAnswer only accepts the ID the engine would currently
// ask, so stale or out-of-order answers are rejected instead of applied.
const (
	QuestionAmount     = "amount"
	QuestionCompetitor = "competitor"
	QuestionSport      = "sport"
	QuestionTolerance  = "risk_tolerance"
	QuestionConfirm    = "confirmation"
	QuestionChange     = "change_request"
)

// requiredSlots is the denominator for completion: amount, competitor, sport.
const requiredSlots = 3

// Config tunes the engine without changing its question order.
type Config struct {
	// MaxRetries is how many invalid answers a question absorbs before its
	// prompt starts carrying a help hint.
	MaxRetries int

	// LargeBetThreshold is the stake above which the optional risk
	// tolerance question is offered.
	LargeBetThreshold decimal.Decimal
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		LargeBetThreshold: decimal.NewFromInt(500),
	}
}

// Engine drives the slot-filling dialogue. It holds no per-conversation
// state, so a single engine serves any number of concurrent conversations.
type Engine struct {
	cfg Config
}

// NewEngine builds an engine, falling back to defaults for zero fields.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if !cfg.LargeBetThreshold.IsPositive() {
		cfg.LargeBetThreshold = def.LargeBetThreshold
	}
	return &Engine{cfg: cfg}
}

// MaxRetries reports the configured retry budget per question.
func (e *Engine) MaxRetries() int { return e.cfg.MaxRetries }

// Outcome is what one answered turn produces.
type Outcome struct {
	// NextQuestion is the question to put to the bettor now, nil once the
	// intent is confirmed and the conversation can proceed to commit.
	NextQuestion *core.GuidingQuestion

	// CanProceed is true only after an affirmative confirmation.
	CanProceed bool

	// Completion is the share of required slots filled, in percent.
	Completion float64

	// Failure is set when the answer was rejected. The intent is untouched
	// and NextQuestion re-asks the same question.
	Failure *core.PipelineError
}

// NextQuestion returns the single question the engine would ask right now,
// or nil when the intent is confirmed. It never mutates the conversation.
//
// Priority: amount, competitor, sport, then the optional risk tolerance
// question for large stakes, then confirmation. A pending change request
// preempts the slot order.
func (e *Engine) NextQuestion(c *Conversation) *core.GuidingQuestion {
	if c.Confirmed {
		return nil
	}
	if c.changeRequested {
		return e.buildQuestion(c, QuestionChange)
	}
	switch {
	case !c.Intent.HasAmount():
		return e.buildQuestion(c, QuestionAmount)
	case !c.Intent.HasCompetitor():
		return e.buildQuestion(c, QuestionCompetitor)
	case !c.Intent.HasSport():
		return e.buildQuestion(c, QuestionSport)
	case e.shouldAskTolerance(c):
		return e.buildQuestion(c, QuestionTolerance)
	default:
		return e.buildQuestion(c, QuestionConfirm)
	}
}

func (e *Engine) shouldAskTolerance(c *Conversation) bool {
	if c.toleranceDone || c.Intent.RiskTolerance != "" {
		return false
	}
	return c.Intent.Amount.GreaterThan(e.cfg.LargeBetThreshold)
}

// ApplyAnswer feeds one answer into the conversation. The questionID must be
// the one NextQuestion currently returns; anything else is rejected as stale
// without touching the intent. Rejected answers set Outcome.Failure, bump the
// question's retry counter, and re-ask the same question.
func (e *Engine) ApplyAnswer(c *Conversation, questionID, answer string) Outcome {
	if c.Confirmed {
		return Outcome{
			CanProceed: true,
			Completion: e.Completion(c),
			Failure:    core.Fail(core.FailureValidation, c.Intent, "intent already confirmed"),
		}
	}

	current := e.NextQuestion(c)
	if current == nil || current.ID != questionID {
		return e.reject(c, current, fmt.Sprintf("answer targets question %q but %q is pending", questionID, currentID(current)))
	}

	answer = strings.TrimSpace(answer)

	switch questionID {
	case QuestionAmount:
		return e.applyAmount(c, answer)
	case QuestionCompetitor:
		return e.applyCompetitor(c, answer)
	case QuestionSport:
		return e.applySport(c, answer)
	case QuestionTolerance:
		return e.applyTolerance(c, answer)
	case QuestionConfirm:
		return e.applyConfirmation(c, answer)
	case QuestionChange:
		return e.applyChange(c, answer)
	default:
		return e.reject(c, current, fmt.Sprintf("unknown question %q", questionID))
	}
}

func (e *Engine) applyAmount(c *Conversation, answer string) Outcome {
	amt, cur, ok := intent.ParseAmount(answer)
	if !ok {
		return e.rejectAnswer(c, QuestionAmount, "that does not look like a number")
	}
	c.Intent.Amount = amt
	if cur != "" {
		c.Intent.Currency = cur
	}
	return e.advance(c)
}

func (e *Engine) applyCompetitor(c *Conversation, answer string) Outcome {
	if answer == "" {
		return e.rejectAnswer(c, QuestionCompetitor, "competitor cannot be empty")
	}
	if comp, ok := intent.LookupCompetitor(answer); ok {
		c.Intent.Competitor = comp.Name
		if !c.Intent.HasSport() {
			c.Intent.Sport = comp.Sport
		}
		c.KnownCompetitors[comp.ID] = comp
	} else {
		c.Intent.Competitor = strings.ToLower(answer)
	}
	c.seedRoster()
	return e.advance(c)
}

func (e *Engine) applySport(c *Conversation, answer string) Outcome {
	sport, ok := intent.NormalizeSport(answer)
	if !ok {
		return e.rejectAnswer(c, QuestionSport, fmt.Sprintf("unknown sport %q", answer))
	}
	c.Intent.Sport = sport
	c.seedRoster()
	return e.advance(c)
}

// applyTolerance treats the tolerance question as genuinely optional: a
// recognizable tolerance sets the slot, anything else skips it. It never
// blocks the conversation.
func (e *Engine) applyTolerance(c *Conversation, answer string) Outcome {
	if tol, ok := core.ParseRiskTolerance(answer); ok {
		c.Intent.RiskTolerance = tol
	}
	c.toleranceDone = true
	return e.advance(c)
}

func (e *Engine) applyConfirmation(c *Conversation, answer string) Outcome {
	if isAffirmative(answer) {
		c.Confirmed = true
		return Outcome{CanProceed: true, Completion: e.Completion(c)}
	}
	c.changeRequested = true
	return e.advance(c)
}

// applyChange handles the "what would you like to change" turn. The answer
// may supply replacement values directly ("make it 20 on hamilton"), which
// overwrite the matching slots, or just name fields ("the amount"), which
// clears them so the priority order re-asks.
func (e *Engine) applyChange(c *Conversation, answer string) Outcome {
	if answer == "" {
		return e.rejectAnswer(c, QuestionChange, "say which field to change, or give a new value")
	}

	ext, extracted := intent.FallbackExtract(answer)
	touched := false
	if extracted {
		if ext.HasAmount() {
			c.Intent.Amount = ext.Amount
			if ext.Currency != "" {
				c.Intent.Currency = ext.Currency
			}
			touched = true
		}
		if ext.HasCompetitor() {
			c.Intent.Competitor = ext.Competitor
			touched = true
		}
		if ext.HasSport() {
			c.Intent.Sport = ext.Sport
			c.seedRoster()
			touched = true
		}
		if ext.RiskTolerance != "" {
			c.Intent.RiskTolerance = ext.RiskTolerance
			touched = true
		}
	}

	lower := strings.ToLower(answer)
	mentions := func(keywords ...string) bool {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}
	if !(extracted && ext.HasAmount()) && mentions("amount", "stake", "how much") {
		c.Intent.Amount = decimal.Zero
		touched = true
	}
	if !(extracted && ext.HasCompetitor()) && mentions("competitor", "driver", "team", "player", "who") {
		c.Intent.Competitor = ""
		touched = true
	}
	if !(extracted && ext.HasSport()) && mentions("sport") {
		c.Intent.Sport = ""
		touched = true
	}
	if !(extracted && ext.Currency != "") && mentions("currency") {
		c.Intent.Currency = ""
		touched = true
	}

	if !touched {
		return e.rejectAnswer(c, QuestionChange, "could not tell what to change")
	}
	c.changeRequested = false
	return e.advance(c)
}

// advance recomputes the outcome after a successful mutation.
func (e *Engine) advance(c *Conversation) Outcome {
	return Outcome{
		NextQuestion: e.NextQuestion(c),
		CanProceed:   c.Confirmed,
		Completion:   e.Completion(c),
	}
}

// rejectAnswer records an invalid answer against the question and re-asks it.
func (e *Engine) rejectAnswer(c *Conversation, questionID, reason string) Outcome {
	c.bumpRetries(questionID)
	return Outcome{
		NextQuestion: e.buildQuestion(c, questionID),
		Completion:   e.Completion(c),
		Failure:      core.Fail(core.FailureValidation, c.Intent, reason),
	}
}

// reject refuses an answer without charging any retry counter, for stale or
// unknown question IDs.
func (e *Engine) reject(c *Conversation, current *core.GuidingQuestion, reason string) Outcome {
	return Outcome{
		NextQuestion: current,
		CanProceed:   c.Confirmed,
		Completion:   e.Completion(c),
		Failure:      core.Fail(core.FailureValidation, c.Intent, reason),
	}
}

// Completion reports the share of required slots filled, in percent.
func (e *Engine) Completion(c *Conversation) float64 {
	filled := 0
	if c.Intent.HasAmount() {
		filled++
	}
	if c.Intent.HasCompetitor() {
		filled++
	}
	if c.Intent.HasSport() {
		filled++
	}
	return float64(filled) / requiredSlots * 100
}

func currentID(q *core.GuidingQuestion) string {
	if q == nil {
		return "none"
	}
	return q.ID
}
