package dialogue

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/daredevil-core/core"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/intent"
)

func newConv(in core.BettingIntent) *Conversation {
	return NewConversation("tester", intent.Result{Source: intent.SourceFallback, Intent: in})
}

func TestNextQuestion_PriorityOrder(t *testing.T) {
	e := NewEngine(DefaultConfig())

	tests := []struct {
		name   string
		intent core.BettingIntent
		wantID string
	}{
		{"empty intent asks amount first", core.BettingIntent{}, QuestionAmount},
		{"missing amount beats missing competitor", core.BettingIntent{Sport: "f1"}, QuestionAmount},
		{"amount filled asks competitor", core.BettingIntent{Amount: decimal.NewFromInt(10)}, QuestionCompetitor},
		{"competitor filled asks sport", core.BettingIntent{
			Amount: decimal.NewFromInt(10), Competitor: "max verstappen",
		}, QuestionSport},
		{"small complete intent asks confirmation", core.BettingIntent{
			Amount: decimal.NewFromInt(10), Competitor: "max verstappen", Sport: "f1",
		}, QuestionConfirm},
		{"large complete intent asks tolerance", core.BettingIntent{
			Amount: decimal.NewFromInt(600), Competitor: "max verstappen", Sport: "f1",
		}, QuestionTolerance},
		{"large intent with tolerance set asks confirmation", core.BettingIntent{
			Amount: decimal.NewFromInt(600), Competitor: "max verstappen", Sport: "f1",
			RiskTolerance: core.ToleranceAggressive,
		}, QuestionConfirm},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := e.NextQuestion(newConv(tt.intent))
			if q == nil {
				t.Fatal("expected a question, got nil")
			}
			if q.ID != tt.wantID {
				t.Errorf("next question = %q, want %q", q.ID, tt.wantID)
			}
		})
	}
}

func TestNextQuestion_OneQuestionPerTurn(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{})

	q := e.NextQuestion(c)
	if q == nil || q.ID != QuestionAmount {
		t.Fatalf("expected the single amount question, got %+v", q)
	}
	// Asking again without an answer must yield the same question, not the
	// next one in line.
	q2 := e.NextQuestion(c)
	if q2 == nil || q2.ID != QuestionAmount {
		t.Errorf("re-asking moved on to %+v", q2)
	}
}

func TestNextQuestion_DoesNotMutate(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{Amount: decimal.NewFromInt(10)})
	before := c.Intent

	for i := 0; i < 5; i++ {
		e.NextQuestion(c)
	}
	if !c.Intent.Amount.Equal(before.Amount) || c.Intent.Competitor != before.Competitor ||
		c.Intent.Sport != before.Sport || c.Confirmed {
		t.Errorf("NextQuestion mutated the conversation: %+v", c.Intent)
	}
}

func TestNextQuestion_ConfirmedReturnsNil(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{
		Amount: decimal.NewFromInt(10), Competitor: "max verstappen", Sport: "f1",
	})
	c.Confirmed = true

	if q := e.NextQuestion(c); q != nil {
		t.Errorf("confirmed conversation still asked %q", q.ID)
	}
}

func TestApplyAnswer_AmountThenConfirmation(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{Competitor: "max verstappen", Sport: "f1"})

	out := e.ApplyAnswer(c, QuestionAmount, "25 core")
	if out.Failure != nil {
		t.Fatalf("valid amount rejected: %v", out.Failure)
	}
	if !c.Intent.Amount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("amount = %s, want 25", c.Intent.Amount)
	}
	if c.Intent.Currency != core.CurrencyCORE {
		t.Errorf("currency = %q, want CORE", c.Intent.Currency)
	}
	if out.NextQuestion == nil || out.NextQuestion.ID != QuestionConfirm {
		t.Errorf("next question = %+v, want confirmation", out.NextQuestion)
	}
	if out.Completion != 100 {
		t.Errorf("completion = %v, want 100", out.Completion)
	}
	if out.CanProceed {
		t.Error("cannot proceed before confirmation")
	}
}

func TestApplyAnswer_InvalidNumericDoesNotMutate(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{Competitor: "arsenal", Sport: "soccer"})

	out := e.ApplyAnswer(c, QuestionAmount, "a whole lot")
	if out.Failure == nil {
		t.Fatal("expected a validation failure")
	}
	if out.Failure.Code != core.FailureValidation {
		t.Errorf("failure code = %q, want %q", out.Failure.Code, core.FailureValidation)
	}
	if c.Intent.HasAmount() {
		t.Errorf("rejected answer mutated amount to %s", c.Intent.Amount)
	}
	if out.NextQuestion == nil || out.NextQuestion.ID != QuestionAmount {
		t.Errorf("must re-ask the same question, got %+v", out.NextQuestion)
	}
	if got := c.Retries(QuestionAmount); got != 1 {
		t.Errorf("retries = %d, want 1", got)
	}
}

func TestApplyAnswer_HelpHintAfterRetryBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	e := NewEngine(cfg)
	c := newConv(core.BettingIntent{})

	var out Outcome
	for i := 0; i < cfg.MaxRetries; i++ {
		out = e.ApplyAnswer(c, QuestionAmount, "nope")
		if out.Failure == nil {
			t.Fatalf("attempt %d: expected rejection", i+1)
		}
	}
	if out.NextQuestion == nil {
		t.Fatal("expected the amount question to be re-asked")
	}
	if !strings.Contains(out.NextQuestion.Prompt, "plain number") {
		t.Errorf("prompt after %d retries lacks help hint: %q", cfg.MaxRetries, out.NextQuestion.Prompt)
	}

	// Before the budget is spent the prompt stays clean.
	fresh := newConv(core.BettingIntent{})
	first := e.ApplyAnswer(fresh, QuestionAmount, "nope")
	if strings.Contains(first.NextQuestion.Prompt, "plain number") {
		t.Errorf("help hint showed up too early: %q", first.NextQuestion.Prompt)
	}
}

func TestApplyAnswer_StaleQuestionRejected(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{})

	out := e.ApplyAnswer(c, QuestionSport, "f1")
	if out.Failure == nil {
		t.Fatal("expected stale answer to be rejected")
	}
	if c.Intent.HasSport() {
		t.Errorf("stale answer mutated sport to %q", c.Intent.Sport)
	}
	// Stale answers do not burn the pending question's retry budget.
	if got := c.Retries(QuestionAmount); got != 0 {
		t.Errorf("retries charged on stale answer: %d", got)
	}
	if out.NextQuestion == nil || out.NextQuestion.ID != QuestionAmount {
		t.Errorf("next question = %+v, want amount", out.NextQuestion)
	}
}

func TestApplyAnswer_AffirmativeFreezesIntent(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{
		Amount: decimal.NewFromInt(10), Competitor: "max verstappen", Sport: "f1",
	})

	out := e.ApplyAnswer(c, QuestionConfirm, "Yes!")
	if out.Failure != nil {
		t.Fatalf("affirmative rejected: %v", out.Failure)
	}
	if !out.CanProceed || !c.Confirmed {
		t.Error("affirmative answer must freeze and release the intent")
	}
	if out.NextQuestion != nil {
		t.Errorf("confirmed conversation still asks %q", out.NextQuestion.ID)
	}

	// Frozen means frozen: no further answer may change the intent.
	after := e.ApplyAnswer(c, QuestionAmount, "999")
	if after.Failure == nil {
		t.Fatal("post-confirmation answer must be rejected")
	}
	if !c.Intent.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("frozen amount changed to %s", c.Intent.Amount)
	}
}

func TestApplyAnswer_AffirmativeVariants(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"yes", true},
		{"Yes.", true},
		{"YEP", true},
		{"ok", true},
		{"confirmed", true},
		{"no", false},
		{"yes but make it 20", false},
		{"cancel", false},
	}

	for _, tt := range tests {
		e := NewEngine(DefaultConfig())
		c := newConv(core.BettingIntent{
			Amount: decimal.NewFromInt(10), Competitor: "arsenal", Sport: "soccer",
		})
		out := e.ApplyAnswer(c, QuestionConfirm, tt.answer)
		if out.CanProceed != tt.want {
			t.Errorf("answer %q: canProceed = %v, want %v", tt.answer, out.CanProceed, tt.want)
		}
		if !tt.want && (out.NextQuestion == nil || out.NextQuestion.ID != QuestionChange) {
			t.Errorf("answer %q: expected change request question, got %+v", tt.answer, out.NextQuestion)
		}
	}
}

func TestApplyAnswer_ChangeRequestClearsNamedSlot(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{
		Amount: decimal.NewFromInt(10), Competitor: "max verstappen", Sport: "f1",
	})

	if out := e.ApplyAnswer(c, QuestionConfirm, "no"); out.NextQuestion.ID != QuestionChange {
		t.Fatalf("expected change question, got %q", out.NextQuestion.ID)
	}
	out := e.ApplyAnswer(c, QuestionChange, "the amount")
	if out.Failure != nil {
		t.Fatalf("change answer rejected: %v", out.Failure)
	}
	if c.Intent.HasAmount() {
		t.Errorf("amount should be cleared, still %s", c.Intent.Amount)
	}
	if out.NextQuestion == nil || out.NextQuestion.ID != QuestionAmount {
		t.Errorf("next question = %+v, want amount", out.NextQuestion)
	}
	if out.Completion != float64(2)/3*100 {
		t.Errorf("completion = %v, want two thirds", out.Completion)
	}
}

func TestApplyAnswer_ChangeRequestWithInlineValue(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{
		Amount: decimal.NewFromInt(10), Competitor: "max verstappen", Sport: "f1",
	})

	e.ApplyAnswer(c, QuestionConfirm, "no")
	out := e.ApplyAnswer(c, QuestionChange, "make it 20")
	if out.Failure != nil {
		t.Fatalf("inline change rejected: %v", out.Failure)
	}
	if !c.Intent.Amount.Equal(decimal.NewFromInt(20)) {
		t.Errorf("amount = %s, want 20", c.Intent.Amount)
	}
	if c.Intent.Competitor != "max verstappen" {
		t.Errorf("untouched competitor changed to %q", c.Intent.Competitor)
	}
	if out.NextQuestion == nil || out.NextQuestion.ID != QuestionConfirm {
		t.Errorf("next question = %+v, want confirmation", out.NextQuestion)
	}
}

func TestApplyAnswer_ChangeRequestSwitchesCompetitor(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{
		Amount: decimal.NewFromInt(10), Competitor: "max verstappen", Sport: "f1",
	})

	e.ApplyAnswer(c, QuestionConfirm, "no")
	out := e.ApplyAnswer(c, QuestionChange, "put it on hamilton instead")
	if out.Failure != nil {
		t.Fatalf("competitor change rejected: %v", out.Failure)
	}
	if c.Intent.Competitor != "lewis hamilton" {
		t.Errorf("competitor = %q, want lewis hamilton", c.Intent.Competitor)
	}
	if out.NextQuestion == nil || out.NextQuestion.ID != QuestionConfirm {
		t.Errorf("next question = %+v, want confirmation", out.NextQuestion)
	}
}

func TestApplyAnswer_ToleranceSkippable(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{
		Amount: decimal.NewFromInt(600), Competitor: "max verstappen", Sport: "f1",
	})

	if q := e.NextQuestion(c); q.ID != QuestionTolerance {
		t.Fatalf("expected tolerance question for 600 stake, got %q", q.ID)
	}
	out := e.ApplyAnswer(c, QuestionTolerance, "skip")
	if out.Failure != nil {
		t.Fatalf("skip rejected: %v", out.Failure)
	}
	if c.Intent.RiskTolerance != "" {
		t.Errorf("skip set tolerance to %q", c.Intent.RiskTolerance)
	}
	if out.NextQuestion == nil || out.NextQuestion.ID != QuestionConfirm {
		t.Errorf("next question = %+v, want confirmation", out.NextQuestion)
	}
	// Once skipped it is never asked again.
	if q := e.NextQuestion(c); q.ID == QuestionTolerance {
		t.Error("tolerance re-asked after skip")
	}
}

func TestApplyAnswer_ToleranceCaptured(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{
		Amount: decimal.NewFromInt(750), Competitor: "arsenal", Sport: "soccer",
	})

	out := e.ApplyAnswer(c, QuestionTolerance, "aggressive")
	if out.Failure != nil {
		t.Fatalf("tolerance answer rejected: %v", out.Failure)
	}
	if c.Intent.RiskTolerance != core.ToleranceAggressive {
		t.Errorf("tolerance = %q, want aggressive", c.Intent.RiskTolerance)
	}
}

func TestApplyAnswer_ToleranceNotAskedForSmallBets(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{
		Amount: decimal.NewFromInt(500), Competitor: "arsenal", Sport: "soccer",
	})

	// Exactly at the threshold is not "large".
	if q := e.NextQuestion(c); q.ID != QuestionConfirm {
		t.Errorf("500 at threshold should go to confirmation, got %q", q.ID)
	}
}

func TestApplyAnswer_CompetitorFillsSportFromRoster(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{Amount: decimal.NewFromInt(10)})

	out := e.ApplyAnswer(c, QuestionCompetitor, "Verstappen")
	if out.Failure != nil {
		t.Fatalf("competitor answer rejected: %v", out.Failure)
	}
	if c.Intent.Competitor != "max verstappen" {
		t.Errorf("competitor = %q, want max verstappen", c.Intent.Competitor)
	}
	if c.Intent.Sport != "f1" {
		t.Errorf("sport = %q, want f1 inferred from roster", c.Intent.Sport)
	}
	if out.NextQuestion == nil || out.NextQuestion.ID != QuestionConfirm {
		t.Errorf("next question = %+v, want confirmation", out.NextQuestion)
	}
}

func TestApplyAnswer_UnknownCompetitorKeptAsFreeText(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{Amount: decimal.NewFromInt(10), Sport: "f1"})

	out := e.ApplyAnswer(c, QuestionCompetitor, "My Cousin Eddie")
	if out.Failure != nil {
		t.Fatalf("free-text competitor rejected: %v", out.Failure)
	}
	if c.Intent.Competitor != "my cousin eddie" {
		t.Errorf("competitor = %q", c.Intent.Competitor)
	}
}

func TestApplyAnswer_SportChoice(t *testing.T) {
	e := NewEngine(DefaultConfig())
	c := newConv(core.BettingIntent{Amount: decimal.NewFromInt(10), Competitor: "someone"})

	out := e.ApplyAnswer(c, QuestionSport, "cricket")
	if out.Failure == nil {
		t.Fatal("unknown sport must be rejected")
	}
	out = e.ApplyAnswer(c, QuestionSport, "premier league")
	if out.Failure != nil {
		t.Fatalf("sport alias rejected: %v", out.Failure)
	}
	if c.Intent.Sport != "soccer" {
		t.Errorf("sport = %q, want soccer", c.Intent.Sport)
	}
}

func TestCompletion_Percentages(t *testing.T) {
	e := NewEngine(DefaultConfig())

	tests := []struct {
		name   string
		intent core.BettingIntent
		want   float64
	}{
		{"nothing filled", core.BettingIntent{}, 0},
		{"one of three", core.BettingIntent{Amount: decimal.NewFromInt(10)}, float64(1) / 3 * 100},
		{"two of three", core.BettingIntent{Amount: decimal.NewFromInt(10), Competitor: "x"}, float64(2) / 3 * 100},
		{"all filled", core.BettingIntent{Amount: decimal.NewFromInt(10), Competitor: "x", Sport: "f1"}, 100},
	}
	for _, tt := range tests {
		if got := e.Completion(newConv(tt.intent)); got != tt.want {
			t.Errorf("%s: completion = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// The "bet 10" walk from end to end: amount arrives pre-filled, the engine
// asks for the competitor next, sport is inferred, and confirmation releases
// the intent.
func TestEngine_BetTenWalkthrough(t *testing.T) {
	e := NewEngine(DefaultConfig())
	res, _ := intent.FallbackExtract("bet 10")
	c := NewConversation("walkthrough", intent.Result{Source: intent.SourceFallback, Intent: res})

	q := e.NextQuestion(c)
	if q == nil || q.ID != QuestionCompetitor {
		t.Fatalf("first question = %+v, want competitor", q)
	}

	out := e.ApplyAnswer(c, QuestionCompetitor, "verstappen")
	if out.NextQuestion == nil || out.NextQuestion.ID != QuestionConfirm {
		t.Fatalf("after competitor, question = %+v, want confirmation", out.NextQuestion)
	}
	if out.Completion != 100 {
		t.Errorf("completion = %v, want 100", out.Completion)
	}

	out = e.ApplyAnswer(c, QuestionConfirm, "yes")
	if !out.CanProceed {
		t.Fatal("confirmed walkthrough must proceed")
	}
	if !c.Intent.Complete() {
		t.Errorf("intent incomplete after walkthrough: %+v", c.Intent)
	}
}

func TestEngine_Deterministic(t *testing.T) {
	e := NewEngine(DefaultConfig())
	seed := core.BettingIntent{Amount: decimal.NewFromInt(10)}

	a := newConv(seed)
	b := newConv(seed)
	outA := e.ApplyAnswer(a, QuestionCompetitor, "hamilton")
	outB := e.ApplyAnswer(b, QuestionCompetitor, "hamilton")

	if outA.NextQuestion.ID != outB.NextQuestion.ID || outA.Completion != outB.Completion {
		t.Errorf("same answer diverged: %+v vs %+v", outA, outB)
	}
	if a.Intent.Competitor != b.Intent.Competitor || a.Intent.Sport != b.Intent.Sport {
		t.Errorf("same answer produced different intents: %+v vs %+v", a.Intent, b.Intent)
	}
}
