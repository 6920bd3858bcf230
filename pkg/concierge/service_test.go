package concierge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/phenomenon0/daredevil-core/core"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/commit"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/contest"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/dialogue"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/intent"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/risk"
	"github.com/phenomenon0/daredevil-core/pkg/ledger"
	"github.com/phenomenon0/daredevil-core/pkg/proof"
	"github.com/phenomenon0/daredevil-core/pkg/store"
)

// flakyLedger fails its first call and delegates afterwards, for retry tests.
type flakyLedger struct {
	inner ledger.Ledger
	calls atomic.Int32
}

func (f *flakyLedger) CreateWager(ctx context.Context, req ledger.CreateRequest) (core.LedgerReceipt, error) {
	if f.calls.Add(1) == 1 {
		return core.LedgerReceipt{}, errors.New("nonce too low")
	}
	return f.inner.CreateWager(ctx, req)
}

type testEnv struct {
	svc    *Service
	dryrun *ledger.DryRunLedger
	meta   *store.MemoryStore
}

func newTestService(t *testing.T, lgr ledger.Ledger, opts ...ledger.DryRunOption) *testEnv {
	t.Helper()

	dryrun := ledger.NewDryRunLedger(opts...)
	if lgr == nil {
		lgr = dryrun
	}
	meta := store.NewMemoryStore()
	committer := commit.NewOrchestrator(
		nil,
		meta,
		meta,
		lgr,
		proof.NewGenerator("https://daredevil.bet"),
		zap.NewNop(),
	)
	resolver := contest.NewResolver(contest.NewStaticCatalog(core.Contest{
		ID:          "f1-2026-r09",
		SportTag:    "f1",
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Source:      core.ContestCatalog,
	}))

	svc := NewService(
		&Config{SigningAddress: "0xabc"},
		intent.NewExtractor(nil),
		dialogue.NewEngine(dialogue.DefaultConfig()),
		risk.NewGate(risk.DefaultThresholds()),
		resolver,
		committer,
		zap.NewNop(),
	)
	return &testEnv{svc: svc, dryrun: dryrun, meta: meta}
}

func say(t *testing.T, svc *Service, sessionID, text string) *Reply {
	t.Helper()
	reply, err := svc.HandleUtterance(context.Background(), sessionID, "max-fan", text)
	if err != nil {
		t.Fatalf("HandleUtterance(%q): %v", text, err)
	}
	return reply
}

func TestHandleUtterance_HappyPath(t *testing.T) {
	env := newTestService(t, nil)

	reply := say(t, env.svc, "", "bet 25 core on verstappen")
	if reply.SessionID == "" {
		t.Fatal("no session id assigned")
	}
	if reply.Question == nil || reply.Question.ID != dialogue.QuestionConfirm {
		t.Fatalf("expected confirmation question, got %+v", reply.Question)
	}
	if reply.Completion != 100 {
		t.Errorf("completion = %v, want 100", reply.Completion)
	}

	final := say(t, env.svc, reply.SessionID, "yes")
	if !final.Done {
		t.Fatalf("expected terminal reply, got %+v", final)
	}
	if final.Commit == nil || !final.Commit.Success {
		t.Fatalf("commit did not succeed: %+v", final.Commit)
	}
	if final.Commit.WagerID != "dry-1" {
		t.Errorf("WagerID = %q, want dry-1", final.Commit.WagerID)
	}
	if !strings.Contains(final.Commit.ProofURI, "/wager/dry-1") {
		t.Errorf("ProofURI = %q, want it to embed the wager id", final.Commit.ProofURI)
	}
	if final.Contest == nil || final.Contest.ID != "f1-2026-r09" {
		t.Errorf("expected the catalog contest, got %+v", final.Contest)
	}
	if final.Risk == nil || final.Risk.Tier != core.RiskLow {
		t.Errorf("expected low risk on 25 CORE, got %+v", final.Risk)
	}
	if got := env.dryrun.Wagers(); len(got) != 1 {
		t.Fatalf("ledger saw %d wagers, want 1", len(got))
	}

	// Another message on a committed session is idempotent.
	again := say(t, env.svc, reply.SessionID, "place it again")
	if !again.Done || again.Commit == nil || again.Commit.WagerID != "dry-1" {
		t.Errorf("committed session should replay its result, got %+v", again)
	}
	if got := env.dryrun.Wagers(); len(got) != 1 {
		t.Errorf("replay must not write again, ledger has %d wagers", len(got))
	}
}

func TestHandleUtterance_ParseFailureThenReExtract(t *testing.T) {
	env := newTestService(t, nil)

	reply := say(t, env.svc, "", "hello there")
	if reply.Failure == nil || reply.Failure.Code != string(core.FailureParse) {
		t.Fatalf("expected ParseFailure, got %+v", reply.Failure)
	}
	if reply.Question != nil {
		t.Errorf("parse failure should not carry a question, got %+v", reply.Question)
	}

	// The session stays open; the next message is extracted from scratch.
	next := say(t, env.svc, reply.SessionID, "bet 10 on hamilton")
	if next.Failure != nil {
		t.Fatalf("unexpected failure: %+v", next.Failure)
	}
	if next.Question == nil || next.Question.ID != dialogue.QuestionConfirm {
		t.Fatalf("expected confirmation question, got %+v", next.Question)
	}
	if next.Intent == nil || next.Intent.Competitor != "lewis hamilton" {
		t.Errorf("intent = %+v, want lewis hamilton", next.Intent)
	}
}

func TestHandleUtterance_GuidedSlotFill(t *testing.T) {
	env := newTestService(t, nil)

	reply := say(t, env.svc, "", "bet on verstappen")
	if reply.Question == nil || reply.Question.ID != dialogue.QuestionAmount {
		t.Fatalf("expected amount question first, got %+v", reply.Question)
	}

	// An invalid amount is re-asked with the failure echoed.
	bad := say(t, env.svc, reply.SessionID, "a whole lot")
	if bad.Failure == nil || bad.Failure.Code != string(core.FailureValidation) {
		t.Fatalf("expected ValidationFailure, got %+v", bad.Failure)
	}
	if bad.Question == nil || bad.Question.ID != dialogue.QuestionAmount {
		t.Fatalf("rejected answer should re-ask amount, got %+v", bad.Question)
	}
	if bad.Failure.Intent.Competitor != "max verstappen" {
		t.Errorf("failure must echo the intent, got %+v", bad.Failure.Intent)
	}

	good := say(t, env.svc, reply.SessionID, "50")
	if good.Question == nil || good.Question.ID != dialogue.QuestionConfirm {
		t.Fatalf("expected confirmation after amount, got %+v", good.Question)
	}

	final := say(t, env.svc, reply.SessionID, "yep")
	if !final.Done || final.Commit == nil || !final.Commit.Success {
		t.Fatalf("expected committed wager, got %+v", final)
	}
}

func TestHandleUtterance_ExtremeTierNeedsAcknowledgment(t *testing.T) {
	env := newTestService(t, nil)

	reply := say(t, env.svc, "", "bet 1500 on verstappen")
	sessionID := reply.SessionID

	// Tolerance question comes first for a large stake; skip it.
	if reply.Question == nil || reply.Question.ID != dialogue.QuestionTolerance {
		t.Fatalf("expected tolerance question, got %+v", reply.Question)
	}
	confirm := say(t, env.svc, sessionID, "skip")
	if confirm.Question == nil || confirm.Question.ID != dialogue.QuestionConfirm {
		t.Fatalf("expected confirmation, got %+v", confirm.Question)
	}

	blocked := say(t, env.svc, sessionID, "yes")
	if !blocked.RequiresAck {
		t.Fatalf("extreme tier must demand acknowledgment, got %+v", blocked)
	}
	if blocked.Failure == nil || blocked.Failure.Code != string(core.FailureRiskBlocked) {
		t.Fatalf("expected RiskBlocked, got %+v", blocked.Failure)
	}
	if blocked.Risk == nil || blocked.Risk.Tier != core.RiskExtreme {
		t.Errorf("tier = %+v, want extreme", blocked.Risk)
	}
	if got := env.dryrun.Wagers(); len(got) != 0 {
		t.Fatalf("nothing may reach the ledger before acknowledgment, got %d", len(got))
	}

	// A plain "yes" is not an acknowledgment.
	still := say(t, env.svc, sessionID, "yes")
	if !still.RequiresAck {
		t.Fatalf("plain yes must not pass the acknowledgment gate, got %+v", still)
	}

	final := say(t, env.svc, sessionID, "i accept the risk")
	if !final.Done || final.Commit == nil || !final.Commit.Success {
		t.Fatalf("expected committed wager after acknowledgment, got %+v", final)
	}
	if got := env.dryrun.Wagers(); len(got) != 1 {
		t.Errorf("ledger saw %d wagers, want 1", len(got))
	}
}

func TestHandleUtterance_AcknowledgmentCancel(t *testing.T) {
	env := newTestService(t, nil)

	reply := say(t, env.svc, "", "bet 1500 usdc on verstappen")
	say(t, env.svc, reply.SessionID, "skip")
	say(t, env.svc, reply.SessionID, "yes")

	cancelled := say(t, env.svc, reply.SessionID, "cancel")
	if !cancelled.Done {
		t.Fatalf("cancel should close the session, got %+v", cancelled)
	}
	if got := env.dryrun.Wagers(); len(got) != 0 {
		t.Fatalf("cancelled session must not commit, ledger has %d", len(got))
	}

	closed := say(t, env.svc, reply.SessionID, "bet 5 on verstappen")
	if !closed.Done || !strings.Contains(closed.Message, "closed") {
		t.Errorf("closed session should refuse new bets, got %+v", closed)
	}
}

func TestHandleUtterance_RetryAfterLedgerRejection(t *testing.T) {
	flaky := &flakyLedger{inner: ledger.NewDryRunLedger()}
	env := newTestService(t, flaky)

	reply := say(t, env.svc, "", "bet 25 on verstappen")
	failed := say(t, env.svc, reply.SessionID, "yes")
	if failed.Failure == nil || failed.Failure.Code != string(core.FailureLedgerRejected) {
		t.Fatalf("expected LedgerRejected, got %+v", failed.Failure)
	}
	if !failed.Failure.Retryable {
		t.Error("ledger rejection should be retryable")
	}

	// An unrelated message replays the failure without retrying.
	idle := say(t, env.svc, reply.SessionID, "what happened")
	if idle.Failure == nil || idle.Failure.Code != string(core.FailureLedgerRejected) {
		t.Fatalf("expected the stored failure, got %+v", idle.Failure)
	}
	if flaky.calls.Load() != 1 {
		t.Fatalf("ledger called %d times before retry, want 1", flaky.calls.Load())
	}

	final := say(t, env.svc, reply.SessionID, "retry")
	if !final.Done || final.Commit == nil || !final.Commit.Success {
		t.Fatalf("expected retry to commit, got %+v", final)
	}
	if flaky.calls.Load() != 2 {
		t.Errorf("ledger called %d times, want 2", flaky.calls.Load())
	}
}

func TestHandleUtterance_CommitInFlightGuard(t *testing.T) {
	env := newTestService(t, nil, ledger.WithSimulatedLatency(300*time.Millisecond))

	reply := say(t, env.svc, "", "bet 25 on verstappen")
	sessionID := reply.SessionID

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		say(t, env.svc, sessionID, "yes")
	}()

	time.Sleep(75 * time.Millisecond)
	busy := say(t, env.svc, sessionID, "yes")
	if !strings.Contains(busy.Message, "being committed") {
		t.Errorf("expected busy reply during commit, got %q", busy.Message)
	}
	wg.Wait()

	if got := env.dryrun.Wagers(); len(got) != 1 {
		t.Fatalf("exactly one ledger write expected, got %d", len(got))
	}
}

func TestHandleUtterance_UnknownSession(t *testing.T) {
	env := newTestService(t, nil)
	if _, err := env.svc.HandleUtterance(context.Background(), "no-such-session", "u", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestHandleUtterance_EmptyMessage(t *testing.T) {
	env := newTestService(t, nil)
	if _, err := env.svc.HandleUtterance(context.Background(), "", "u", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestSessionView_Snapshot(t *testing.T) {
	env := newTestService(t, nil)

	reply := say(t, env.svc, "", "bet 25 core on verstappen")
	say(t, env.svc, reply.SessionID, "yes")

	view, ok := env.svc.SessionView(reply.SessionID)
	if !ok {
		t.Fatal("session not found")
	}
	if view.Status != StatusCommitted {
		t.Errorf("status = %q, want %q", view.Status, StatusCommitted)
	}
	if view.Source != string(intent.SourceFallback) {
		t.Errorf("source = %q, want fallback", view.Source)
	}
	if view.Commit == nil || view.Commit.WagerID != "dry-1" {
		t.Errorf("commit snapshot = %+v", view.Commit)
	}
	if len(view.History) == 0 || len(view.History) > 10 {
		t.Errorf("history length = %d, want 1..10", len(view.History))
	}
	if view.History[0].Role != "user" {
		t.Errorf("first turn role = %q, want user", view.History[0].Role)
	}

	if _, ok := env.svc.SessionView("missing"); ok {
		t.Error("missing session reported as found")
	}
}

func TestSessionCount_TracksSessions(t *testing.T) {
	env := newTestService(t, nil)
	if env.svc.SessionCount() != 0 {
		t.Fatal("fresh service should have no sessions")
	}
	say(t, env.svc, "", "bet 5 on verstappen")
	say(t, env.svc, "", "bet 6 on verstappen")
	if got := env.svc.SessionCount(); got != 2 {
		t.Errorf("SessionCount = %d, want 2", got)
	}
}

func TestHandleUtterance_SynthesizedContestCommits(t *testing.T) {
	// No catalog entry for basketball, so resolution synthesizes.
	env := newTestService(t, nil)

	reply := say(t, env.svc, "", "bet 10 on the celtics")
	if reply.Question == nil || reply.Question.ID != dialogue.QuestionConfirm {
		t.Fatalf("expected confirmation question, got %+v", reply.Question)
	}
	final := say(t, env.svc, reply.SessionID, "yes")
	if !final.Done || final.Commit == nil || !final.Commit.Success {
		t.Fatalf("expected committed wager, got %+v", final)
	}
	if final.Contest == nil || final.Contest.Source != core.ContestSynthesized {
		t.Errorf("expected synthesized contest, got %+v", final.Contest)
	}
	if final.Commit.Wager == nil || final.Commit.Wager.ContestVerified {
		t.Errorf("synthesized contest must be disclosed as unverified, got %+v", final.Commit.Wager)
	}
}
