package commit

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/daredevil-core/core"
	"github.com/phenomenon0/daredevil-core/pkg/ledger"
	"github.com/phenomenon0/daredevil-core/pkg/proof"
	"github.com/phenomenon0/daredevil-core/pkg/store"
)

func testIntent() core.BettingIntent {
	return core.BettingIntent{
		Amount:     decimal.NewFromInt(25),
		Currency:   core.CurrencyCORE,
		Competitor: "max verstappen",
		Sport:      "f1",
		Confidence: 0.9,
	}
}

func testContest() core.Contest {
	return core.Contest{
		ID:          "gp-monaco",
		SportTag:    "f1",
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Source:      core.ContestCatalog,
	}
}

func testCreator() core.Party {
	return core.Party{Identity: "session-1", SigningAddress: "0xCAFE"}
}

// countingLedger counts CreateWager attempts, to prove the single-write
// discipline.
type countingLedger struct {
	inner ledger.Ledger
	calls int32
}

func (c *countingLedger) CreateWager(ctx context.Context, req ledger.CreateRequest) (core.LedgerReceipt, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.inner.CreateWager(ctx, req)
}

// failingStore rejects keys matched by failOn and delegates the rest.
type failingStore struct {
	inner  *store.MemoryStore
	failOn func(key string) bool
}

func (f *failingStore) Upload(ctx context.Context, key string, doc any) (string, error) {
	if f.failOn(key) {
		return "", errors.New("store unavailable")
	}
	return f.inner.Upload(ctx, key, doc)
}

func (f *failingStore) Download(ctx context.Context, key string, out any) error {
	return f.inner.Download(ctx, key, out)
}

type failingBlobs struct{}

func (failingBlobs) UploadBytes(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("blob store unavailable")
}

func newTestOrchestrator(mem *store.MemoryStore, lgr ledger.Ledger) *Orchestrator {
	return NewOrchestrator(nil, mem, mem, lgr, proof.NewGenerator("https://daredevil.bet"), nil)
}

func tempKeys(mem *store.MemoryStore) []string {
	var out []string
	for _, k := range mem.Keys() {
		if store.IsTemp(k) {
			out = append(out, k)
		}
	}
	return out
}

func TestCommit_HappyPath(t *testing.T) {
	mem := store.NewMemoryStore()
	lgr := &countingLedger{inner: ledger.NewDryRunLedger()}
	o := newTestOrchestrator(mem, lgr)

	res := o.Commit(context.Background(), testIntent(), testContest(), testCreator())
	if !res.Success {
		t.Fatalf("commit failed: %v", res.Failure)
	}
	if res.WagerID == "" {
		t.Fatal("no wager id")
	}
	if !strings.Contains(res.ProofURI, res.WagerID) {
		t.Errorf("proofURI %q does not contain wager id %q verbatim", res.ProofURI, res.WagerID)
	}
	if res.QRCodeURI == "" {
		t.Error("no qr artifact")
	}
	if atomic.LoadInt32(&lgr.calls) != 1 {
		t.Errorf("ledger calls = %d, want exactly 1", lgr.calls)
	}

	// Both the provisional and the canonical object exist; the temp one is
	// the documented orphan.
	if got := tempKeys(mem); len(got) != 1 {
		t.Errorf("temp objects = %v, want exactly one", got)
	}
	var doc Metadata
	if err := mem.Download(context.Background(), res.WagerID, &doc); err != nil {
		t.Fatalf("canonical metadata missing: %v", err)
	}
	if doc.WagerID != res.WagerID || doc.TxHash != res.TxHash {
		t.Errorf("finalized doc = %+v", doc)
	}
	if doc.FinalizedAt == nil {
		t.Error("finalized doc missing FinalizedAt")
	}
	if doc.StakedMinorUnits != "25000000000000000000" {
		t.Errorf("stakedMinorUnits = %q", doc.StakedMinorUnits)
	}

	if res.Wager == nil {
		t.Fatal("no wager in result")
	}
	if res.Wager.Status != core.WagerOpen {
		t.Errorf("status = %q, want open", res.Wager.Status)
	}
	if !res.Wager.ContestVerified {
		t.Error("catalog contest should be verified")
	}

	wantStages := []Stage{StageValidate, StageStaging, StageLedgerWrite, StageFinalize, StageArtifact}
	if len(res.Stages) != len(wantStages) {
		t.Fatalf("stages = %v", res.Stages)
	}
	for i, sr := range res.Stages {
		if sr.Stage != wantStages[i] || !sr.Success {
			t.Errorf("stage %d = %+v, want successful %s", i, sr, wantStages[i])
		}
	}
}

func TestCommit_IncompleteIntentFails(t *testing.T) {
	mem := store.NewMemoryStore()
	lgr := &countingLedger{inner: ledger.NewDryRunLedger()}
	o := newTestOrchestrator(mem, lgr)

	in := testIntent()
	in.Sport = ""
	res := o.Commit(context.Background(), in, testContest(), testCreator())
	if res.Success || res.Failure == nil {
		t.Fatal("expected a validation failure")
	}
	if res.Failure.Code != core.FailureValidation {
		t.Errorf("code = %q, want %q", res.Failure.Code, core.FailureValidation)
	}
	if res.Failure.Intent.Competitor != "max verstappen" {
		t.Error("failure must echo the original intent")
	}
	if len(mem.Keys()) != 0 {
		t.Errorf("nothing should be written, got keys %v", mem.Keys())
	}
	if atomic.LoadInt32(&lgr.calls) != 0 {
		t.Errorf("ledger calls = %d, want 0", lgr.calls)
	}
}

func TestCommit_StagingFailureAbortsBeforeLedger(t *testing.T) {
	mem := store.NewMemoryStore()
	meta := &failingStore{inner: mem, failOn: store.IsTemp}
	lgr := &countingLedger{inner: ledger.NewDryRunLedger()}
	o := NewOrchestrator(nil, meta, mem, lgr, proof.NewGenerator("https://daredevil.bet"), nil)

	res := o.Commit(context.Background(), testIntent(), testContest(), testCreator())
	if res.Success || res.Failure == nil {
		t.Fatal("expected a staging failure")
	}
	if res.Failure.Code != core.FailureStaging {
		t.Errorf("code = %q, want %q", res.Failure.Code, core.FailureStaging)
	}
	if !res.Failure.Retryable() {
		t.Error("staging failures are retryable")
	}
	if atomic.LoadInt32(&lgr.calls) != 0 {
		t.Errorf("ledger calls = %d, want 0: staging failure must abort before the ledger", lgr.calls)
	}
}

func TestCommit_LedgerTimeoutLeavesOrphan(t *testing.T) {
	mem := store.NewMemoryStore()
	slow := ledger.NewDryRunLedger(ledger.WithSimulatedLatency(200 * time.Millisecond))
	lgr := &countingLedger{inner: slow}
	o := NewOrchestrator(&Config{LedgerTimeout: 20 * time.Millisecond}, mem, mem, lgr,
		proof.NewGenerator("https://daredevil.bet"), nil)

	res := o.Commit(context.Background(), testIntent(), testContest(), testCreator())
	if res.Success || res.Failure == nil {
		t.Fatal("expected a timeout failure")
	}
	if res.Failure.Code != core.FailureLedgerTimeout {
		t.Errorf("code = %q, want %q", res.Failure.Code, core.FailureLedgerTimeout)
	}
	if !res.Failure.TxMayHaveLanded {
		t.Error("timeout must carry the transaction-pending caveat")
	}
	if res.Failure.Retryable() {
		t.Error("ledger timeouts must never be auto-retried")
	}
	if atomic.LoadInt32(&lgr.calls) != 1 {
		t.Errorf("ledger calls = %d, want exactly 1", lgr.calls)
	}

	// The staged object is orphaned; no canonical object exists.
	orphans := tempKeys(mem)
	if len(orphans) != 1 {
		t.Fatalf("orphaned temp objects = %v, want exactly one", orphans)
	}
	if len(mem.Keys()) != 1 {
		t.Errorf("keys = %v, want only the orphan", mem.Keys())
	}
	if res.WagerID != "" {
		t.Errorf("no wager id may be reported on timeout, got %q", res.WagerID)
	}
}

func TestCommit_LedgerRejectedIsRetryable(t *testing.T) {
	mem := store.NewMemoryStore()
	lgr := ledger.NewDryRunLedger(ledger.WithSimulatedFailure(errors.New("execution reverted")))
	o := newTestOrchestrator(mem, lgr)

	res := o.Commit(context.Background(), testIntent(), testContest(), testCreator())
	if res.Success || res.Failure == nil {
		t.Fatal("expected a rejection")
	}
	if res.Failure.Code != core.FailureLedgerRejected {
		t.Errorf("code = %q, want %q", res.Failure.Code, core.FailureLedgerRejected)
	}
	if !res.Failure.Retryable() {
		t.Error("ledger rejections are retryable with the same staged metadata")
	}
	if res.StagingKey == "" {
		t.Error("the staged key must be reported for retry")
	}
	if res.Failure.TxMayHaveLanded {
		t.Error("a rejection is definitive, not pending")
	}
}

func TestCommit_FinalizeFailureIsDistinct(t *testing.T) {
	mem := store.NewMemoryStore()
	meta := &failingStore{inner: mem, failOn: func(key string) bool { return !store.IsTemp(key) }}
	lgr := &countingLedger{inner: ledger.NewDryRunLedger()}
	o := NewOrchestrator(nil, meta, mem, lgr, proof.NewGenerator("https://daredevil.bet"), nil)

	res := o.Commit(context.Background(), testIntent(), testContest(), testCreator())
	if res.Success || res.Failure == nil {
		t.Fatal("expected a finalize failure")
	}
	if res.Failure.Code != core.FailureFinalize {
		t.Errorf("code = %q, want %q", res.Failure.Code, core.FailureFinalize)
	}
	if !res.Failure.WagerExists {
		t.Error("finalize failure must disclose that the wager exists")
	}
	if res.WagerID == "" {
		t.Error("the ledger-assigned id must be reported so the artifact can be regenerated")
	}
	if atomic.LoadInt32(&lgr.calls) != 1 {
		t.Errorf("ledger calls = %d: finalize failure must never re-commit funds", lgr.calls)
	}
}

func TestCommit_ArtifactFailureStillReportsWager(t *testing.T) {
	mem := store.NewMemoryStore()
	o := NewOrchestrator(nil, mem, failingBlobs{}, ledger.NewDryRunLedger(),
		proof.NewGenerator("https://daredevil.bet"), nil)

	res := o.Commit(context.Background(), testIntent(), testContest(), testCreator())
	if res.Success || res.Failure == nil {
		t.Fatal("expected an artifact failure")
	}
	if res.Failure.Code != core.FailureFinalize {
		t.Errorf("code = %q, want %q", res.Failure.Code, core.FailureFinalize)
	}
	if !res.Failure.WagerExists {
		t.Error("the wager exists even when the artifact store is down")
	}
	// The share URL is derivable without the blob store.
	if !strings.Contains(res.ProofURI, res.WagerID) {
		t.Errorf("proofURI = %q, want it to carry the wager id", res.ProofURI)
	}
}

func TestCommit_SynthesizedContestDisclosed(t *testing.T) {
	mem := store.NewMemoryStore()
	o := newTestOrchestrator(mem, ledger.NewDryRunLedger())

	synth := core.Contest{
		ID:          "synth-4a1c",
		SportTag:    "f1",
		ScheduledAt: time.Now().Add(24 * time.Hour),
		Source:      core.ContestSynthesized,
	}
	res := o.Commit(context.Background(), testIntent(), synth, testCreator())
	if !res.Success {
		t.Fatalf("commit failed: %v", res.Failure)
	}
	if res.Wager.ContestVerified {
		t.Error("synthesized contest must not be marked verified")
	}
	var doc Metadata
	if err := mem.Download(context.Background(), res.WagerID, &doc); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if doc.ContestVerified {
		t.Error("metadata must disclose the unverified contest")
	}
}

func TestCommit_StageCallback(t *testing.T) {
	mem := store.NewMemoryStore()
	o := newTestOrchestrator(mem, ledger.NewDryRunLedger())

	var seen []Stage
	o.OnStage(func(sr StageResult) { seen = append(seen, sr.Stage) })

	o.Commit(context.Background(), testIntent(), testContest(), testCreator())
	want := []Stage{StageValidate, StageStaging, StageLedgerWrite, StageFinalize, StageArtifact}
	if len(seen) != len(want) {
		t.Fatalf("stages seen = %v", seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("stage %d = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestCommit_StableCurrencyNotNative(t *testing.T) {
	mem := store.NewMemoryStore()
	dry := ledger.NewDryRunLedger()
	o := newTestOrchestrator(mem, dry)

	in := testIntent()
	in.Currency = core.CurrencyUSDC
	res := o.Commit(context.Background(), in, testContest(), testCreator())
	if !res.Success {
		t.Fatalf("commit failed: %v", res.Failure)
	}
	wagers := dry.Wagers()
	if len(wagers) != 1 {
		t.Fatalf("wagers = %d", len(wagers))
	}
	if wagers[0].Native {
		t.Error("stable stakes must not ride as native value")
	}
	if wagers[0].Amount.String() != "25000000" {
		t.Errorf("minor units = %s, want 25000000", wagers[0].Amount)
	}
}
