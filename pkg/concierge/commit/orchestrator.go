// Package commit turns a confirmed intent into an on-ledger wager. The write
// is two-phase because the ledger assigns the canonical wager id only on
// success: metadata is staged under a provisional key first, then the ledger
// is written exactly once, then the metadata is finalized under the assigned
// id and the share artifacts are rendered.
package commit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/phenomenon0/daredevil-core/core"
	"github.com/phenomenon0/daredevil-core/pkg/ledger"
	"github.com/phenomenon0/daredevil-core/pkg/proof"
	"github.com/phenomenon0/daredevil-core/pkg/store"
)

// Stage names the steps of one commit, in execution order.
type Stage string

const (
	StageValidate    Stage = "validate"
	StageStaging     Stage = "staging"
	StageLedgerWrite Stage = "ledger_write"
	StageFinalize    Stage = "finalize"
	StageArtifact    Stage = "artifact"
)

// StageResult records one executed stage, for tracing and metrics.
type StageResult struct {
	Stage     Stage         `json:"stage"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Config tunes the orchestrator.
type Config struct {
	// LedgerTimeout is the hard wall-clock budget for the ledger write.
	// When it fires the commit fails with LedgerTimeout and is never
	// retried automatically.
	LedgerTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{LedgerTimeout: 60 * time.Second}
}

// Metadata is the document written to the durable store: staged under a
// temp- key before the ledger write, finalized under the wager id after.
type Metadata struct {
	WagerID          string             `json:"wagerId,omitempty"`
	Intent           core.BettingIntent `json:"intent"`
	Contest          core.Contest       `json:"contest"`
	Creator          core.Party         `json:"creator"`
	ContestVerified  bool               `json:"contestVerified"`
	StakedMinorUnits string             `json:"stakedMinorUnits"`
	TxHash           string             `json:"txHash,omitempty"`
	MintedArtifactID string             `json:"mintedArtifactId,omitempty"`
	StagedAt         time.Time          `json:"stagedAt"`
	FinalizedAt      *time.Time         `json:"finalizedAt,omitempty"`
}

// Result is what one commit attempt produces. On failure the original intent
// rides along inside Failure so the caller can offer "try again" without
// re-asking completed slots.
type Result struct {
	Success bool `json:"success"`

	WagerID          string      `json:"wagerId,omitempty"`
	MintedArtifactID string      `json:"mintedArtifactId,omitempty"`
	TxHash           string      `json:"txHash,omitempty"`
	ProofURI         string      `json:"proofUri,omitempty"`
	QRCodeURI        string      `json:"qrCodeUri,omitempty"`
	Wager            *core.Wager `json:"wager,omitempty"`

	// StagingKey is the provisional metadata key. After a post-staging
	// failure the object stays behind as a known orphan.
	StagingKey string `json:"stagingKey,omitempty"`

	Failure *core.PipelineError `json:"-"`
	Stages  []StageResult       `json:"stages,omitempty"`
}

// Orchestrator runs commits. It is stateless across calls; every Commit is
// independent and issues at most one ledger write.
type Orchestrator struct {
	cfg    *Config
	meta   store.Store
	blobs  store.BlobStore
	ledger ledger.Ledger
	proofs *proof.Generator
	log    *zap.Logger

	now     func() time.Time
	onStage func(StageResult)
}

// NewOrchestrator wires a commit pipeline. A nil cfg uses defaults; a nil
// logger disables logging.
func NewOrchestrator(cfg *Config, meta store.Store, blobs store.BlobStore, lgr ledger.Ledger, proofs *proof.Generator, log *zap.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = DefaultConfig().LedgerTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		cfg:    cfg,
		meta:   meta,
		blobs:  blobs,
		ledger: lgr,
		proofs: proofs,
		log:    log,
		now:    time.Now,
	}
}

// OnStage sets a callback fired after every executed stage.
func (o *Orchestrator) OnStage(fn func(StageResult)) {
	o.onStage = fn
}

// Commit runs the full two-phase write for a confirmed intent.
//
// Stage order and failure mapping:
//
//	validate     -> ValidationFailure (nothing written)
//	staging      -> StagingFailure (no ledger side effect, safe to retry)
//	ledger write -> LedgerTimeout (tx may have landed, never auto-retried)
//	             -> LedgerRejected (retryable with the same staged metadata)
//	finalize     -> FinalizeFailure (the wager exists; regenerate, don't re-commit)
//	artifact     -> FinalizeFailure (same: funds are committed)
func (o *Orchestrator) Commit(ctx context.Context, intent core.BettingIntent, contest core.Contest, creator core.Party) Result {
	var res Result

	// Validate.
	start := o.now()
	if !intent.Complete() {
		res.Failure = core.Fail(core.FailureValidation, intent, "intent is missing required fields")
		o.record(&res, StageValidate, start, res.Failure)
		return res
	}
	if contest.ID == "" {
		res.Failure = core.Fail(core.FailureValidation, intent, "commit requires a resolved contest")
		o.record(&res, StageValidate, start, res.Failure)
		return res
	}
	o.record(&res, StageValidate, start, nil)

	currency := intent.CurrencyOrDefault()
	minorUnits := ledger.MinorUnits(intent.Amount, currency)

	// Stage: provisional metadata under a temp key. Failure here aborts
	// before any ledger interaction.
	start = o.now()
	stagingKey := store.TempKey(o.now())
	doc := Metadata{
		Intent:           intent,
		Contest:          contest,
		Creator:          creator,
		ContestVerified:  !contest.Synthesized(),
		StakedMinorUnits: minorUnits.String(),
		StagedAt:         o.now().UTC(),
	}
	stagedURI, err := o.meta.Upload(ctx, stagingKey, doc)
	if err != nil {
		res.Failure = core.FailWrap(core.FailureStaging, intent, "staging the wager metadata failed", err)
		o.record(&res, StageStaging, start, res.Failure)
		return res
	}
	res.StagingKey = stagingKey
	o.record(&res, StageStaging, start, nil)

	// Ledger write: exactly one attempt under a hard timeout.
	start = o.now()
	lctx, cancel := context.WithTimeout(ctx, o.cfg.LedgerTimeout)
	receipt, err := o.ledger.CreateWager(lctx, ledger.CreateRequest{
		ContestID:        contest.ID,
		Selection:        intent.Competitor,
		AmountMinorUnits: minorUnits,
		MetadataURI:      stagedURI,
		Native:           currency.IsNative(),
	})
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			pe := core.FailWrap(core.FailureLedgerTimeout, intent,
				fmt.Sprintf("ledger write exceeded %s; the transaction may still land", o.cfg.LedgerTimeout), err)
			pe.TxMayHaveLanded = true
			res.Failure = pe
			o.log.Warn("ledger write timed out; provisional metadata orphaned",
				zap.String("stagingKey", stagingKey),
				zap.Duration("timeout", o.cfg.LedgerTimeout))
		} else {
			res.Failure = core.FailWrap(core.FailureLedgerRejected, intent, "ledger rejected the wager", err)
		}
		o.record(&res, StageLedgerWrite, start, res.Failure)
		return res
	}
	o.record(&res, StageLedgerWrite, start, nil)

	res.WagerID = receipt.WagerID
	res.MintedArtifactID = receipt.MintedArtifactID
	res.TxHash = receipt.TxHash

	// Finalize: the same document under the canonical key, ids filled in.
	// The temp object becomes an orphan; cleanup is an operational task.
	start = o.now()
	finalizedAt := o.now().UTC()
	doc.WagerID = receipt.WagerID
	doc.TxHash = receipt.TxHash
	doc.MintedArtifactID = receipt.MintedArtifactID
	doc.FinalizedAt = &finalizedAt
	canonicalURI, err := o.meta.Upload(ctx, receipt.WagerID, doc)
	if err != nil {
		pe := core.FailWrap(core.FailureFinalize, intent, "the wager exists on the ledger but its metadata finalize failed", err)
		pe.WagerExists = true
		res.Failure = pe
		o.record(&res, StageFinalize, start, res.Failure)
		return res
	}
	o.record(&res, StageFinalize, start, nil)

	// Artifact: share URL plus the scannable image.
	start = o.now()
	shareURL, qrURI, err := o.proofs.Publish(ctx, o.blobs, receipt.WagerID)
	res.ProofURI = o.proofs.ShareURL(receipt.WagerID)
	if err != nil {
		pe := core.FailWrap(core.FailureFinalize, intent, "the wager exists but its proof artifact could not be rendered", err)
		pe.WagerExists = true
		res.Failure = pe
		o.record(&res, StageArtifact, start, res.Failure)
		return res
	}
	res.ProofURI = shareURL
	res.QRCodeURI = qrURI
	o.record(&res, StageArtifact, start, nil)

	res.Success = true
	res.Wager = &core.Wager{
		ID:                    receipt.WagerID,
		ContestID:             contest.ID,
		Creator:               creator,
		Amount:                intent.Amount,
		Currency:              currency,
		Status:                core.WagerOpen,
		SelectedParticipantID: intent.Competitor,
		MetadataURI:           canonicalURI,
		ProofURI:              shareURL,
		MintedArtifactID:      receipt.MintedArtifactID,
		ContestVerified:       !contest.Synthesized(),
		CreatedAt:             finalizedAt,
	}

	o.log.Info("wager committed",
		zap.String("wagerId", receipt.WagerID),
		zap.String("tx", receipt.TxHash),
		zap.String("amount", intent.Amount.String()),
		zap.String("currency", string(currency)),
		zap.Bool("contestVerified", !contest.Synthesized()))
	return res
}

// record appends a stage trace and fires the callback.
func (o *Orchestrator) record(res *Result, stage Stage, start time.Time, failure *core.PipelineError) {
	sr := StageResult{
		Stage:     stage,
		Success:   failure == nil,
		Duration:  o.now().Sub(start),
		Timestamp: start,
	}
	if failure != nil {
		sr.Error = failure.Error()
	}
	res.Stages = append(res.Stages, sr)
	if o.onStage != nil {
		o.onStage(sr)
	}
}
