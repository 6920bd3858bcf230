package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/phenomenon0/daredevil-core/core"
)

// DryRunLedger simulates the registry contract in process: sequential ids,
// synthetic transaction hashes, no chain. It lets the rest of the pipeline
// run end to end without an RPC endpoint, and gives tests levers for latency
// and failure.
type DryRunLedger struct {
	mu     sync.Mutex
	seq    int64
	wagers []DryRunWager

	latency time.Duration
	fail    error
}

// DryRunWager is the in-memory record of one simulated creation.
type DryRunWager struct {
	WagerID     string
	ContestID   string
	Selection   string
	Amount      *big.Int
	MetadataURI string
	Native      bool
	CreatedAt   time.Time
}

// DryRunOption configures the simulator.
type DryRunOption func(*DryRunLedger)

// WithSimulatedLatency makes every CreateWager take at least d, honoring the
// caller's context so timeout handling can be exercised.
func WithSimulatedLatency(d time.Duration) DryRunOption {
	return func(l *DryRunLedger) { l.latency = d }
}

// WithSimulatedFailure makes every CreateWager fail with err.
func WithSimulatedFailure(err error) DryRunOption {
	return func(l *DryRunLedger) { l.fail = err }
}

// NewDryRunLedger builds a fresh simulator.
func NewDryRunLedger(opts ...DryRunOption) *DryRunLedger {
	l := &DryRunLedger{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CreateWager mimics the contract write: optional latency, optional injected
// failure, then a sequential id. Ids carry a dry- prefix so a simulated
// wager can never be mistaken for a chain-assigned one.
func (l *DryRunLedger) CreateWager(ctx context.Context, req CreateRequest) (core.LedgerReceipt, error) {
	if req.AmountMinorUnits == nil || req.AmountMinorUnits.Sign() <= 0 {
		return core.LedgerReceipt{}, fmt.Errorf("ledger: amount must be positive")
	}

	if l.latency > 0 {
		select {
		case <-ctx.Done():
			return core.LedgerReceipt{}, ctx.Err()
		case <-time.After(l.latency):
		}
	}
	if err := ctx.Err(); err != nil {
		return core.LedgerReceipt{}, err
	}
	if l.fail != nil {
		return core.LedgerReceipt{}, l.fail
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	record := DryRunWager{
		WagerID:     fmt.Sprintf("dry-%d", l.seq),
		ContestID:   req.ContestID,
		Selection:   req.Selection,
		Amount:      new(big.Int).Set(req.AmountMinorUnits),
		MetadataURI: req.MetadataURI,
		Native:      req.Native,
		CreatedAt:   time.Now(),
	}
	l.wagers = append(l.wagers, record)

	return core.LedgerReceipt{
		WagerID:          record.WagerID,
		MintedArtifactID: fmt.Sprintf("art-%d", l.seq),
		TxHash:           fmt.Sprintf("0x%064x", l.seq),
		BlockNumber:      uint64(7_000_000 + l.seq),
		GasUsed:          180_000,
	}, nil
}

// Wagers returns a copy of everything created so far.
func (l *DryRunLedger) Wagers() []DryRunWager {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]DryRunWager(nil), l.wagers...)
}

// Reset clears the simulator back to an empty ledger.
func (l *DryRunLedger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq = 0
	l.wagers = nil
}
