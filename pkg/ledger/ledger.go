// Package ledger is the write path to the wager contract. The ledger assigns
// the canonical wager id, so nothing upstream may invent one; callers stage
// metadata first, write here, then finalize under the id this package
// returns.
package ledger

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/daredevil-core/core"
)

// CreateRequest carries one wager-creation call.
type CreateRequest struct {
	ContestID        string
	Selection        string // the creator's chosen participant
	AmountMinorUnits *big.Int
	MetadataURI      string

	// Native marks stakes denominated in the chain token, which ride along
	// as transaction value instead of a token allowance.
	Native bool
}

// Ledger creates wagers against the chain. Implementations must honor the
// caller's context deadline; the commit flow imposes a hard timeout and
// treats its expiry as "the transaction may still land".
type Ledger interface {
	CreateWager(ctx context.Context, req CreateRequest) (core.LedgerReceipt, error)
}

// decimalsFor maps a currency to its minor-unit exponent: the native token
// uses 18, the stable denominations settle with 6.
func decimalsFor(c core.Currency) int32 {
	if c.IsNative() {
		return 18
	}
	return 6
}

// MinorUnits converts a human amount into the integer representation the
// contract expects. Sub-minor precision is truncated, never rounded up, so a
// user is never charged more than they typed.
func MinorUnits(amount decimal.Decimal, currency core.Currency) *big.Int {
	return amount.Shift(decimalsFor(currency)).Truncate(0).BigInt()
}
