package ledger

import (
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// wagerCreatedSig is the topic hash of WagerCreated(uint256,uint256,address).
var wagerCreatedSig = crypto.Keccak256Hash([]byte("WagerCreated(uint256,uint256,address)"))

// ParseWagerCreated scans receipt logs for the registry's WagerCreated event
// and returns the ledger-assigned ids as decimal strings. Logs from other
// contracts or events are skipped; ok is false when no matching event exists.
func ParseWagerCreated(logs []*types.Log) (wagerID, artifactID string, ok bool) {
	for _, lg := range logs {
		if lg == nil || len(lg.Topics) < 3 {
			continue
		}
		if lg.Topics[0] != wagerCreatedSig {
			continue
		}
		return lg.Topics[1].Big().String(), lg.Topics[2].Big().String(), true
	}
	return "", "", false
}
