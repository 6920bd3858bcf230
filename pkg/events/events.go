// Package events publishes wager lifecycle notifications to Kafka for
// downstream consumers such as settlement and notification workers.
package events

// WagerCommitted is emitted once a wager is finalized on the ledger.
type WagerCommitted struct {
	WagerID     string `json:"wager_id"`
	OwnerID     string `json:"owner_id"`
	ContestID   string `json:"contest_id"`
	Selection   string `json:"selection"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	RiskTier    string `json:"risk_tier"`
	TxHash      string `json:"tx_hash"`
	ProofURI    string `json:"proof_uri"`
	Synthesized bool   `json:"synthesized"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
