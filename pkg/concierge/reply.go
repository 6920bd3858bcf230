package concierge

import (
	"fmt"
	"strings"
	"time"

	"github.com/phenomenon0/daredevil-core/core"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/commit"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/dialogue"
)

// Reply is the service's answer to one chat turn. Fields are populated as
// the pipeline advances: early turns carry a question, later ones the risk
// verdict and finally the commit result.
type Reply struct {
	SessionID  string                `json:"sessionId"`
	Message    string                `json:"message"`
	Question   *core.GuidingQuestion `json:"question,omitempty"`
	Completion float64               `json:"completion"`
	Intent     *core.BettingIntent   `json:"intent,omitempty"`
	Risk       *core.RiskAssessment  `json:"risk,omitempty"`

	// RequiresAck is set when the risk gate blocked auto-proceed and the
	// bettor must explicitly accept before the wager is committed.
	RequiresAck bool `json:"requiresAck,omitempty"`

	Contest *core.Contest  `json:"contest,omitempty"`
	Commit  *commit.Result `json:"commit,omitempty"`
	Failure *FailureView   `json:"failure,omitempty"`

	// Done marks a terminal session: committed or cancelled.
	Done bool `json:"done,omitempty"`
}

// FailureView is the wire shape of a PipelineError. The underlying cause is
// collapsed into the message; the intent echo lets clients offer "try again"
// without re-collecting slots.
type FailureView struct {
	Code            string             `json:"code"`
	Message         string             `json:"message"`
	Intent          core.BettingIntent `json:"intent"`
	TxMayHaveLanded bool               `json:"txMayHaveLanded,omitempty"`
	WagerExists     bool               `json:"wagerExists,omitempty"`
	Retryable       bool               `json:"retryable"`
}

func failureView(pe *core.PipelineError) *FailureView {
	if pe == nil {
		return nil
	}
	msg := pe.Message
	if pe.Err != nil {
		msg = fmt.Sprintf("%s: %v", pe.Message, pe.Err)
	}
	return &FailureView{
		Code:            string(pe.Code),
		Message:         msg,
		Intent:          pe.Intent,
		TxMayHaveLanded: pe.TxMayHaveLanded,
		WagerExists:     pe.WagerExists,
		Retryable:       pe.Retryable(),
	}
}

// Turn is one entry in a session's chat transcript.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// SessionView is the read-only snapshot served to API clients.
type SessionView struct {
	ID         string               `json:"id"`
	OwnerID    string               `json:"ownerId"`
	Status     string               `json:"status"`
	Intent     core.BettingIntent   `json:"intent"`
	Source     string               `json:"source"`
	Completion float64              `json:"completion"`
	Risk       *core.RiskAssessment `json:"risk,omitempty"`
	Contest    *core.Contest        `json:"contest,omitempty"`
	Commit     *commit.Result       `json:"commit,omitempty"`
	History    []Turn               `json:"history,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

func intentEcho(c *dialogue.Conversation) *core.BettingIntent {
	if c == nil {
		return nil
	}
	in := c.Intent
	return &in
}

// riskMessage renders a blocked assessment with the acknowledgment
// instruction appended.
func riskMessage(a *core.RiskAssessment) string {
	parts := append(append([]string{}, a.Rationale...), a.Warnings...)
	msg := strings.Join(parts, " ")
	return msg + ` Reply "accept" to place it anyway, or "cancel" to stop.`
}

// commitFailureMessage renders the user-facing text for a failed commit.
func commitFailureMessage(res *commit.Result) string {
	fail := res.Failure
	if fail == nil {
		return "The commit failed."
	}
	switch fail.Code {
	case core.FailureStaging:
		return `I couldn't stage your wager metadata, so nothing reached the ledger. Reply "retry" to try again.`
	case core.FailureLedgerTimeout:
		return `The ledger write timed out. The transaction may still land, so I won't retry on my own. Check the chain before replying "retry".`
	case core.FailureLedgerRejected:
		return `The ledger rejected the wager. Reply "retry" to resubmit the same bet.`
	case core.FailureFinalize:
		if res.WagerID != "" {
			return fmt.Sprintf("Your wager %s is live on the ledger, but I couldn't finish the paperwork. The bet stands; no new commit is needed.", res.WagerID)
		}
		return "Your wager is live on the ledger, but I couldn't finish the paperwork. The bet stands; no new commit is needed."
	case core.FailureValidation:
		return fmt.Sprintf("The wager could not be committed: %s.", fail.Message)
	default:
		return fmt.Sprintf("The commit failed: %s.", fail.Message)
	}
}

func commitSuccessMessage(res *commit.Result) string {
	return fmt.Sprintf("Done! Wager %s is on the ledger. Share your proof: %s", res.WagerID, res.ProofURI)
}
