package concierge

import (
	"sync"
	"time"

	"github.com/phenomenon0/daredevil-core/core"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/commit"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/dialogue"
)

// Session status values, derived from session state rather than stored.
const (
	StatusGathering   = "gathering"
	StatusAwaitingAck = "awaiting_ack"
	StatusCommitting  = "committing"
	StatusCommitted   = "committed"
	StatusFailed      = "failed"
	StatusCancelled   = "cancelled"
)

// Session is one bettor's conversation, from first utterance to committed
// wager. All access goes through its mutex; the service holds it for the
// duration of a turn.
type Session struct {
	mu sync.Mutex

	ID        string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Conv is nil until an utterance yields an extraction; until then every
	// message is treated as a fresh bet statement.
	Conv      *dialogue.Conversation
	Utterance string

	Risk    *core.RiskAssessment
	Contest *core.Contest
	Commit  *commit.Result

	// ackDone records the explicit risk acknowledgment for blocked tiers.
	ackDone bool

	// committing guards against a second commit racing the first.
	committing bool

	Cancelled bool

	History []Turn
}

func (s *Session) status() string {
	switch {
	case s.Cancelled:
		return StatusCancelled
	case s.committing:
		return StatusCommitting
	case s.Commit != nil && s.Commit.Success:
		return StatusCommitted
	case s.Commit != nil:
		return StatusFailed
	case s.awaitingAck():
		return StatusAwaitingAck
	default:
		return StatusGathering
	}
}

// awaitingAck reports whether the session is parked on the explicit risk
// acknowledgment step.
func (s *Session) awaitingAck() bool {
	return s.Conv != nil && s.Conv.Confirmed &&
		s.Risk != nil && !s.Risk.MayAutoProceed &&
		!s.ackDone && s.Commit == nil
}

// remember appends one transcript entry, keeping at most max.
func (s *Session) remember(role, text string, max int) {
	s.History = append(s.History, Turn{Role: role, Text: text, At: time.Now()})
	if max > 0 && len(s.History) > max {
		s.History = s.History[len(s.History)-max:]
	}
}

// view snapshots the session for API clients. Caller holds the session lock.
func (s *Session) view(completion float64) SessionView {
	v := SessionView{
		ID:         s.ID,
		OwnerID:    s.OwnerID,
		Status:     s.status(),
		Completion: completion,
		Risk:       s.Risk,
		Contest:    s.Contest,
		Commit:     s.Commit,
		History:    append([]Turn(nil), s.History...),
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
	if s.Conv != nil {
		v.Intent = s.Conv.Intent
		v.Source = string(s.Conv.Source)
	}
	return v
}
