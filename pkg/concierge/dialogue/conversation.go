package dialogue

import (
	"github.com/phenomenon0/daredevil-core/core"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/intent"
)

// Conversation carries everything the engine needs to pick the next guiding
// question for one bettor. The engine never stores conversations itself;
// callers own the lifecycle and hand the same value back turn after turn.
type Conversation struct {
	OwnerID string

	Intent core.BettingIntent
	Source intent.Source

	// KnownCompetitors is the roster the conversation can offer when the
	// bettor asks who is available, keyed by competitor ID.
	KnownCompetitors map[string]core.Competitor

	// CandidateContests is filled in by the caller once a sport is known.
	CandidateContests []core.Contest

	// Risk holds the most recent gate verdict, if any.
	Risk *core.RiskAssessment

	// Confirmed is set exactly once, by an affirmative confirmation answer.
	// After that the intent is frozen and ApplyAnswer rejects everything.
	Confirmed bool

	// changeRequested routes the next turn to the change-request question
	// instead of the slot priority order.
	changeRequested bool

	// toleranceDone records that the optional risk tolerance question was
	// answered or skipped, so it is never asked twice.
	toleranceDone bool

	retries map[string]int
}

// NewConversation starts a conversation from an extraction result.
func NewConversation(ownerID string, res intent.Result) *Conversation {
	c := &Conversation{
		OwnerID:          ownerID,
		Intent:           res.Intent,
		Source:           res.Source,
		KnownCompetitors: make(map[string]core.Competitor),
		retries:          make(map[string]int),
	}
	c.seedRoster()
	return c
}

// seedRoster loads the competitor roster for the intent's sport, when known.
func (c *Conversation) seedRoster() {
	if !c.Intent.HasSport() {
		return
	}
	for _, comp := range intent.KnownCompetitors(c.Intent.Sport) {
		if _, ok := c.KnownCompetitors[comp.ID]; !ok {
			c.KnownCompetitors[comp.ID] = comp
		}
	}
}

// Retries reports how many invalid answers the given question has absorbed.
func (c *Conversation) Retries(questionID string) int {
	return c.retries[questionID]
}

func (c *Conversation) bumpRetries(questionID string) int {
	c.retries[questionID]++
	return c.retries[questionID]
}
