// Package contest resolves a completed intent to the sporting event the
// wager will reference. Catalog-backed events are preferred; when none fits,
// a placeholder contest is synthesized and tagged so every downstream
// consumer can disclose that the event is unverified.
package contest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phenomenon0/daredevil-core/core"
)

// ErrNoSport is returned when the criteria carry no sport at all; the
// dialogue engine should have filled it before resolution.
var ErrNoSport = errors.New("contest: criteria name no sport")

// Catalog serves known contests for a sport, in a stable order. The resolver
// treats catalog errors as an empty catalog rather than failing resolution.
type Catalog interface {
	ContestsBySport(ctx context.Context, sport string) ([]core.Contest, error)
}

// Criteria is what the resolver matches against.
type Criteria struct {
	Sport        string
	Participants []string
}

// Resolver picks the contest for a wager: the first eligible catalog entry
// in catalog order, with no ranking or scoring, or a synthesized placeholder
// when the catalog offers nothing usable.
type Resolver struct {
	catalog Catalog
	now     func() time.Time
}

// Option tunes resolver construction.
type Option func(*Resolver)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver builds a resolver over the given catalog. A nil catalog means
// every resolution synthesizes.
func NewResolver(catalog Catalog, opts ...Option) *Resolver {
	r := &Resolver{catalog: catalog, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the contest a wager on these criteria should reference.
// It only fails when the criteria name no sport; catalog problems degrade to
// synthesis instead of surfacing.
func (r *Resolver) Resolve(ctx context.Context, c Criteria) (core.Contest, error) {
	sport := strings.ToLower(strings.TrimSpace(c.Sport))
	if sport == "" {
		return core.Contest{}, ErrNoSport
	}

	if r.catalog != nil {
		contests, err := r.catalog.ContestsBySport(ctx, sport)
		if err == nil {
			now := r.now()
			for _, contest := range contests {
				if r.eligible(contest, c, now) {
					contest.Source = core.ContestCatalog
					return contest, nil
				}
			}
		}
	}

	return r.synthesize(sport, c), nil
}

// eligible: the contest has not started, and when the criteria name
// participants the contest either lists one of them or lists none at all.
func (r *Resolver) eligible(contest core.Contest, c Criteria, now time.Time) bool {
	if !contest.ScheduledAt.After(now) {
		return false
	}
	if len(c.Participants) == 0 || len(contest.Participants) == 0 {
		return true
	}
	for _, want := range c.Participants {
		for _, have := range contest.Participants {
			if participantMatch(have, want) {
				return true
			}
		}
	}
	return false
}

// participantMatch compares names loosely: case-insensitive, and either side
// may be a partial form of the other ("verstappen" vs "Max Verstappen").
func participantMatch(a, b string) bool {
	la := strings.ToLower(strings.TrimSpace(a))
	lb := strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return false
	}
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

// synthesize builds the placeholder contest: fresh id, scheduled 24h out,
// participants echoed from the criteria, tagged as synthesized.
func (r *Resolver) synthesize(sport string, c Criteria) core.Contest {
	return core.Contest{
		ID:           "synth-" + uuid.NewString(),
		SportTag:     sport,
		Participants: append([]string(nil), c.Participants...),
		ScheduledAt:  r.now().Add(24 * time.Hour),
		Source:       core.ContestSynthesized,
	}
}
