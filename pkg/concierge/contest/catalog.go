package contest

import (
	"context"
	"strings"

	"github.com/phenomenon0/daredevil-core/core"
)

// StaticCatalog serves a fixed, ordered list of contests. It backs tests and
// deployments that run without a live schedule feed.
type StaticCatalog struct {
	contests []core.Contest
}

// NewStaticCatalog keeps the given contests in the given order; the resolver
// depends on that order for first-match semantics.
func NewStaticCatalog(contests ...core.Contest) *StaticCatalog {
	return &StaticCatalog{contests: append([]core.Contest(nil), contests...)}
}

// ContestsBySport filters by sport tag, preserving insertion order.
func (s *StaticCatalog) ContestsBySport(_ context.Context, sport string) ([]core.Contest, error) {
	var out []core.Contest
	for _, c := range s.contests {
		if strings.EqualFold(c.SportTag, sport) {
			out = append(out, c)
		}
	}
	return out, nil
}
