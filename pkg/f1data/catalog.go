package f1data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phenomenon0/daredevil-core/core"
)

// Catalog adapts the season schedule to the contest resolver. It serves only
// the f1 sport tag; other sports fall through to synthesis.
type Catalog struct {
	client *Client
	season func() int
}

// NewCatalog wraps client as a contest catalog for the current season.
func NewCatalog(client *Client) *Catalog {
	return &Catalog{
		client: client,
		season: func() int { return time.Now().Year() },
	}
}

// WithSeason pins the catalog to one season. Used by tests and replays.
func (c *Catalog) WithSeason(year int) *Catalog {
	c.season = func() int { return year }
	return c
}

func (c *Catalog) ContestsBySport(ctx context.Context, sport string) ([]core.Contest, error) {
	if !strings.EqualFold(sport, "f1") {
		return nil, nil
	}
	year := c.season()
	events, err := c.client.Schedule(ctx, year)
	if err != nil {
		return nil, err
	}
	contests := make([]core.Contest, 0, len(events))
	for _, ev := range events {
		contests = append(contests, core.Contest{
			ID:          fmt.Sprintf("f1-%d-r%02d", year, ev.Round),
			SportTag:    "f1",
			ScheduledAt: ev.StartsAt,
			VenueLabel:  venueLabel(ev),
			Source:      core.ContestCatalog,
		})
	}
	return contests, nil
}

func venueLabel(ev Event) string {
	label := ev.Name
	if ev.Locality != "" {
		label += ", " + ev.Locality
	}
	if ev.Country != "" {
		label += " (" + ev.Country + ")"
	}
	return label
}
