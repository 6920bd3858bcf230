package f1data

import (
	"strconv"
	"time"
)

// Event is one round of a season schedule.
type Event struct {
	Round    int       `json:"round"`
	Name     string    `json:"name"`
	Circuit  string    `json:"circuit"`
	Locality string    `json:"locality"`
	Country  string    `json:"country"`
	StartsAt time.Time `json:"startsAt"`
}

// QualifyingResult is one driver's final qualifying classification.
type QualifyingResult struct {
	Position int    `json:"position"`
	Driver   string `json:"driver"`
	Team     string `json:"team"`
	Q1       string `json:"q1,omitempty"`
	Q2       string `json:"q2,omitempty"`
	Q3       string `json:"q3,omitempty"`
}

// The upstream API wraps everything in an MRData envelope and serializes
// numbers as strings.
type mrDataEnvelope struct {
	MRData struct {
		RaceTable struct {
			Season string     `json:"season"`
			Races  []raceWire `json:"Races"`
		} `json:"RaceTable"`
	} `json:"MRData"`
}

type raceWire struct {
	Round    string `json:"round"`
	RaceName string `json:"raceName"`
	Circuit  struct {
		CircuitName string `json:"circuitName"`
		Location    struct {
			Locality string `json:"locality"`
			Country  string `json:"country"`
		} `json:"Location"`
	} `json:"Circuit"`
	Date              string      `json:"date"`
	Time              string      `json:"time"`
	QualifyingResults []qualiWire `json:"QualifyingResults"`
}

type qualiWire struct {
	Position string `json:"position"`
	Driver   struct {
		GivenName  string `json:"givenName"`
		FamilyName string `json:"familyName"`
	} `json:"Driver"`
	Constructor struct {
		Name string `json:"name"`
	} `json:"Constructor"`
	Q1 string `json:"Q1"`
	Q2 string `json:"Q2"`
	Q3 string `json:"Q3"`
}

func (r raceWire) toEvent() (Event, bool) {
	round, err := strconv.Atoi(r.Round)
	if err != nil {
		return Event{}, false
	}
	ev := Event{
		Round:    round,
		Name:     r.RaceName,
		Circuit:  r.Circuit.CircuitName,
		Locality: r.Circuit.Location.Locality,
		Country:  r.Circuit.Location.Country,
	}
	ev.StartsAt = parseRaceTime(r.Date, r.Time)
	return ev, !ev.StartsAt.IsZero()
}

func (q qualiWire) toResult() (QualifyingResult, bool) {
	pos, err := strconv.Atoi(q.Position)
	if err != nil {
		return QualifyingResult{}, false
	}
	name := q.Driver.GivenName
	if q.Driver.FamilyName != "" {
		if name != "" {
			name += " "
		}
		name += q.Driver.FamilyName
	}
	return QualifyingResult{
		Position: pos,
		Driver:   name,
		Team:     q.Constructor.Name,
		Q1:       q.Q1,
		Q2:       q.Q2,
		Q3:       q.Q3,
	}, true
}

// parseRaceTime combines the feed's separate date and time fields. Sessions
// without a published start time land at midnight UTC of the race date.
func parseRaceTime(date, clock string) time.Time {
	if date == "" {
		return time.Time{}
	}
	if clock != "" {
		if t, err := time.Parse("2006-01-02 15:04:05Z", date+" "+clock); err == nil {
			return t
		}
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}
	}
	return t
}
