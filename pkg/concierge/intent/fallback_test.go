package intent

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/daredevil-core/core"
)

func TestFallbackExtract_AmountAndCurrency(t *testing.T) {
	tests := []struct {
		utterance string
		amount    string
		currency  core.Currency
	}{
		{"bet 50", "50", ""},
		{"bet 12.5 usd", "12.5", core.CurrencyUSD},
		{"wager $50 tonight", "50", core.CurrencyUSD},
		{"put 25 core on it", "25", core.CurrencyCORE},
		{"bet 1,500 usd", "1500", core.CurrencyUSD},
		{"throw 100 bucks", "100", core.CurrencyUSD},
		{"stake 75 usdc", "75", core.CurrencyUSDC},
	}

	for _, tt := range tests {
		in, ok := FallbackExtract(tt.utterance)
		if !ok {
			t.Errorf("%q: expected a match", tt.utterance)
			continue
		}
		want, _ := decimal.NewFromString(tt.amount)
		if !in.Amount.Equal(want) {
			t.Errorf("%q: amount = %s, want %s", tt.utterance, in.Amount, want)
		}
		if in.Currency != tt.currency {
			t.Errorf("%q: currency = %q, want %q", tt.utterance, in.Currency, tt.currency)
		}
	}
}

func TestFallbackExtract_CompetitorAndSport(t *testing.T) {
	tests := []struct {
		utterance  string
		competitor string
		sport      string
	}{
		{"bet 50 on Verstappen", "max verstappen", "f1"},
		{"10 on Pérez please", "sergio perez", "f1"},
		{"put 20 on man utd", "manchester united", "soccer"},
		{"lakers to win", "los angeles lakers", "basketball"},
		{"I like Hülkenberg here", "nico hulkenberg", "f1"},
	}

	for _, tt := range tests {
		in, ok := FallbackExtract(tt.utterance)
		if !ok {
			t.Errorf("%q: expected a match", tt.utterance)
			continue
		}
		if in.Competitor != tt.competitor {
			t.Errorf("%q: competitor = %q, want %q", tt.utterance, in.Competitor, tt.competitor)
		}
		if in.Sport != tt.sport {
			t.Errorf("%q: sport = %q, want %q", tt.utterance, in.Sport, tt.sport)
		}
	}
}

func TestFallbackExtract_FirstMatchWins(t *testing.T) {
	// Hamilton precedes Arsenal in table order, so the F1 entry wins.
	in, ok := FallbackExtract("bet 30 on hamilton or maybe arsenal")
	if !ok {
		t.Fatal("Expected a match")
	}
	if in.Competitor != "lewis hamilton" {
		t.Errorf("competitor = %q, want %q (fixed scan order)", in.Competitor, "lewis hamilton")
	}
	if in.Sport != "f1" {
		t.Errorf("sport = %q, want f1", in.Sport)
	}
}

func TestFallbackExtract_Deterministic(t *testing.T) {
	first, ok1 := FallbackExtract("bet 30 on hamilton or maybe arsenal")
	second, ok2 := FallbackExtract("bet 30 on hamilton or maybe arsenal")
	if !ok1 || !ok2 {
		t.Fatal("Expected matches")
	}
	if first.Competitor != second.Competitor || first.Sport != second.Sport {
		t.Errorf("Extraction not deterministic: %+v vs %+v", first, second)
	}
}

func TestFallbackExtract_SportOnly(t *testing.T) {
	in, ok := FallbackExtract("bet 20 on the formula 1 race")
	if !ok {
		t.Fatal("Expected a match")
	}
	if in.Sport != "f1" {
		t.Errorf("sport = %q, want f1", in.Sport)
	}
	if in.Competitor != "" {
		t.Errorf("competitor should be empty, got %q", in.Competitor)
	}
}

func TestFallbackExtract_NoMatch(t *testing.T) {
	in, ok := FallbackExtract("hello, how are you today?")
	if ok {
		t.Errorf("Expected a miss, got %+v", in)
	}
	if in.HasAmount() || in.HasCompetitor() || in.HasSport() {
		t.Errorf("Miss must yield an exactly-empty intent, got %+v", in)
	}
}

func TestFallbackExtract_NoAmountInSportToken(t *testing.T) {
	// The "1" inside "f1" must not be read as an amount.
	in, ok := FallbackExtract("bet on f1")
	if !ok {
		t.Fatal("Expected a match")
	}
	if in.HasAmount() {
		t.Errorf("amount = %s, want unset", in.Amount)
	}
}

func TestNormalizeSport(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"F1", "f1", true},
		{"Formula 1", "f1", true},
		{"football", "soccer", true},
		{"NBA", "basketball", true},
		{"curling", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeSport(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeSport(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLookupCompetitor(t *testing.T) {
	comp, ok := LookupCompetitor("I'll take Leclerc")
	if !ok {
		t.Fatal("Expected a table hit")
	}
	if comp.Name != "charles leclerc" || comp.Sport != "f1" {
		t.Errorf("Unexpected competitor: %+v", comp)
	}

	if _, ok := LookupCompetitor("some unknown amateur"); ok {
		t.Error("Expected a miss for unknown competitor")
	}
}

func TestKnownCompetitors_TableOrder(t *testing.T) {
	drivers := KnownCompetitors("f1")
	if len(drivers) == 0 {
		t.Fatal("Expected F1 roster")
	}
	if drivers[0].Name != "max verstappen" {
		t.Errorf("First F1 competitor = %q, want table head", drivers[0].Name)
	}
	for _, d := range drivers {
		if d.Sport != "f1" {
			t.Errorf("Roster leaked other sport: %+v", d)
		}
	}
}
