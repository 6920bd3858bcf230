package intent

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/phenomenon0/daredevil-core/core"
)

var (
	// "$50", "$ 12.5"
	dollarAmountPattern = regexp.MustCompile(`\$\s*(\d+(?:\.\d+)?)`)
	// "50", "12.5 usd", "25 core", "100 bucks"
	amountPattern = regexp.MustCompile(`\b(\d+(?:\.\d+)?)(?:\s*(usdc|usdt|usd|core|dollars?|bucks?))?\b`)
	// thousands separators: "1,500" -> "1500"
	thousandsPattern = regexp.MustCompile(`(\d),(\d)`)
)

// tableEntry maps an utterance keyword to a canonical competitor and sport.
type tableEntry struct {
	keyword    string
	competitor string
	sport      string
}

// competitorTable is scanned in order; the first keyword found in the
// utterance wins. The fixed order keeps extraction deterministic.
var competitorTable = []tableEntry{
	// F1 drivers
	{"verstappen", "max verstappen", "f1"},
	{"hamilton", "lewis hamilton", "f1"},
	{"leclerc", "charles leclerc", "f1"},
	{"norris", "lando norris", "f1"},
	{"piastri", "oscar piastri", "f1"},
	{"russell", "george russell", "f1"},
	{"sainz", "carlos sainz", "f1"},
	{"alonso", "fernando alonso", "f1"},
	{"perez", "sergio perez", "f1"},
	{"gasly", "pierre gasly", "f1"},
	{"ocon", "esteban ocon", "f1"},
	{"albon", "alexander albon", "f1"},
	{"tsunoda", "yuki tsunoda", "f1"},
	{"stroll", "lance stroll", "f1"},
	{"hulkenberg", "nico hulkenberg", "f1"},
	{"antonelli", "kimi antonelli", "f1"},
	{"bearman", "oliver bearman", "f1"},

	// Premier League clubs
	{"arsenal", "arsenal", "soccer"},
	{"liverpool", "liverpool", "soccer"},
	{"chelsea", "chelsea", "soccer"},
	{"manchester united", "manchester united", "soccer"},
	{"man united", "manchester united", "soccer"},
	{"man utd", "manchester united", "soccer"},
	{"manchester city", "manchester city", "soccer"},
	{"man city", "manchester city", "soccer"},
	{"tottenham", "tottenham", "soccer"},
	{"spurs", "tottenham", "soccer"},
	{"newcastle", "newcastle united", "soccer"},
	{"aston villa", "aston villa", "soccer"},
	{"west ham", "west ham", "soccer"},
	{"everton", "everton", "soccer"},
	{"brighton", "brighton", "soccer"},
	{"wolves", "wolves", "soccer"},
	{"fulham", "fulham", "soccer"},
	{"brentford", "brentford", "soccer"},
	{"crystal palace", "crystal palace", "soccer"},
	{"bournemouth", "bournemouth", "soccer"},
	{"nottingham", "nottingham forest", "soccer"},

	// NBA teams
	{"lakers", "los angeles lakers", "basketball"},
	{"celtics", "boston celtics", "basketball"},
	{"warriors", "golden state warriors", "basketball"},
	{"knicks", "new york knicks", "basketball"},
	{"bulls", "chicago bulls", "basketball"},
	{"heat", "miami heat", "basketball"},
	{"nuggets", "denver nuggets", "basketball"},
	{"bucks", "milwaukee bucks", "basketball"},
	{"mavericks", "dallas mavericks", "basketball"},
	{"thunder", "oklahoma city thunder", "basketball"},
	{"cavaliers", "cleveland cavaliers", "basketball"},
	{"suns", "phoenix suns", "basketball"},
	{"clippers", "la clippers", "basketball"},
	{"sixers", "philadelphia 76ers", "basketball"},
	{"raptors", "toronto raptors", "basketball"},
}

// sportKeywords catches sport mentions without a named competitor.
var sportKeywords = []struct {
	keyword string
	sport   string
}{
	{"formula 1", "f1"},
	{"formula one", "f1"},
	{"grand prix", "f1"},
	{"f1", "f1"},
	{"premier league", "soccer"},
	{"soccer", "soccer"},
	{"football", "soccer"},
	{"basketball", "basketball"},
	{"nba", "basketball"},
}

// normalizeUtterance lowercases, strips accents, collapses whitespace and
// removes thousands separators so table keywords and regexes match cleanly.
func normalizeUtterance(s string) string {
	s = strings.ToLower(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, _ = transform.String(t, s)

	s = thousandsPattern.ReplaceAllString(s, "$1$2")
	return strings.Join(strings.Fields(s), " ")
}

// ParseAmount pulls a stake and optional currency out of free text, after
// stripping currency-symbol noise. Reports false when no positive number is
// present.
func ParseAmount(text string) (decimal.Decimal, core.Currency, bool) {
	t := normalizeUtterance(text)
	if t == "" {
		return decimal.Zero, "", false
	}

	if m := dollarAmountPattern.FindStringSubmatch(t); m != nil {
		if amt, err := decimal.NewFromString(m[1]); err == nil && amt.IsPositive() {
			return amt, core.CurrencyUSD, true
		}
	}
	if m := amountPattern.FindStringSubmatch(t); m != nil {
		if amt, err := decimal.NewFromString(m[1]); err == nil && amt.IsPositive() {
			var cur core.Currency
			if m[2] != "" {
				if c, ok := core.ParseCurrency(m[2]); ok {
					cur = c
				}
			}
			return amt, cur, true
		}
	}
	return decimal.Zero, "", false
}

// FallbackExtract runs the deterministic extraction path: a numeric/currency
// regex plus a keyword scan against the competitor table. It reports false
// when the utterance yields no field at all.
func FallbackExtract(utterance string) (core.BettingIntent, bool) {
	text := normalizeUtterance(utterance)
	if text == "" {
		return core.BettingIntent{}, false
	}

	var in core.BettingIntent
	matched := false

	if amt, cur, ok := ParseAmount(text); ok {
		in.Amount = amt
		in.Currency = cur
		matched = true
	}

	for _, entry := range competitorTable {
		if strings.Contains(text, entry.keyword) {
			in.Competitor = entry.competitor
			in.Sport = entry.sport
			matched = true
			break
		}
	}

	if in.Sport == "" {
		for _, sk := range sportKeywords {
			if strings.Contains(text, sk.keyword) {
				in.Sport = sk.sport
				matched = true
				break
			}
		}
	}

	if !matched {
		return core.BettingIntent{}, false
	}
	return in, true
}

// KnownCompetitors returns the reference competitors for a sport, in table
// order, for seeding conversation state.
func KnownCompetitors(sport string) []core.Competitor {
	var out []core.Competitor
	seen := make(map[string]bool)
	for _, entry := range competitorTable {
		if entry.sport != sport || seen[entry.competitor] {
			continue
		}
		seen[entry.competitor] = true
		out = append(out, core.Competitor{
			ID:    strings.ReplaceAll(entry.competitor, " ", "-"),
			Name:  entry.competitor,
			Sport: entry.sport,
		})
	}
	return out
}

// NormalizeSport maps free-form sport mentions onto the fixed sport set.
func NormalizeSport(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f1", "formula 1", "formula one", "formula1":
		return "f1", true
	case "soccer", "football", "epl", "premier league":
		return "soccer", true
	case "basketball", "nba":
		return "basketball", true
	}
	return "", false
}

// Sports is the fixed option set offered by the dialogue engine.
func Sports() []string { return []string{"f1", "soccer", "basketball"} }

// LookupCompetitor scans the table for a keyword inside the given text and
// returns the canonical competitor when found.
func LookupCompetitor(text string) (core.Competitor, bool) {
	norm := normalizeUtterance(text)
	for _, entry := range competitorTable {
		if strings.Contains(norm, entry.keyword) {
			return core.Competitor{
				ID:    strings.ReplaceAll(entry.competitor, " ", "-"),
				Name:  entry.competitor,
				Sport: entry.sport,
			}, true
		}
	}
	return core.Competitor{}, false
}
