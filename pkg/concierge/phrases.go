package concierge

import "strings"

// Phrase sets for the turns that sit outside the dialogue engine: risk
// acknowledgment, cancellation, and commit retry. Matching is exact on the
// normalized message, never substring, so "do not cancel" is not a cancel.

var ackPhrases = map[string]bool{
	"accept":                true,
	"i accept":              true,
	"accept the risk":       true,
	"i accept the risk":     true,
	"acknowledge":            true,
	"acknowledged":           true,
	"i acknowledge the risk": true,
	"i understand":           true,
	"i understand the risk":  true,
	"proceed":                true,
	"proceed anyway":         true,
	"place it anyway":        true,
}

var cancelPhrases = map[string]bool{
	"cancel":     true,
	"abort":      true,
	"stop":       true,
	"no":         true,
	"n":          true,
	"nevermind":  true,
	"never mind": true,
	"forget it":  true,
}

var retryPhrases = map[string]bool{
	"retry":     true,
	"try again": true,
	"yes":       true,
	"y":         true,
	"yeah":      true,
	"ok":        true,
	"okay":      true,
	"go ahead":  true,
}

func normalizePhrase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimRight(s, ".!?")
}

// isAcknowledgment reports whether the message explicitly accepts a blocked
// risk assessment. A plain "yes" is deliberately not enough here.
func isAcknowledgment(s string) bool {
	return ackPhrases[normalizePhrase(s)]
}

func isCancel(s string) bool {
	return cancelPhrases[normalizePhrase(s)]
}

func isRetry(s string) bool {
	return retryPhrases[normalizePhrase(s)]
}
