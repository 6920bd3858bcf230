// Package intent converts raw wager utterances into structured betting
// intents, using a language-model extraction path with a deterministic
// regex/keyword fallback.
package intent

import (
	"github.com/phenomenon0/daredevil-core/core"
)

// Source tags where an extraction result came from. Downstream consumers
// branch on the tag, never on field null checks.
type Source string

const (
	// SourceModel: the language model returned a schema-valid intent.
	SourceModel Source = "model"
	// SourceFallback: the deterministic extractor produced the intent.
	SourceFallback Source = "fallback"
	// SourceNone: neither path produced anything usable.
	SourceNone Source = "none"
)

// Result is the tagged outcome of one extraction. The two strategies never
// merge: a model hit carries only model fields, a fallback hit only
// fallback fields.
type Result struct {
	Source Source
	Intent core.BettingIntent
}

// Miss reports whether extraction produced nothing usable.
func (r Result) Miss() bool { return r.Source == SourceNone }
