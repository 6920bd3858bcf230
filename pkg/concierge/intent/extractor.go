package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/daredevil-core/core"
	"github.com/phenomenon0/daredevil-core/pkg/llm"
)

// extractionSystemPrompt constrains the model to a strict small JSON object.
const extractionSystemPrompt = `You are a betting intent parser for a sports wagering assistant.
Extract the structured intent from the user's message.

Output format (JSON):
{
  "amount": 0.0,            // stake as a positive number
  "currency": "",           // one of: CORE, USDC, USDT, USD
  "competitor": "",         // who the user wants to back, lowercase full name
  "sport": "",              // one of: f1, soccer, basketball
  "riskTolerance": "",      // optional: conservative, moderate, aggressive
  "confidence": 0.0         // your confidence in this extraction (0-1)
}

Omit any field the message does not state. Never invent an amount or competitor.
Important: Only output valid JSON, nothing else.`

const defaultExtractTimeout = 4 * time.Second

// minimum model confidence recorded for schema-valid extractions
const modelConfidenceFloor = 0.8

// Extractor is the dual-strategy intent extractor. The language model is the
// primary path; the deterministic fallback is authoritative whenever the
// model path yields nothing schema-valid.
type Extractor struct {
	client       llm.Completer
	timeout      time.Duration
	systemPrompt string
	onModelError func(error)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTimeout sets the soft deadline on the model call. On expiry the
// extractor degrades to the fallback path instead of failing.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

// WithSystemPrompt overrides the extraction system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(e *Extractor) { e.systemPrompt = prompt }
}

// WithModelErrorHook registers a callback fired whenever the model path
// errors before the fallback takes over. Callers use it for error counters;
// extraction itself proceeds regardless.
func WithModelErrorHook(fn func(error)) Option {
	return func(e *Extractor) { e.onModelError = fn }
}

// NewExtractor builds an extractor. A nil client skips the model path
// entirely and runs fallback-only.
func NewExtractor(client llm.Completer, opts ...Option) *Extractor {
	e := &Extractor{
		client:       client,
		timeout:      defaultExtractTimeout,
		systemPrompt: extractionSystemPrompt,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract converts an utterance into a tagged intent. It never returns an
// error: model failures degrade to the fallback, and a fallback miss yields
// an exactly-empty result.
func (e *Extractor) Extract(ctx context.Context, utterance string) Result {
	if strings.TrimSpace(utterance) == "" {
		return Result{Source: SourceNone}
	}

	if e.client != nil {
		mctx, cancel := context.WithTimeout(ctx, e.timeout)
		raw, err := e.client.Complete(mctx, e.buildPrompt(utterance), e.systemPrompt)
		cancel()
		if err != nil {
			if e.onModelError != nil {
				e.onModelError(err)
			}
		} else if in, ok := parseModelIntent(raw); ok {
			return Result{Source: SourceModel, Intent: in}
		}
	}

	if in, ok := FallbackExtract(utterance); ok {
		return Result{Source: SourceFallback, Intent: in}
	}
	return Result{Source: SourceNone}
}

func (e *Extractor) buildPrompt(utterance string) string {
	return fmt.Sprintf("User message: %q\n\nExtract the betting intent as JSON.", utterance)
}

// parseModelIntent validates the model's JSON against the intent schema. A
// usable model result needs a positive amount, a competitor and a known
// sport; anything less is discarded so the fallback stays authoritative
// (no partial merge between strategies).
func parseModelIntent(raw string) (core.BettingIntent, bool) {
	s := extractJSON(stripMarkdownCodeBlocks(raw))
	if s == "" {
		return core.BettingIntent{}, false
	}

	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return core.BettingIntent{}, false
	}

	amount := extractFloat(m, "amount")
	competitor := strings.ToLower(strings.TrimSpace(extractString(m, "competitor")))
	sport, sportOK := NormalizeSport(extractString(m, "sport"))

	if amount <= 0 || competitor == "" || !sportOK {
		return core.BettingIntent{}, false
	}

	in := core.BettingIntent{
		Amount:     decimal.NewFromFloat(amount),
		Competitor: competitor,
		Sport:      sport,
	}

	if cur, ok := core.ParseCurrency(extractString(m, "currency")); ok {
		in.Currency = cur
	}
	if tol, ok := core.ParseRiskTolerance(extractString(m, "riskTolerance")); ok {
		in.RiskTolerance = tol
	}

	conf := extractFloat(m, "confidence")
	if conf <= 0 || conf > 1 {
		conf = modelConfidenceFloor
	}
	if conf < modelConfidenceFloor {
		conf = modelConfidenceFloor
	}
	in.Confidence = conf

	return in, true
}

// stripMarkdownCodeBlocks removes ```json fences models like to add.
func stripMarkdownCodeBlocks(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// extractJSON finds the first complete JSON object in a string.
func extractJSON(s string) string {
	start := -1
	braceCount := 0

	for i, c := range s {
		if c == '{' {
			if start == -1 {
				start = i
			}
			braceCount++
		} else if c == '}' {
			braceCount--
			if braceCount == 0 && start != -1 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func extractFloat(m map[string]interface{}, key string) float64 {
	if v, ok := m[key]; ok {
		switch val := v.(type) {
		case float64:
			return val
		case int:
			return float64(val)
		case string:
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func extractString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
