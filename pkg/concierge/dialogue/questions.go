package dialogue

import (
	"fmt"
	"strings"

	"github.com/phenomenon0/daredevil-core/core"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/intent"
)

// affirmatives are the whole-answer tokens that confirm an intent. Matching
// is exact after lowercasing and trimming trailing punctuation, so "Yes!"
// confirms but "yes but make it 20" does not.
var affirmatives = map[string]bool{
	"yes":       true,
	"y":         true,
	"yeah":      true,
	"yep":       true,
	"yup":       true,
	"sure":      true,
	"ok":        true,
	"okay":      true,
	"confirm":   true,
	"confirmed": true,
	"correct":   true,
}

func isAffirmative(answer string) bool {
	token := strings.ToLower(strings.TrimSpace(answer))
	token = strings.TrimRight(token, ".!?")
	return affirmatives[token]
}

// helpHints are appended to a prompt once a question has absorbed the
// configured number of invalid answers.
var helpHints = map[string]string{
	QuestionAmount:     "Enter a plain number, like 25 or 12.5, optionally with a currency.",
	QuestionCompetitor: "Name a driver, team, or player, like Verstappen or Arsenal.",
	QuestionSport:      "Pick one of: f1, soccer, basketball.",
	QuestionChange:     "Name the field to change, like \"the amount\", or give the new value directly.",
}

// buildQuestion materializes the guiding question for the given ID, against
// the conversation's current intent. Prompts gain a help hint once the retry
// budget for that question is spent.
func (e *Engine) buildQuestion(c *Conversation, id string) *core.GuidingQuestion {
	var q core.GuidingQuestion
	switch id {
	case QuestionAmount:
		q = core.GuidingQuestion{
			ID:       QuestionAmount,
			Prompt:   "How much would you like to bet?",
			Kind:     core.QuestionNumeric,
			Required: true,
		}
	case QuestionCompetitor:
		q = core.GuidingQuestion{
			ID:       QuestionCompetitor,
			Prompt:   "Which competitor are you backing?",
			Kind:     core.QuestionFreeText,
			Required: true,
		}
	case QuestionSport:
		q = core.GuidingQuestion{
			ID:       QuestionSport,
			Prompt:   "Which sport is this bet for?",
			Kind:     core.QuestionChoice,
			Options:  intent.Sports(),
			Required: true,
		}
	case QuestionTolerance:
		q = core.GuidingQuestion{
			ID:     QuestionTolerance,
			Prompt: fmt.Sprintf("%s is a sizeable stake. How would you describe your risk appetite? You can also skip this.", c.Intent.Amount.String()),
			Kind:   core.QuestionChoice,
			Options: []string{
				string(core.ToleranceConservative),
				string(core.ToleranceModerate),
				string(core.ToleranceAggressive),
			},
		}
	case QuestionConfirm:
		q = core.GuidingQuestion{
			ID:       QuestionConfirm,
			Prompt:   fmt.Sprintf("You're betting %s. Shall I place it?", c.Intent.Summary()),
			Kind:     core.QuestionConfirmation,
			Options:  []string{"yes", "no"},
			Required: true,
		}
	case QuestionChange:
		q = core.GuidingQuestion{
			ID:       QuestionChange,
			Prompt:   "No problem. What would you like to change?",
			Kind:     core.QuestionFreeText,
			Required: true,
		}
	default:
		return nil
	}

	if hint, ok := helpHints[id]; ok && c.Retries(id) >= e.cfg.MaxRetries {
		q.Prompt += " " + hint
	}
	return &q
}
