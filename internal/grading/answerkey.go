package grading

import (
	"strings"

	"github.com/prepstack/prepstack/internal/content"
)

// autoGradable lists the question types whose correctness is decided by
// exact text comparison. Everything else stays ungraded until an external
// grading result is attached.
var autoGradable = map[string]bool{
	"multiple_choice":      true,
	"fill_blank":           true,
	"true_false":           true,
	"yes_no":               true,
	"yes_no_not_given":     true,
	"true_false_not_given": true,
}

// knownTypes additionally covers the free-response types the service
// produces; anything outside it is an unknown type and scored as
// ungraded.
var knownTypes = map[string]bool{
	"short_text":        true,
	"short_answer":      true,
	"essay":             true,
	"chart_description": true,
	"spoken_question":   true,
	"cue_card":          true,
	"matching":          true,
}

// AutoGradable reports whether a question type is machine-checkable.
func AutoGradable(qType string) bool { return autoGradable[qType] }

// KnownType reports whether the type is one the service produces at all.
func KnownType(qType string) bool { return autoGradable[qType] || knownTypes[qType] }

// Verdict is the outcome of resolving one answer key. Correct is nil when
// the question is not auto-gradable. CorrectLabel is the human-readable
// canonical label for the correct choice.
type Verdict struct {
	Correct      *bool
	CorrectLabel string
}

// ResolveKey compares a learner response against the stored answer
// material. Comparison is trimmed, case-insensitive equality; no partial
// credit. Pure: identical inputs always yield identical verdicts.
func ResolveKey(qType string, material content.AnswerMaterial, response string) Verdict {
	label := correctLabel(material)
	if !AutoGradable(qType) {
		return Verdict{Correct: nil, CorrectLabel: label}
	}
	correct := fold(response) != "" && fold(response) == fold(material.CorrectText())
	if !correct {
		// a learner may answer a choice question with its label instead
		// of the full option text
		if material.Kind == content.AnswerLabeled && fold(response) == fold(label) {
			correct = true
		}
	}
	return Verdict{Correct: &correct, CorrectLabel: label}
}

// correctLabel recovers the display label: the flagged option's text for
// options material, the matching key for labeled material, and the stored
// plain text otherwise. Lookup misses fall back to the plain text rather
// than failing the scoring pass.
func correctLabel(material content.AnswerMaterial) string {
	switch material.Kind {
	case content.AnswerOptions:
		for _, o := range material.Options {
			if o.Correct {
				return o.Text
			}
		}
	case content.AnswerLabeled:
		for label, text := range material.Labels {
			if fold(text) == fold(material.Text) {
				return label
			}
		}
	}
	return material.Text
}

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
