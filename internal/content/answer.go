package content

import (
	"encoding/json"
	"strings"
)

// AnswerKind discriminates the representations a question's key material
// can take at rest.
type AnswerKind string

const (
	AnswerPlain   AnswerKind = "plain"   // bare correct-answer text
	AnswerOptions AnswerKind = "options" // choice list with correctness flags
	AnswerLabeled AnswerKind = "labeled" // label -> choice text map
)

// Option is one entry of a flagged choice list.
type Option struct {
	Text     string `json:"answer_content"`
	Correct  bool   `json:"is_correct"`
	Feedback string `json:"feedback,omitempty"`
}

// AnswerMaterial is the tagged union of correct-answer encodings. Text is
// always populated with the stored plain-text answer so callers have a
// fallback label regardless of Kind.
type AnswerMaterial struct {
	Kind    AnswerKind
	Text    string
	Options []Option
	Labels  map[string]string
}

func PlainAnswer(text string) AnswerMaterial {
	return AnswerMaterial{Kind: AnswerPlain, Text: text}
}

func OptionsAnswer(text string, opts []Option) AnswerMaterial {
	return AnswerMaterial{Kind: AnswerOptions, Text: text, Options: opts}
}

func LabeledAnswer(text string, labels map[string]string) AnswerMaterial {
	return AnswerMaterial{Kind: AnswerLabeled, Text: text, Labels: labels}
}

// CorrectText returns the canonical correct-answer text: the flagged
// option's text when present, otherwise the stored plain text.
func (m AnswerMaterial) CorrectText() string {
	if m.Kind == AnswerOptions {
		for _, o := range m.Options {
			if o.Correct {
				return o.Text
			}
		}
	}
	return m.Text
}

// DecodeAnswerMaterial reconstructs the union from the two storage columns:
// the serialized options blob (may be empty) and the plain correct-answer
// text. Unparseable blobs degrade to plain text rather than failing.
func DecodeAnswerMaterial(optionsJSON, correctText string) AnswerMaterial {
	s := strings.TrimSpace(optionsJSON)
	if s == "" || s == "null" {
		return PlainAnswer(correctText)
	}
	if strings.HasPrefix(s, "[") {
		var opts []Option
		if err := json.Unmarshal([]byte(s), &opts); err == nil && len(opts) > 0 {
			return OptionsAnswer(correctText, opts)
		}
		// old format: bare string list without correctness flags
		var texts []string
		if err := json.Unmarshal([]byte(s), &texts); err == nil && len(texts) > 0 {
			opts = make([]Option, 0, len(texts))
			for _, t := range texts {
				opts = append(opts, Option{Text: t, Correct: foldEqual(t, correctText)})
			}
			return OptionsAnswer(correctText, opts)
		}
		return PlainAnswer(correctText)
	}
	if strings.HasPrefix(s, "{") {
		var labels map[string]string
		if err := json.Unmarshal([]byte(s), &labels); err == nil && len(labels) > 0 {
			return LabeledAnswer(correctText, labels)
		}
	}
	return PlainAnswer(correctText)
}

// EncodeOptions serializes the non-plain part of the material for the
// options column. Plain material yields the empty string.
func (m AnswerMaterial) EncodeOptions() (string, error) {
	switch m.Kind {
	case AnswerOptions:
		b, err := json.Marshal(m.Options)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case AnswerLabeled:
		b, err := json.Marshal(m.Labels)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", nil
	}
}

func foldEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
