package llm

import (
	"encoding/json"

	"github.com/prepstack/prepstack/internal/content"
)

// BandResult is the banded-score schema external grading maps onto. The
// JSON tags match the response format the grading prompts request, so a
// well-formed model reply unmarshals directly.
type BandResult struct {
	OverallBand      float64            `json:"overall_score"`
	CriteriaScores   map[string]float64 `json:"criteria_scores"`
	CriteriaFeedback map[string]string  `json:"criteria_feedback,omitempty"`
	Strengths        []string           `json:"strengths"`
	Weaknesses       []string           `json:"weaknesses"`
	Narrative        string             `json:"detailed_feedback"`
	Suggestions      []string           `json:"suggestions,omitempty"`
	ParseError       bool               `json:"parse_error,omitempty"`
}

// ParseBandResult decodes a grading response. The model's reasoning is
// not validated, only that the reply is parseable JSON with the expected
// keys. An unparseable reply is not an error: scores default to zero, the
// raw text is kept as the narrative and ParseError flags the result for
// human review, because a partially-gradable submission is more useful
// than none.
func ParseBandResult(raw string) BandResult {
	payload := content.ExtractJSON([]byte(raw))
	var res BandResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return BandResult{Narrative: raw, ParseError: true}
	}
	return res
}
