package grading

import (
	"log"

	"github.com/prepstack/prepstack/internal/content"
	"github.com/prepstack/prepstack/internal/exam"
)

// QuestionResult is the per-question outcome of a scoring pass.
type QuestionResult struct {
	QuestionID   int64    `json:"question_id"`
	Ordinal      int      `json:"question_number"`
	Correct      *bool    `json:"is_correct"`
	CorrectLabel string   `json:"correct_answer"`
	Response     string   `json:"user_answer"`
	AudioRef     string   `json:"answer_audio,omitempty"`
	Points       float64  `json:"points"`
	Awarded      *float64 `json:"score"`
}

// Outcome is the result of scoring one submission.
type Outcome struct {
	Total   float64
	Max     float64
	Results []QuestionResult
	Status  string // exam.StatusGraded or exam.StatusCompleted
}

// Score grades a submission's answers against the full question set of a
// skill. It iterates every question, not only the answered ones: an
// absent answer counts as an empty response, so Max is stable regardless
// of what the client submitted and the result list is complete for review
// without a second query. The status is graded only when every question
// type is auto-gradable; otherwise the submission stays completed until
// external grading results are attached. A single bad question never
// aborts the pass.
func Score(questions []exam.Question, answers map[int64]exam.Answer) Outcome {
	out := Outcome{Status: exam.StatusGraded}
	for i, q := range questions {
		ans := answers[q.ID]
		material := content.DecodeAnswerMaterial(q.OptionsJSON, q.CorrectAnswer)
		verdict := ResolveKey(q.Type, material, ans.Text)
		if !KnownType(q.Type) {
			log.Printf("grading: unknown question type %q (question %d), left ungraded", q.Type, q.ID)
		}
		if !AutoGradable(q.Type) {
			out.Status = exam.StatusCompleted
		}

		r := QuestionResult{
			QuestionID:   q.ID,
			Ordinal:      i + 1,
			Correct:      verdict.Correct,
			CorrectLabel: verdict.CorrectLabel,
			Response:     ans.Text,
			AudioRef:     ans.AudioRef,
			Points:       q.Points,
		}
		if verdict.Correct != nil {
			awarded := 0.0
			if *verdict.Correct {
				awarded = q.Points
			}
			r.Awarded = &awarded
			out.Total += awarded
		}
		out.Max += q.Points
		out.Results = append(out.Results, r)
	}
	return out
}
