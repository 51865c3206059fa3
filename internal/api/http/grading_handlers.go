package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prepstack/prepstack/internal/audit"
	"github.com/prepstack/prepstack/internal/auth"
	"github.com/prepstack/prepstack/internal/content"
	"github.com/prepstack/prepstack/internal/exam"
	"github.com/prepstack/prepstack/internal/grading"
	"github.com/prepstack/prepstack/internal/llm"
)

type gradedAnswer struct {
	AnswerID   int64          `json:"answer_id"`
	QuestionID int64          `json:"question_id"`
	Band       llm.BandResult `json:"band"`
}

// GradeSubmissionHandler runs external band grading over every free
// response answer of a submission that has no result yet. Writing answers
// go through the writing rubric, speaking through the speaking rubric;
// results attach to the answers one by one, and the store flips the
// submission to graded once the last open answer has one. A flagged band
// result (unparseable model reply) is still attached so a reviewer can
// see it; it never aborts the batch.
func GradeSubmissionHandler(store exam.Store, svc llm.Service, events *audit.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "submissionID")
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "bad submission id")
			return
		}
		var req struct {
			AnswerIDs []int64 `json:"answer_ids"` // empty = all open free-response answers
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req) // optional body
		}
		only := make(map[int64]bool, len(req.AnswerIDs))
		for _, aid := range req.AnswerIDs {
			only[aid] = true
		}

		sub, err := store.GetSubmission(r.Context(), id)
		if err != nil {
			storeError(w, err)
			return
		}
		skill, err := store.GetSkill(r.Context(), sub.SkillID)
		if err != nil {
			storeError(w, err)
			return
		}
		test, err := store.GetTest(r.Context(), skill.TestID)
		if err != nil {
			storeError(w, err)
			return
		}
		answers, err := store.AnswersBySubmission(r.Context(), id)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}

		var graded []gradedAnswer
		for _, a := range answers {
			if len(only) > 0 && !only[a.ID] {
				continue
			}
			if a.FeedbackJSON != "" && len(only) == 0 {
				continue // already graded, skip unless explicitly requested
			}
			q, err := store.GetQuestion(r.Context(), a.QuestionID)
			if err != nil {
				storeError(w, err)
				return
			}
			if grading.AutoGradable(q.Type) {
				continue
			}

			essay := llm.EssayRequest{
				Prompt:     q.Prompt,
				AnswerText: a.Text,
				ExamFamily: test.Family,
			}
			var band llm.BandResult
			if skill.Type == content.SkillSpeaking {
				band = svc.GradeSpeaking(r.Context(), essay)
			} else {
				band = svc.GradeWriting(r.Context(), essay)
			}

			feedback, err := json.Marshal(band)
			if err != nil {
				errorJSON(w, http.StatusInternalServerError, err.Error())
				return
			}
			if err := store.AttachGradingResult(r.Context(), a.ID, band.OverallBand, string(feedback)); err != nil {
				errorJSON(w, http.StatusInternalServerError, err.Error())
				return
			}
			graded = append(graded, gradedAnswer{AnswerID: a.ID, QuestionID: a.QuestionID, Band: band})
		}

		if len(graded) > 0 {
			_ = events.Append(r.Context(), audit.Event{
				Actor:    auth.SubjectFromContext(r.Context()),
				Type:     "submission.graded",
				Key:      fmt.Sprintf("submission:%d", id),
				DataJSON: fmt.Sprintf(`{"answers":%d}`, len(graded)),
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"submission_id": id,
			"graded":        graded,
		})
	}
}
