package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prepstack/prepstack/internal/auth"
	"github.com/prepstack/prepstack/internal/content"
	"github.com/prepstack/prepstack/internal/exam"
	"github.com/prepstack/prepstack/internal/grading"
	"github.com/prepstack/prepstack/internal/rbac"
	"github.com/prepstack/prepstack/internal/scale"
)

type submitRequest struct {
	TimeSpent int `json:"time_spent"` // seconds
	Answers   []struct {
		QuestionID  int64  `json:"question_id"`
		AnswerText  string `json:"answer_text"`
		AnswerAudio string `json:"answer_audio"`
	} `json:"answers"`
}

// SubmitHandler scores a learner's answers for one skill and records the
// submission. Auto-gradable questions get a verdict immediately; free
// response questions leave the submission completed until band results
// are attached.
func SubmitHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := auth.UserID(r.Context())
		if err != nil {
			errorJSON(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		skillID, err := idParam(r, "skillID")
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "bad skill id")
			return
		}
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorJSON(w, http.StatusBadRequest, "bad json")
			return
		}

		skill, err := store.GetSkill(r.Context(), skillID)
		if err != nil {
			storeError(w, err)
			return
		}
		if !skill.Active {
			errorJSON(w, http.StatusConflict, "skill is not active")
			return
		}
		questions, err := store.QuestionsBySkill(r.Context(), skillID)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if len(questions) == 0 {
			errorJSON(w, http.StatusConflict, "skill has no questions")
			return
		}

		known := make(map[int64]bool, len(questions))
		for _, q := range questions {
			known[q.ID] = true
		}
		byQuestion := make(map[int64]exam.Answer, len(req.Answers))
		for _, a := range req.Answers {
			if !known[a.QuestionID] {
				continue // stale or foreign question id
			}
			byQuestion[a.QuestionID] = exam.Answer{
				QuestionID: a.QuestionID,
				Text:       a.AnswerText,
				AudioRef:   a.AnswerAudio,
			}
		}

		outcome := grading.Score(questions, byQuestion)

		now := time.Now().Unix()
		sub := exam.Submission{
			UserID:      userID,
			SkillID:     skillID,
			Status:      outcome.Status,
			StartedAt:   now - int64(req.TimeSpent),
			SubmittedAt: &now,
			TotalScore:  &outcome.Total,
			MaxScore:    &outcome.Max,
		}
		if req.TimeSpent > 0 {
			sub.TimeSpent = &req.TimeSpent
		}

		rows := make([]exam.Answer, 0, len(outcome.Results))
		for _, res := range outcome.Results {
			rows = append(rows, exam.Answer{
				QuestionID: res.QuestionID,
				Text:       res.Response,
				AudioRef:   res.AudioRef,
				Correct:    res.Correct,
				Score:      res.Awarded,
			})
		}
		saved, err := store.CreateSubmission(r.Context(), sub, rows)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := map[string]any{
			"submission": saved,
			"results":    outcome.Results,
		}
		if outcome.Status == exam.StatusGraded {
			if test, err := store.GetTest(r.Context(), skill.TestID); err == nil {
				if band, ok := scale.Apply(test.Family+"."+skill.Type, outcome.Total, outcome.Max); ok {
					resp["band"] = band
				}
			}
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// ListMySubmissionsHandler lists the caller's own submissions, newest
// first.
func ListMySubmissionsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := auth.UserID(r.Context())
		if err != nil {
			errorJSON(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		opts := exam.SubmissionListOpts{
			UserID: userID,
			Status: r.URL.Query().Get("status"),
			Limit:  50,
		}
		if v := r.URL.Query().Get("skill_id"); v != "" {
			opts.SkillID, _ = strconv.ParseInt(v, 10, 64)
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
				opts.Limit = n
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			opts.Offset, _ = strconv.Atoi(v)
		}
		subs, err := store.ListSubmissions(r.Context(), opts)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
	}
}

type answerDetail struct {
	QuestionID    int64           `json:"question_id"`
	Ordinal       int             `json:"question_number"`
	Prompt        string          `json:"question_text"`
	Type          string          `json:"question_type"`
	Response      string          `json:"user_answer"`
	AudioRef      string          `json:"answer_audio,omitempty"`
	Correct       *bool           `json:"is_correct"`
	CorrectAnswer string          `json:"correct_answer"`
	Explanation   string          `json:"explanation,omitempty"`
	Score         *float64        `json:"score"`
	Points        float64         `json:"points"`
	Feedback      json.RawMessage `json:"ai_feedback,omitempty"`
}

// GetSubmissionHandler returns a submission with a per-question review:
// every question of the skill, merged with the learner's answer where one
// exists. The correct answer is re-resolved from the stored material so
// option labels survive even when the stored key is plain text.
func GetSubmissionHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := auth.UserID(r.Context())
		if err != nil {
			errorJSON(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		id, err := idParam(r, "submissionID")
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "bad submission id")
			return
		}
		sub, err := store.GetSubmission(r.Context(), id)
		if err != nil {
			storeError(w, err)
			return
		}
		if sub.UserID != userID && rbac.RoleFromContext(r.Context()) != auth.RoleAdmin {
			errorJSON(w, http.StatusForbidden, "forbidden")
			return
		}

		answers, err := store.AnswersBySubmission(r.Context(), id)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		byQuestion := make(map[int64]exam.Answer, len(answers))
		for _, a := range answers {
			byQuestion[a.QuestionID] = a
		}
		questions, err := store.QuestionsBySkill(r.Context(), sub.SkillID)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}

		details := make([]answerDetail, 0, len(questions))
		for i, q := range questions {
			a := byQuestion[q.ID]
			material := content.DecodeAnswerMaterial(q.OptionsJSON, q.CorrectAnswer)
			verdict := grading.ResolveKey(q.Type, material, a.Text)
			d := answerDetail{
				QuestionID:    q.ID,
				Ordinal:       i + 1,
				Prompt:        q.Prompt,
				Type:          q.Type,
				Response:      a.Text,
				AudioRef:      a.AudioRef,
				Correct:       a.Correct,
				CorrectAnswer: verdict.CorrectLabel,
				Explanation:   q.Explanation,
				Score:         a.Score,
				Points:        q.Points,
			}
			if a.FeedbackJSON != "" {
				d.Feedback = json.RawMessage(a.FeedbackJSON)
			}
			details = append(details, d)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"submission": sub,
			"answers":    details,
		})
	}
}
