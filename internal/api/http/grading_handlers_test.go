package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	api "github.com/prepstack/prepstack/internal/api/http"
	"github.com/prepstack/prepstack/internal/content"
	"github.com/prepstack/prepstack/internal/exam"
	"github.com/prepstack/prepstack/internal/llm"
)

func seedWritingSubmission(t *testing.T, e *env, userID int64) exam.Submission {
	t.Helper()
	ctx := context.Background()
	skillID, err := e.store.CreateSkill(ctx, exam.Skill{TestID: e.testID, Type: "writing", Name: "Writing"})
	if err != nil {
		t.Fatalf("create skill: %v", err)
	}
	provisionalID, err := e.store.CreateSection(ctx, exam.Section{SkillID: skillID, Name: "Section 1", Position: 1})
	if err != nil {
		t.Fatalf("create section: %v", err)
	}
	sec := content.Section{Name: "Writing", Groups: []content.Group{{
		Name: "Task 2", TypeHint: "essay",
		Questions: []content.Question{
			{Ordinal: 1, Prompt: "Discuss both views.", Type: "essay", Answer: content.PlainAnswer(""), Points: 9},
		},
	}}}
	if _, err := e.persister.Persist(ctx, skillID, provisionalID, []content.Section{sec}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	questions, _ := e.store.QuestionsBySkill(ctx, skillID)

	sub, err := e.store.CreateSubmission(ctx,
		exam.Submission{UserID: userID, SkillID: skillID, Status: exam.StatusCompleted, StartedAt: 1},
		[]exam.Answer{{QuestionID: questions[0].ID, Text: "My considered essay."}})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	return sub
}

func TestGradeSubmissionHandler(t *testing.T) {
	e := newEnv(t)
	userID := seedLearner(t, e.dbh)
	sub := seedWritingSubmission(t, e, userID)

	mock := &llm.Mock{Band: llm.BandResult{
		OverallBand:    6.5,
		CriteriaScores: map[string]float64{"task_achievement": 6},
		Narrative:      "Solid.",
	}}

	r := chi.NewRouter()
	r.Post("/admin/submissions/{submissionID}/grade", api.GradeSubmissionHandler(e.store, mock, e.events))

	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest("POST", fmt.Sprintf("/admin/submissions/%d/grade", sub.ID), nil), userID, "admin")
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Graded []struct {
			AnswerID int64          `json:"answer_id"`
			Band     llm.BandResult `json:"band"`
		} `json:"graded"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Graded) != 1 || resp.Graded[0].Band.OverallBand != 6.5 {
		t.Fatalf("graded: %+v", resp.Graded)
	}
	if len(mock.GradeCalls) != 1 || mock.GradeCalls[0].AnswerText != "My considered essay." {
		t.Errorf("grade request: %+v", mock.GradeCalls)
	}

	got, err := e.store.GetSubmission(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if got.Status != exam.StatusGraded {
		t.Errorf("status %q after the last result", got.Status)
	}
	answers, _ := e.store.AnswersBySubmission(context.Background(), sub.ID)
	if answers[0].FeedbackJSON == "" || answers[0].Score == nil || *answers[0].Score != 6.5 {
		t.Errorf("result not attached: %+v", answers[0])
	}

	// an immediate second batch finds nothing open
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest("POST", fmt.Sprintf("/admin/submissions/%d/grade", sub.ID), nil), userID, "admin"))
	if rec.Code != http.StatusOK {
		t.Fatalf("regrade status %d", rec.Code)
	}
	if len(mock.GradeCalls) != 1 {
		t.Errorf("already-graded answer regraded without an explicit request")
	}
}
