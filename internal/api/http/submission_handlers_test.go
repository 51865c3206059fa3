package http_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	api "github.com/prepstack/prepstack/internal/api/http"
	"github.com/prepstack/prepstack/internal/auth"
	"github.com/prepstack/prepstack/internal/content"
	"github.com/prepstack/prepstack/internal/exam"
	"github.com/prepstack/prepstack/internal/rbac"
)

func seedLearner(t *testing.T, dbh *sql.DB) int64 {
	t.Helper()
	var id int64
	err := dbh.QueryRow(
		`INSERT INTO users (username, pass_hash, role, created_at) VALUES ('learner1','x','learner',0) RETURNING id`,
	).Scan(&id)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

// seedReadingSkill persists a small active reading skill and returns its
// id along with the question ids in order.
func seedReadingSkill(t *testing.T, e *env) (int64, []int64) {
	t.Helper()
	ctx := context.Background()
	skillID, err := e.store.CreateSkill(ctx, exam.Skill{TestID: e.testID, Type: "reading", Name: "Reading"})
	if err != nil {
		t.Fatalf("create skill: %v", err)
	}
	provisionalID, err := e.store.CreateSection(ctx, exam.Section{SkillID: skillID, Name: "Section 1", Position: 1})
	if err != nil {
		t.Fatalf("create section: %v", err)
	}
	sec := content.Section{Name: "Passage", Groups: []content.Group{{
		Name: "Questions 1-3", TypeHint: "multiple_choice",
		Questions: []content.Question{
			{Ordinal: 1, Prompt: "Q1", Type: "multiple_choice",
				Answer: content.OptionsAnswer("A", []content.Option{{Text: "A", Correct: true}, {Text: "B"}}), Points: 1},
			{Ordinal: 2, Prompt: "Q2", Type: "fill_blank", Answer: content.PlainAnswer("Paris"), Points: 1},
			{Ordinal: 3, Prompt: "Q3", Type: "true_false_not_given", Answer: content.PlainAnswer("NOT GIVEN"), Points: 1},
		},
	}}}
	if _, err := e.persister.Persist(ctx, skillID, provisionalID, []content.Section{sec}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := e.store.ActivateSkill(ctx, skillID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	questions, err := e.store.QuestionsBySkill(ctx, skillID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	ids := make([]int64, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return skillID, ids
}

func asUser(req *http.Request, userID int64, role string) *http.Request {
	ctx := auth.WithSubject(req.Context(), fmt.Sprintf("%d", userID))
	ctx = rbac.WithRole(ctx, role)
	return req.WithContext(ctx)
}

func TestSubmitHandler(t *testing.T) {
	e := newEnv(t)
	userID := seedLearner(t, e.dbh)
	skillID, qids := seedReadingSkill(t, e)

	r := chi.NewRouter()
	r.Post("/skills/{skillID}/submit", api.SubmitHandler(e.store))

	// first answer right, second wrong, third left unanswered
	body := fmt.Sprintf(`{"time_spent": 300, "answers": [
	  {"question_id": %d, "answer_text": "a"},
	  {"question_id": %d, "answer_text": "London"}
	]}`, qids[0], qids[1])
	req := asUser(httptest.NewRequest("POST", fmt.Sprintf("/skills/%d/submit", skillID), strings.NewReader(body)), userID, "learner")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Submission exam.Submission `json:"submission"`
		Results    []struct {
			QuestionID int64 `json:"question_id"`
			Correct    *bool `json:"is_correct"`
		} `json:"results"`
		Band *float64 `json:"band"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Submission.Status != exam.StatusGraded {
		t.Errorf("status %q", resp.Submission.Status)
	}
	if resp.Submission.TotalScore == nil || *resp.Submission.TotalScore != 1 {
		t.Errorf("total: %v", resp.Submission.TotalScore)
	}
	if resp.Submission.MaxScore == nil || *resp.Submission.MaxScore != 3 {
		t.Errorf("max must cover the unanswered question too: %v", resp.Submission.MaxScore)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("results: %d", len(resp.Results))
	}
	if resp.Results[2].Correct == nil || *resp.Results[2].Correct {
		t.Error("unanswered question must be wrong, not ungraded")
	}
	if resp.Band == nil {
		t.Error("graded ielts reading submission must report a band")
	}
}

func TestSubmitHandlerInactiveSkill(t *testing.T) {
	e := newEnv(t)
	userID := seedLearner(t, e.dbh)
	skillID, err := e.store.CreateSkill(context.Background(), exam.Skill{TestID: e.testID, Type: "reading", Name: "Reading"})
	if err != nil {
		t.Fatalf("create skill: %v", err)
	}

	r := chi.NewRouter()
	r.Post("/skills/{skillID}/submit", api.SubmitHandler(e.store))
	req := asUser(httptest.NewRequest("POST", fmt.Sprintf("/skills/%d/submit", skillID), strings.NewReader(`{"answers":[]}`)), userID, "learner")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("submitting to an inactive skill must fail, got %d", rec.Code)
	}
}

func TestGetSubmissionHandlerOwnership(t *testing.T) {
	e := newEnv(t)
	userID := seedLearner(t, e.dbh)
	skillID, qids := seedReadingSkill(t, e)

	sub, err := e.store.CreateSubmission(context.Background(),
		exam.Submission{UserID: userID, SkillID: skillID, Status: exam.StatusGraded, StartedAt: 1},
		[]exam.Answer{{QuestionID: qids[0], Text: "A"}})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}

	r := chi.NewRouter()
	r.Get("/submissions/{submissionID}", api.GetSubmissionHandler(e.store))

	// a different learner is rejected
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest("GET", fmt.Sprintf("/submissions/%d", sub.ID), nil), userID+1, "learner"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign submission visible: %d", rec.Code)
	}

	// an admin is not
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest("GET", fmt.Sprintf("/submissions/%d", sub.ID), nil), userID+1, "admin"))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin rejected: %d", rec.Code)
	}

	// the owner sees every question of the skill, answered or not
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest("GET", fmt.Sprintf("/submissions/%d", sub.ID), nil), userID, "learner"))
	if rec.Code != http.StatusOK {
		t.Fatalf("owner rejected: %d", rec.Code)
	}
	var resp struct {
		Answers []struct {
			QuestionID    int64  `json:"question_id"`
			CorrectAnswer string `json:"correct_answer"`
		} `json:"answers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Answers) != 3 {
		t.Fatalf("review must cover all questions, got %d", len(resp.Answers))
	}
	if resp.Answers[0].CorrectAnswer != "A" {
		t.Errorf("correct answer label: %q", resp.Answers[0].CorrectAnswer)
	}
}
