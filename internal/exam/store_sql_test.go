package exam_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/prepstack/prepstack/internal/content"
	"github.com/prepstack/prepstack/internal/exam"
)

func seedUser(t *testing.T, dbh *sql.DB) int64 {
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

func floatPtr(f float64) *float64 { return &f }

func TestSubmissionLifecycle(t *testing.T) {
	dbh := testDB(t)
	store := exam.NewSQLStore(dbh)
	skillID, provisionalID := seedSkill(t, store, "writing")
	userID := seedUser(t, dbh)

	sec := content.Section{Name: "Writing", Groups: []content.Group{{
		Name:     "Task 2",
		TypeHint: "essay",
		Questions: []content.Question{
			{Ordinal: 1, Prompt: "Discuss.", Type: "essay", Answer: content.PlainAnswer(""), Points: 9},
		},
	}}}
	if _, err := exam.NewTreePersister(dbh).Persist(context.Background(), skillID, provisionalID, []content.Section{sec}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	questions, err := store.QuestionsBySkill(context.Background(), skillID)
	if err != nil || len(questions) != 1 {
		t.Fatalf("questions: %v %d", err, len(questions))
	}

	sub := exam.Submission{
		UserID:     userID,
		SkillID:    skillID,
		Status:     exam.StatusCompleted,
		StartedAt:  100,
		TotalScore: floatPtr(0),
		MaxScore:   floatPtr(9),
	}
	saved, err := store.CreateSubmission(context.Background(), sub, []exam.Answer{
		{QuestionID: questions[0].ID, Text: "My essay."},
	})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	if saved.ID == 0 {
		t.Fatal("submission id not returned")
	}

	answers, err := store.AnswersBySubmission(context.Background(), saved.ID)
	if err != nil || len(answers) != 1 {
		t.Fatalf("answers: %v %d", err, len(answers))
	}
	if answers[0].Correct != nil || answers[0].Score != nil {
		t.Fatalf("free response answer must start ungraded: %+v", answers[0])
	}

	// attaching the only pending result flips the submission to graded
	if err := store.AttachGradingResult(context.Background(), answers[0].ID, 6.5, `{"overall_score":6.5}`); err != nil {
		t.Fatalf("attach: %v", err)
	}
	got, err := store.GetSubmission(context.Background(), saved.ID)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if got.Status != exam.StatusGraded {
		t.Errorf("status %q after last result attached", got.Status)
	}
	if got.TotalScore == nil || *got.TotalScore != 6.5 {
		t.Errorf("total not recomputed: %v", got.TotalScore)
	}

	answers, _ = store.AnswersBySubmission(context.Background(), saved.ID)
	if answers[0].Score == nil || *answers[0].Score != 6.5 || answers[0].FeedbackJSON == "" {
		t.Errorf("result not stored on answer: %+v", answers[0])
	}
}

func TestAttachGradingResultKeepsMixedSubmissionOpen(t *testing.T) {
	dbh := testDB(t)
	store := exam.NewSQLStore(dbh)
	skillID, provisionalID := seedSkill(t, store, "writing")
	userID := seedUser(t, dbh)

	sec := content.Section{Name: "Writing", Groups: []content.Group{{
		Name: "Tasks", TypeHint: "essay",
		Questions: []content.Question{
			{Ordinal: 1, Prompt: "Task 1", Type: "essay", Answer: content.PlainAnswer(""), Points: 9},
			{Ordinal: 2, Prompt: "Task 2", Type: "essay", Answer: content.PlainAnswer(""), Points: 9},
		},
	}}}
	if _, err := exam.NewTreePersister(dbh).Persist(context.Background(), skillID, provisionalID, []content.Section{sec}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	questions, _ := store.QuestionsBySkill(context.Background(), skillID)

	saved, err := store.CreateSubmission(context.Background(),
		exam.Submission{UserID: userID, SkillID: skillID, Status: exam.StatusCompleted, StartedAt: 1},
		[]exam.Answer{
			{QuestionID: questions[0].ID, Text: "One."},
			{QuestionID: questions[1].ID, Text: "Two."},
		})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}
	answers, _ := store.AnswersBySubmission(context.Background(), saved.ID)

	if err := store.AttachGradingResult(context.Background(), answers[0].ID, 6.0, `{}`); err != nil {
		t.Fatalf("attach: %v", err)
	}
	got, _ := store.GetSubmission(context.Background(), saved.ID)
	if got.Status != exam.StatusCompleted {
		t.Errorf("submission flipped early: %q", got.Status)
	}

	if err := store.AttachGradingResult(context.Background(), answers[1].ID, 7.0, `{}`); err != nil {
		t.Fatalf("attach: %v", err)
	}
	got, _ = store.GetSubmission(context.Background(), saved.ID)
	if got.Status != exam.StatusGraded {
		t.Errorf("submission not graded after last result: %q", got.Status)
	}
	if got.TotalScore == nil || *got.TotalScore != 13 {
		t.Errorf("total: %v", got.TotalScore)
	}
}

func TestGetMissingRowsReturnNotFound(t *testing.T) {
	dbh := testDB(t)
	store := exam.NewSQLStore(dbh)

	if _, err := store.GetTest(context.Background(), 999); !errors.Is(err, exam.ErrNotFound) {
		t.Errorf("GetTest: %v", err)
	}
	if _, err := store.GetSkill(context.Background(), 999); !errors.Is(err, exam.ErrNotFound) {
		t.Errorf("GetSkill: %v", err)
	}
	if _, err := store.GetSubmission(context.Background(), 999); !errors.Is(err, exam.ErrNotFound) {
		t.Errorf("GetSubmission: %v", err)
	}
	if _, err := store.GetQuestion(context.Background(), 999); !errors.Is(err, exam.ErrNotFound) {
		t.Errorf("GetQuestion: %v", err)
	}
}

func TestSoftDeletedSkillHidden(t *testing.T) {
	dbh := testDB(t)
	store := exam.NewSQLStore(dbh)
	skillID, _ := seedSkill(t, store, "reading")

	if err := store.DeleteSkill(context.Background(), skillID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetSkill(context.Background(), skillID); !errors.Is(err, exam.ErrNotFound) {
		t.Errorf("soft-deleted skill still visible: %v", err)
	}
}
