package grading_test

import (
	"testing"

	"github.com/prepstack/prepstack/internal/exam"
	"github.com/prepstack/prepstack/internal/grading"
)

func mcQuestion(id int64, key string, points float64) exam.Question {
	return exam.Question{
		ID:            id,
		Type:          "multiple_choice",
		OptionsJSON:   `[{"answer_content":"` + key + `","is_correct":true},{"answer_content":"other"}]`,
		CorrectAnswer: key,
		Points:        points,
	}
}

func TestScoreAllCorrect(t *testing.T) {
	questions := []exam.Question{
		mcQuestion(1, "A", 1),
		mcQuestion(2, "B", 2),
	}
	answers := map[int64]exam.Answer{
		1: {QuestionID: 1, Text: "a"},
		2: {QuestionID: 2, Text: "B"},
	}
	out := grading.Score(questions, answers)
	if out.Total != 3 || out.Max != 3 {
		t.Fatalf("total %v / max %v", out.Total, out.Max)
	}
	if out.Status != exam.StatusGraded {
		t.Errorf("status %q", out.Status)
	}
}

func TestScoreMaxStableWithoutAnswers(t *testing.T) {
	questions := []exam.Question{
		mcQuestion(1, "A", 1),
		mcQuestion(2, "B", 1),
		mcQuestion(3, "C", 1),
	}
	// only one answer submitted; Max must still cover every question
	out := grading.Score(questions, map[int64]exam.Answer{2: {QuestionID: 2, Text: "B"}})
	if out.Max != 3 {
		t.Fatalf("max = %v, want 3", out.Max)
	}
	if out.Total != 1 {
		t.Fatalf("total = %v", out.Total)
	}
	if len(out.Results) != 3 {
		t.Fatalf("results must cover every question, got %d", len(out.Results))
	}
	// the unanswered questions count as wrong, not as ungraded
	for _, r := range []int{0, 2} {
		res := out.Results[r]
		if res.Correct == nil || *res.Correct {
			t.Errorf("question %d: verdict %v", res.QuestionID, res.Correct)
		}
		if res.Awarded == nil || *res.Awarded != 0 {
			t.Errorf("question %d: awarded %v", res.QuestionID, res.Awarded)
		}
	}
}

func TestScoreMixedTypesStaysCompleted(t *testing.T) {
	questions := []exam.Question{
		mcQuestion(1, "A", 1),
		{ID: 2, Type: "essay", Points: 9},
	}
	out := grading.Score(questions, map[int64]exam.Answer{
		1: {QuestionID: 1, Text: "A"},
		2: {QuestionID: 2, Text: "An essay."},
	})
	if out.Status != exam.StatusCompleted {
		t.Errorf("status %q, free response must block auto-grading", out.Status)
	}
	if out.Max != 10 {
		t.Errorf("max %v", out.Max)
	}
	essay := out.Results[1]
	if essay.Correct != nil || essay.Awarded != nil {
		t.Errorf("essay must stay ungraded: %+v", essay)
	}
}

func TestScoreUnknownTypeUngraded(t *testing.T) {
	questions := []exam.Question{
		{ID: 1, Type: "telepathy", CorrectAnswer: "42", Points: 1},
		mcQuestion(2, "B", 1),
	}
	out := grading.Score(questions, map[int64]exam.Answer{
		1: {QuestionID: 1, Text: "42"},
		2: {QuestionID: 2, Text: "B"},
	})
	if out.Results[0].Correct != nil {
		t.Error("unknown type must not get a verdict")
	}
	if out.Status != exam.StatusCompleted {
		t.Errorf("status %q", out.Status)
	}
	if out.Total != 1 {
		t.Errorf("total %v", out.Total)
	}
}

func TestScoreOrdinals(t *testing.T) {
	questions := []exam.Question{mcQuestion(7, "A", 1), mcQuestion(3, "B", 1), mcQuestion(9, "C", 1)}
	out := grading.Score(questions, nil)
	for i, r := range out.Results {
		if r.Ordinal != i+1 {
			t.Fatalf("ordinal %d at index %d", r.Ordinal, i)
		}
	}
}
