package http_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	api "github.com/prepstack/prepstack/internal/api/http"
	"github.com/prepstack/prepstack/internal/audit"
	"github.com/prepstack/prepstack/internal/db"
	"github.com/prepstack/prepstack/internal/exam"
	"github.com/prepstack/prepstack/internal/llm"
	"github.com/prepstack/prepstack/internal/storage"
)

type env struct {
	dbh       *sql.DB
	store     *exam.SQLStore
	persister *exam.TreePersister
	events    *audit.Log
	blobs     *storage.FSStore
	testID    int64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	dbh.SetMaxOpenConns(1)
	t.Cleanup(func() { dbh.Close() })

	blobs, err := storage.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	store := exam.NewSQLStore(dbh)
	testID, err := store.CreateTest(context.Background(), exam.Test{Name: "Mock Exam", Family: "ielts", Active: true})
	if err != nil {
		t.Fatalf("create test: %v", err)
	}
	return &env{
		dbh:       dbh,
		store:     store,
		persister: exam.NewTreePersister(dbh),
		events:    audit.NewLog(dbh),
		blobs:     blobs,
		testID:    testID,
	}
}

const readingResponse = `{
  "passage": {"title": "Urban Bees", "content": "Bees thrive in cities.", "word_count": 500},
  "question_groups": [
    {"section_title": "Questions 1-2", "question_type": "multiple_choice", "questions": [
      {"content": "Q1", "answers": [{"answer_content": "A", "is_correct": true}, {"answer_content": "B"}], "correct_answer": "A"},
      {"content": "Q2", "answers": [{"answer_content": "C"}, {"answer_content": "D", "is_correct": true}], "correct_answer": "D"}
    ]}
  ]
}`

func TestGenerateSkillHandler(t *testing.T) {
	e := newEnv(t)
	mock := &llm.Mock{Responses: []json.RawMessage{json.RawMessage(readingResponse)}}
	h := api.GenerateSkillHandler(e.store, e.persister, mock, e.events, api.GenerateOpts{Blobs: e.blobs, Strict: true})

	body := fmt.Sprintf(`{"test_id": %d, "skill_type": "reading", "topic": "bees", "num_questions": 2}`, e.testID)
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/admin/skills/generate", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SkillID   int64 `json:"skill_id"`
		Sections  int   `json:"sections"`
		Questions int   `json:"questions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Sections != 1 || resp.Questions != 2 {
		t.Fatalf("counts: %+v", resp)
	}

	skill, err := e.store.GetSkill(context.Background(), resp.SkillID)
	if err != nil {
		t.Fatalf("get skill: %v", err)
	}
	if !skill.Active {
		t.Error("skill must be active after a successful persist")
	}
	questions, err := e.store.QuestionsBySkill(context.Background(), resp.SkillID)
	if err != nil || len(questions) != 2 {
		t.Fatalf("questions: %v %d", err, len(questions))
	}
	if len(mock.GenCalls) != 1 || mock.GenCalls[0].Skill != "reading" || mock.GenCalls[0].ExamFamily != "ielts" {
		t.Errorf("generation request: %+v", mock.GenCalls)
	}

	events, err := e.events.List(context.Background(), 0, 10)
	if err != nil || len(events) != 1 || events[0].Type != "skill.generated" {
		t.Errorf("audit trail: %v %+v", err, events)
	}
}

func TestGenerateSkillHandlerMalformedResponse(t *testing.T) {
	e := newEnv(t)
	mock := &llm.Mock{Responses: []json.RawMessage{json.RawMessage(`I cannot generate that today.`)}}
	h := api.GenerateSkillHandler(e.store, e.persister, mock, e.events, api.GenerateOpts{Blobs: e.blobs, Strict: true})

	body := fmt.Sprintf(`{"test_id": %d, "skill_type": "reading", "num_questions": 2}`, e.testID)
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/admin/skills/generate", strings.NewReader(body)))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Regenerate bool  `json:"regenerate"`
		SkillID    int64 `json:"skill_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Regenerate {
		t.Error("regenerate signal missing")
	}

	skill, err := e.store.GetSkill(context.Background(), resp.SkillID)
	if err != nil {
		t.Fatalf("get skill: %v", err)
	}
	if skill.Active {
		t.Error("skill must stay inactive after a rejected payload")
	}
	questions, _ := e.store.QuestionsBySkill(context.Background(), resp.SkillID)
	if len(questions) != 0 {
		t.Errorf("nothing may persist from a malformed payload, got %d questions", len(questions))
	}
}

const listeningResponse = `{
  "test_title": "Listening Practice",
  "parts": [
    {"part_number": 1, "title": "Part 1", "audio_script": "Good morning.",
     "question_groups": [{"question_type": "fill_blank", "questions": [{"content": "Name: ____", "correct_answer": "Sarah"}]}]},
    {"part_number": 2, "title": "Part 2", "audio_script": "Welcome back.",
     "question_groups": [{"question_type": "fill_blank", "questions": [{"content": "Day: ____", "correct_answer": "Monday"}]}]}
  ]
}`

func TestGenerateListeningSkillSynthesizesAudio(t *testing.T) {
	e := newEnv(t)
	mock := &llm.Mock{Responses: []json.RawMessage{json.RawMessage(listeningResponse)}}
	h := api.GenerateSkillHandler(e.store, e.persister, mock, e.events, api.GenerateOpts{Blobs: e.blobs, Strict: true})

	body := fmt.Sprintf(`{"test_id": %d, "skill_type": "listening", "num_questions": 2}`, e.testID)
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/admin/skills/generate", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SkillID  int64 `json:"skill_id"`
		Sections int   `json:"sections"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Sections != 2 {
		t.Fatalf("want one section per part, got %d", resp.Sections)
	}
	if len(mock.SpeechCalls) != 2 {
		t.Fatalf("speech synthesis calls: %d", len(mock.SpeechCalls))
	}

	sections, err := e.store.ListSections(context.Background(), resp.SkillID)
	if err != nil || len(sections) != 2 {
		t.Fatalf("sections: %v %d", err, len(sections))
	}
	for _, sec := range sections {
		if !strings.HasPrefix(sec.AudioRef, "/uploads/audio/") {
			t.Errorf("audio ref %q", sec.AudioRef)
		}
		rc, err := e.blobs.Get(strings.TrimPrefix(sec.AudioRef, "/uploads/"))
		if err != nil {
			t.Errorf("recording not stored for %q: %v", sec.Name, err)
			continue
		}
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(rc)
		rc.Close()
		if buf.Len() == 0 {
			t.Errorf("empty recording for %q", sec.Name)
		}
	}
}

func TestPreviewQuestionsHandlerDoesNotPersist(t *testing.T) {
	e := newEnv(t)
	mock := &llm.Mock{Responses: []json.RawMessage{json.RawMessage(readingResponse)}}
	h := api.PreviewQuestionsHandler(mock, api.GenerateOpts{Blobs: e.blobs})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest("POST", "/admin/skills/preview", strings.NewReader(`{"skill_type":"reading"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Sections []json.RawMessage `json:"sections"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sections) != 1 {
		t.Fatalf("sections: %d", len(resp.Sections))
	}
	// nothing was written: the only skill-free test has no skills
	skills, err := e.store.ListSkills(context.Background(), e.testID)
	if err != nil {
		t.Fatalf("list skills: %v", err)
	}
	if len(skills) != 0 {
		t.Errorf("preview persisted a skill")
	}
}
