package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prepstack/prepstack/internal/audit"
	"github.com/prepstack/prepstack/internal/auth"
	"github.com/prepstack/prepstack/internal/content"
	"github.com/prepstack/prepstack/internal/exam"
	"github.com/prepstack/prepstack/internal/llm"
	"github.com/prepstack/prepstack/internal/storage"
)

// GenerateOpts carries the knobs the generation handlers need beyond
// their service dependencies.
type GenerateOpts struct {
	Blobs  storage.BlobStore
	Strict bool
}

type generateRequest struct {
	TestID        int64    `json:"test_id"`
	SkillType     string   `json:"skill_type"`
	Name          string   `json:"name"`
	Topic         string   `json:"topic"`
	Difficulty    string   `json:"difficulty"`
	NumQuestions  int      `json:"num_questions"`
	QuestionTypes []string `json:"question_types"`
	TimeLimit     int      `json:"time_limit"`
}

func (req *generateRequest) validate() string {
	req.SkillType = strings.ToLower(strings.TrimSpace(req.SkillType))
	switch req.SkillType {
	case content.SkillReading, content.SkillWriting, content.SkillListening, content.SkillSpeaking:
	default:
		return "skill_type must be reading, writing, listening or speaking"
	}
	if req.NumQuestions <= 0 {
		req.NumQuestions = defaultQuestionCount(req.SkillType)
	}
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}
	return ""
}

func defaultQuestionCount(skill string) int {
	switch skill {
	case content.SkillWriting:
		return 2
	case content.SkillSpeaking:
		return 3
	default:
		return 10
	}
}

// GenerateSkillHandler runs the full pipeline: create an inactive skill,
// call the model, normalize the response, persist the tree and only then
// activate the skill. The model call happens outside any transaction.
func GenerateSkillHandler(store exam.Store, persister *exam.TreePersister, svc llm.Service, events *audit.Log, opts GenerateOpts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorJSON(w, http.StatusBadRequest, "bad json")
			return
		}
		if msg := req.validate(); msg != "" {
			errorJSON(w, http.StatusBadRequest, msg)
			return
		}
		test, err := store.GetTest(r.Context(), req.TestID)
		if err != nil {
			storeError(w, err)
			return
		}

		name := req.Name
		if name == "" {
			name = strings.ToUpper(req.SkillType[:1]) + req.SkillType[1:]
		}
		skillID, err := store.CreateSkill(r.Context(), exam.Skill{
			TestID:    test.ID,
			Type:      req.SkillType,
			Name:      name,
			TimeLimit: req.TimeLimit,
			CreatedAt: time.Now().Unix(),
		})
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		provisionalID, err := store.CreateSection(r.Context(), exam.Section{
			SkillID:  skillID,
			Name:     "Section 1",
			Position: 1,
		})
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}

		raw, err := svc.GenerateQuestions(r.Context(), llm.GenerationSpec{
			ExamFamily:    test.Family,
			Skill:         req.SkillType,
			Topic:         req.Topic,
			Difficulty:    req.Difficulty,
			NumQuestions:  req.NumQuestions,
			QuestionTypes: req.QuestionTypes,
		})
		if err != nil {
			errorJSON(w, http.StatusBadGateway, "question generation failed: "+err.Error())
			return
		}

		_, sections, err := content.Normalize(raw, req.SkillType, req.NumQuestions, opts.Strict)
		if err != nil {
			var malformed *content.MalformedContentError
			if errors.As(err, &malformed) {
				_ = events.Append(r.Context(), audit.Event{
					Actor:    auth.SubjectFromContext(r.Context()),
					Type:     "generation.rejected",
					Key:      fmt.Sprintf("skill:%d", skillID),
					DataJSON: fmt.Sprintf(`{"shape":%q,"reason":%q}`, malformed.Shape, malformed.Reason),
				})
				// The skill stays inactive; the client should regenerate.
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
					"error":      malformed.Error(),
					"shape":      string(malformed.Shape),
					"skill_id":   skillID,
					"regenerate": true,
				})
				return
			}
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}

		if req.SkillType == content.SkillListening {
			llm.GenerateListeningAudio(r.Context(), svc, opts.Blobs, sections)
		}

		counts, err := persister.Persist(r.Context(), skillID, provisionalID, sections)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := store.ActivateSkill(r.Context(), skillID); err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		_ = events.Append(r.Context(), audit.Event{
			Actor:    auth.SubjectFromContext(r.Context()),
			Type:     "skill.generated",
			Key:      fmt.Sprintf("skill:%d", skillID),
			DataJSON: fmt.Sprintf(`{"sections":%d,"groups":%d,"questions":%d}`, counts.Sections, counts.Groups, counts.Questions),
		})

		writeJSON(w, http.StatusCreated, map[string]any{
			"skill_id":  skillID,
			"sections":  counts.Sections,
			"groups":    counts.Groups,
			"questions": counts.Questions,
		})
	}
}

// PreviewQuestionsHandler generates and normalizes without touching
// storage, for review before a real generation run.
func PreviewQuestionsHandler(svc llm.Service, opts GenerateOpts) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorJSON(w, http.StatusBadRequest, "bad json")
			return
		}
		if msg := req.validate(); msg != "" {
			errorJSON(w, http.StatusBadRequest, msg)
			return
		}
		raw, err := svc.GenerateQuestions(r.Context(), llm.GenerationSpec{
			ExamFamily:    "ielts",
			Skill:         req.SkillType,
			Topic:         req.Topic,
			Difficulty:    req.Difficulty,
			NumQuestions:  req.NumQuestions,
			QuestionTypes: req.QuestionTypes,
		})
		if err != nil {
			errorJSON(w, http.StatusBadGateway, "question generation failed: "+err.Error())
			return
		}
		// Previews are always lenient: a count mismatch is visible to the
		// reviewer anyway.
		block, sections, err := content.Normalize(raw, req.SkillType, 0, false)
		if err != nil {
			var malformed *content.MalformedContentError
			if errors.As(err, &malformed) {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
					"error":      malformed.Error(),
					"shape":      string(malformed.Shape),
					"regenerate": true,
				})
				return
			}
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"passage":  block,
			"sections": sections,
		})
	}
}
