package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prepstack/prepstack/internal/auth"
	"github.com/prepstack/prepstack/internal/content"
	"github.com/prepstack/prepstack/internal/exam"
	"github.com/prepstack/prepstack/internal/rbac"
)

func CreateTestHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exam.Test
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorJSON(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.Name == "" {
			errorJSON(w, http.StatusBadRequest, "name required")
			return
		}
		if req.Family == "" {
			req.Family = "ielts"
		}
		req.Active = true
		req.CreatedAt = time.Now().Unix()
		id, err := store.CreateTest(r.Context(), req)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		req.ID = id
		writeJSON(w, http.StatusCreated, req)
	}
}

func ListTestsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tests, err := store.ListTests(r.Context())
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tests": tests})
	}
}

// ListSkillsHandler returns the skills of a test. Learners only see
// active ones; an inactive skill is a generation in flight or a failed
// one awaiting regeneration.
func ListSkillsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		testID, err := idParam(r, "testID")
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "bad test id")
			return
		}
		skills, err := store.ListSkills(r.Context(), testID)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rbac.RoleFromContext(r.Context()) != auth.RoleAdmin {
			visible := skills[:0]
			for _, s := range skills {
				if s.Active {
					visible = append(visible, s)
				}
			}
			skills = visible
		}
		writeJSON(w, http.StatusOK, map[string]any{"skills": skills})
	}
}

type questionView struct {
	ID            int64             `json:"id"`
	Prompt        string            `json:"question_text"`
	Type          string            `json:"question_type"`
	Options       []string          `json:"options,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
	Points        float64           `json:"points"`
	Position      int               `json:"position"`
	CorrectAnswer string            `json:"correct_answer,omitempty"`
	Explanation   string            `json:"explanation,omitempty"`
	Locate        string            `json:"locate,omitempty"`
}

type groupView struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	QuestionType string         `json:"question_type"`
	Instruction  string         `json:"instruction,omitempty"`
	Questions    []questionView `json:"questions"`
}

type sectionView struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Content  json.RawMessage `json:"content,omitempty"`
	AudioRef string          `json:"audio,omitempty"`
	Groups   []groupView     `json:"question_groups"`
}

// GetSkillTreeHandler returns a skill's full content tree. The answer key
// and explanations are stripped for learners; admins get everything.
func GetSkillTreeHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skillID, err := idParam(r, "skillID")
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "bad skill id")
			return
		}
		skill, err := store.GetSkill(r.Context(), skillID)
		if err != nil {
			storeError(w, err)
			return
		}
		isAdmin := rbac.RoleFromContext(r.Context()) == auth.RoleAdmin
		if !skill.Active && !isAdmin {
			errorJSON(w, http.StatusNotFound, "not found")
			return
		}

		sections, err := store.ListSections(r.Context(), skillID)
		if err != nil {
			errorJSON(w, http.StatusInternalServerError, err.Error())
			return
		}
		views := make([]sectionView, 0, len(sections))
		for _, sec := range sections {
			sv := sectionView{ID: sec.ID, Name: sec.Name, AudioRef: sec.AudioRef, Groups: []groupView{}}
			if sec.Content != "" {
				if json.Valid([]byte(sec.Content)) {
					sv.Content = json.RawMessage(sec.Content)
				} else {
					plain, _ := json.Marshal(sec.Content)
					sv.Content = plain
				}
			}
			groups, err := store.ListGroups(r.Context(), sec.ID)
			if err != nil {
				errorJSON(w, http.StatusInternalServerError, err.Error())
				return
			}
			for _, g := range groups {
				gv := groupView{ID: g.ID, Name: g.Name, QuestionType: g.QuestionType, Instruction: g.Instruction}
				questions, err := store.ListGroupQuestions(r.Context(), g.ID)
				if err != nil {
					errorJSON(w, http.StatusInternalServerError, err.Error())
					return
				}
				for _, q := range questions {
					gv.Questions = append(gv.Questions, newQuestionView(q, isAdmin))
				}
				sv.Groups = append(sv.Groups, gv)
			}
			views = append(views, sv)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"skill":    skill,
			"sections": views,
		})
	}
}

func newQuestionView(q exam.Question, withKey bool) questionView {
	v := questionView{
		ID:       q.ID,
		Prompt:   q.Prompt,
		Type:     q.Type,
		Points:   q.Points,
		Position: q.Position,
	}
	material := content.DecodeAnswerMaterial(q.OptionsJSON, q.CorrectAnswer)
	switch material.Kind {
	case content.AnswerOptions:
		for _, opt := range material.Options {
			v.Options = append(v.Options, opt.Text)
		}
	case content.AnswerLabeled:
		v.Labels = material.Labels
	}
	if withKey {
		v.CorrectAnswer = material.CorrectText()
		v.Explanation = q.Explanation
		v.Locate = q.Locate
	}
	return v
}

func DeleteSkillHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "skillID")
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "bad skill id")
			return
		}
		if err := store.DeleteSkill(r.Context(), id); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	}
}

func DeleteQuestionHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "questionID")
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "bad question id")
			return
		}
		if err := store.DeleteQuestion(r.Context(), id); err != nil {
			storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	}
}
