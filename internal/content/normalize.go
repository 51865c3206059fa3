package content

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContentBlock is a passage or a listening part's situational context.
type ContentBlock struct {
	Title        string `json:"title"`
	Introduction string `json:"introduction,omitempty"`
	BodyText     string `json:"content"`
	WordCount    int    `json:"word_count,omitempty"`
}

// Section is one exam section of the canonical tree. Listening yields one
// Section per spoken part; every other shape yields exactly one.
type Section struct {
	Name     string
	Content  *ContentBlock
	AudioRef string
	Script   string // spoken transcript, input to speech synthesis
	Groups   []Group
}

// Group is a set of questions sharing one instruction and default type.
type Group struct {
	Name        string
	TypeHint    string
	Instruction string
	Questions   []Question
}

// Question is one normalized question descriptor.
type Question struct {
	Ordinal     int
	Prompt      string
	Type        string
	Answer      AnswerMaterial
	Explanation string
	Locate      string
	Points      float64
}

// MalformedContentError reports generation output that cannot be mapped
// onto the canonical tree. Callers should surface it as a regenerate
// signal; nothing is ever persisted from a malformed payload.
type MalformedContentError struct {
	Shape  Shape
	Reason string
}

func (e *MalformedContentError) Error() string {
	return fmt.Sprintf("malformed generated content (shape %s): %s", e.Shape, e.Reason)
}

const defaultQuestionType = "multiple_choice"

// wire types for the known payload variants

type rawAnswer struct {
	AnswerContent string `json:"answer_content"`
	Text          string `json:"text"`
	IsCorrect     bool   `json:"is_correct"`
	Feedback      string `json:"feedback"`
}

type rawQuestion struct {
	Number        int             `json:"question_number"`
	Content       string          `json:"content"`
	QuestionText  string          `json:"question_text"`
	QuestionType  string          `json:"question_type"`
	Answers       []rawAnswer     `json:"answers"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer string          `json:"correct_answer"`
	Explanation   string          `json:"explanation"`
	Locate        string          `json:"locate"`
	Points        float64         `json:"points"`
}

type rawGroup struct {
	GroupName        string        `json:"group_name"`
	SectionTitle     string        `json:"section_title"`
	QuestionType     string        `json:"question_type"`
	Instruction      string        `json:"instruction"`
	GroupInstruction string        `json:"group_instruction"`
	Questions        []rawQuestion `json:"questions"`
}

type rawPassage struct {
	Title        string `json:"title"`
	Introduction string `json:"introduction"`
	Content      string `json:"content"`
	WordCount    int    `json:"word_count"`
}

type rawPart struct {
	PartNumber  int        `json:"part_number"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	Context     string     `json:"context"`
	AudioScript string     `json:"audio_script"`
	AudioURL    string     `json:"audio_url"`
	Groups      []rawGroup `json:"question_groups"`
}

type rawEnvelope struct {
	TestTitle string        `json:"test_title"`
	Passage   *rawPassage   `json:"passage"`
	Groups    []rawGroup    `json:"question_groups"`
	Questions []rawQuestion `json:"questions"`
	Parts     []rawPart     `json:"parts"`
}

// Normalize maps a raw generation response onto the canonical tree for the
// given skill. want is the requested question count; in strict mode a
// count mismatch (or an unrepairable multiple-choice key) is rejected with
// MalformedContentError, in lenient mode it is repaired or let through for
// human review. Ordinals in the result are always contiguous from 1: the
// model's own numbering is never trusted.
func Normalize(raw []byte, skill string, want int, strict bool) (*ContentBlock, []Section, error) {
	payload := ExtractJSON(raw)
	shape := DetectShape(payload, skill)
	if shape == ShapeUnrecognized {
		return nil, nil, &MalformedContentError{Shape: shape, Reason: "no known layout keys present"}
	}

	var (
		block    *ContentBlock
		sections []Section
		err      error
	)
	switch shape {
	case ShapeListeningParts:
		sections, err = normalizeParts(payload, strict)
	case ShapePassageGroups:
		block, sections, err = normalizePassage(payload, strict)
	case ShapeWritingTasks, ShapeSpeakingParts:
		sections, err = normalizeFreeResponse(payload, skill)
	case ShapeLegacyFlat:
		sections, err = normalizeFlat(payload, strict)
	}
	if err != nil {
		return nil, nil, err
	}

	total := renumber(sections)
	if total == 0 {
		return nil, nil, &MalformedContentError{Shape: shape, Reason: "payload contains no questions"}
	}
	if strict && want > 0 && total != want {
		return nil, nil, &MalformedContentError{
			Shape:  shape,
			Reason: fmt.Sprintf("question count %d does not match requested %d", total, want),
		}
	}
	return block, sections, nil
}

func normalizePassage(payload []byte, strict bool) (*ContentBlock, []Section, error) {
	var env rawEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, nil, &MalformedContentError{Shape: ShapePassageGroups, Reason: err.Error()}
	}
	var block *ContentBlock
	name := "Section 1"
	if env.Passage != nil {
		block = &ContentBlock{
			Title:        env.Passage.Title,
			Introduction: env.Passage.Introduction,
			BodyText:     env.Passage.Content,
			WordCount:    env.Passage.WordCount,
		}
		if env.Passage.Title != "" {
			name = env.Passage.Title
		}
	}
	groups := env.Groups
	if len(groups) == 0 && len(env.Questions) > 0 {
		// passage + flat questions: synthesize a single group
		groups = []rawGroup{{Questions: env.Questions}}
	}
	sec := Section{Name: name, Content: block}
	for _, g := range groups {
		ng, err := normalizeGroup(g, strict)
		if err != nil {
			return nil, nil, err
		}
		sec.Groups = append(sec.Groups, ng)
	}
	return block, []Section{sec}, nil
}

func normalizeParts(payload []byte, strict bool) ([]Section, error) {
	var env rawEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &MalformedContentError{Shape: ShapeListeningParts, Reason: err.Error()}
	}
	sections := make([]Section, 0, len(env.Parts))
	for i, part := range env.Parts {
		name := part.Title
		if name == "" {
			name = fmt.Sprintf("Part %d", i+1)
		}
		if part.Subtitle != "" {
			name = name + " - " + part.Subtitle
		}
		sec := Section{
			Name:     name,
			AudioRef: part.AudioURL,
			Script:   part.AudioScript,
		}
		if part.Context != "" {
			sec.Content = &ContentBlock{Title: part.Title, BodyText: part.Context}
		}
		for _, g := range part.Groups {
			ng, err := normalizeGroup(g, strict)
			if err != nil {
				return nil, err
			}
			sec.Groups = append(sec.Groups, ng)
		}
		sections = append(sections, sec)
	}
	return sections, nil
}

func normalizeFreeResponse(payload []byte, skill string) ([]Section, error) {
	shape := ShapeWritingTasks
	if strings.EqualFold(skill, SkillSpeaking) {
		shape = ShapeSpeakingParts
	}
	var env rawEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, &MalformedContentError{Shape: shape, Reason: err.Error()}
	}
	sec := Section{Name: titleCase(skill)}
	for _, g := range env.Groups {
		ng := Group{
			Name:        groupName(g),
			TypeHint:    g.QuestionType,
			Instruction: groupInstruction(g),
		}
		for _, q := range g.Questions {
			qType := q.QuestionType
			if qType == "" {
				qType = g.QuestionType
			}
			ng.Questions = append(ng.Questions, Question{
				Prompt: questionPrompt(q),
				Type:   qType,
				// free-response tasks have no machine-checkable key
				Answer:      PlainAnswer(""),
				Explanation: q.Explanation,
				Points:      q.Points,
			})
		}
		sec.Groups = append(sec.Groups, ng)
	}
	return []Section{sec}, nil
}

func normalizeFlat(payload []byte, strict bool) ([]Section, error) {
	var questions []rawQuestion
	if err := json.Unmarshal(payload, &questions); err != nil {
		return nil, &MalformedContentError{Shape: ShapeLegacyFlat, Reason: err.Error()}
	}
	qType := defaultQuestionType
	if len(questions) > 0 && questions[0].QuestionType != "" {
		qType = questions[0].QuestionType
	}
	g := rawGroup{
		GroupName:    fmt.Sprintf("Questions 1-%d", len(questions)),
		QuestionType: qType,
		Questions:    questions,
	}
	ng, err := normalizeGroup(g, strict)
	if err != nil {
		return nil, err
	}
	return []Section{{Name: "Section 1", Groups: []Group{ng}}}, nil
}

func normalizeGroup(g rawGroup, strict bool) (Group, error) {
	ng := Group{
		Name:        groupName(g),
		TypeHint:    g.QuestionType,
		Instruction: groupInstruction(g),
	}
	for _, q := range g.Questions {
		qType := q.QuestionType
		if qType == "" {
			qType = g.QuestionType
		}
		if qType == "" {
			qType = defaultQuestionType
		}
		material, err := answerMaterial(q, qType, strict)
		if err != nil {
			return Group{}, err
		}
		points := q.Points
		if points == 0 {
			points = 1
		}
		ng.Questions = append(ng.Questions, Question{
			Prompt:      questionPrompt(q),
			Type:        qType,
			Answer:      material,
			Explanation: q.Explanation,
			Locate:      q.Locate,
			Points:      points,
		})
	}
	return ng, nil
}

// answerMaterial builds the tagged union for one question and enforces the
// one-flagged-option invariant for multiple choice: repaired in lenient
// mode, rejected in strict mode.
func answerMaterial(q rawQuestion, qType string, strict bool) (AnswerMaterial, error) {
	if len(q.Answers) > 0 {
		opts := make([]Option, 0, len(q.Answers))
		for _, a := range q.Answers {
			text := a.AnswerContent
			if text == "" {
				text = a.Text
			}
			opts = append(opts, Option{Text: text, Correct: a.IsCorrect, Feedback: a.Feedback})
		}
		if qType == defaultQuestionType {
			repaired, ok := repairOptions(opts, q.CorrectAnswer)
			if !ok {
				if strict {
					return AnswerMaterial{}, &MalformedContentError{
						Reason: fmt.Sprintf("question %q has no usable correct option", questionPrompt(q)),
					}
				}
				repaired = opts
				if len(repaired) > 0 {
					repaired[0].Correct = true
				}
			} else {
				opts = repaired
			}
		}
		return OptionsAnswer(q.CorrectAnswer, opts), nil
	}
	if len(q.Options) > 0 {
		var labels map[string]string
		if err := json.Unmarshal(q.Options, &labels); err == nil && len(labels) > 0 {
			return LabeledAnswer(q.CorrectAnswer, labels), nil
		}
		var texts []string
		if err := json.Unmarshal(q.Options, &texts); err == nil && len(texts) > 0 {
			opts := make([]Option, 0, len(texts))
			for _, t := range texts {
				opts = append(opts, Option{Text: t, Correct: foldEqual(t, q.CorrectAnswer)})
			}
			return OptionsAnswer(q.CorrectAnswer, opts), nil
		}
	}
	return PlainAnswer(q.CorrectAnswer), nil
}

// repairOptions normalizes the correctness flags so exactly one option is
// flagged. Returns false when no flag is set and the stored answer text
// matches no option.
func repairOptions(opts []Option, correctText string) ([]Option, bool) {
	flagged := -1
	for i, o := range opts {
		if o.Correct {
			if flagged == -1 {
				flagged = i
			} else {
				// duplicate flags: keep the first
				opts[i].Correct = false
			}
		}
	}
	if flagged != -1 {
		return opts, true
	}
	for i, o := range opts {
		if foldEqual(o.Text, correctText) && correctText != "" {
			opts[i].Correct = true
			return opts, true
		}
	}
	return nil, false
}

// renumber assigns contiguous ordinals from 1 across the whole tree,
// continuing across sections without reset, and returns the total.
func renumber(sections []Section) int {
	n := 0
	for si := range sections {
		for gi := range sections[si].Groups {
			qs := sections[si].Groups[gi].Questions
			for qi := range qs {
				n++
				qs[qi].Ordinal = n
			}
		}
	}
	return n
}

// ExtractJSON strips markdown code fences and surrounding prose from a
// model response, returning the outermost JSON object or array.
func ExtractJSON(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')
	start, closer := objStart, byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start, closer = arrStart, ']'
	}
	if start == -1 {
		return []byte(s)
	}
	if end := strings.LastIndexByte(s, closer); end > start {
		return []byte(s[start : end+1])
	}
	return []byte(s)
}

func groupName(g rawGroup) string {
	switch {
	case g.GroupName != "":
		return g.GroupName
	case g.SectionTitle != "":
		return g.SectionTitle
	case g.GroupInstruction != "":
		return g.GroupInstruction
	default:
		return "Questions"
	}
}

func groupInstruction(g rawGroup) string {
	if g.Instruction != "" {
		return g.Instruction
	}
	return g.GroupInstruction
}

func questionPrompt(q rawQuestion) string {
	if q.Content != "" {
		return q.Content
	}
	return q.QuestionText
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
