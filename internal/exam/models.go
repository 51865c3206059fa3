package exam

// Test groups the four skills of one exam instance.
type Test struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Family      string `json:"family"` // ielts, toeic, ...
	Active      bool   `json:"is_active"`
	CreatedAt   int64  `json:"created_at,omitempty"`
}

// Skill is one testable unit (Reading, Writing, Listening, Speaking)
// within a Test. A skill stays inactive, invisible to learners, until its
// content tree has been fully persisted.
type Skill struct {
	ID        int64  `json:"id"`
	TestID    int64  `json:"test_id"`
	Type      string `json:"skill_type"` // reading|writing|listening|speaking
	Name      string `json:"name"`
	TimeLimit int    `json:"time_limit,omitempty"` // minutes
	Active    bool   `json:"is_active"`
	CreatedAt int64  `json:"created_at,omitempty"`
}

// Section is a sub-division of a Skill carrying shared context: a reading
// passage (JSON-encoded content block) or a listening part (plain context
// text plus an audio reference).
type Section struct {
	ID       int64  `json:"id"`
	SkillID  int64  `json:"skill_id"`
	Name     string `json:"name"`
	Content  string `json:"content,omitempty"`
	AudioRef string `json:"audio,omitempty"`
	Position int    `json:"position"`
}

// QuestionGroup is a set of questions under one instruction. Its question
// type acts as the default for questions that declare none.
type QuestionGroup struct {
	ID           int64  `json:"id"`
	SectionID    int64  `json:"section_id"`
	Name         string `json:"name"`
	QuestionType string `json:"question_type"`
	Instruction  string `json:"instruction,omitempty"`
	Position     int    `json:"position"`
}

// Question is a single persisted question. OptionsJSON holds the
// serialized answer material blob (options array or label map); the
// content package reconstructs the tagged union from it. Questions are
// soft-deleted only, so historical submissions keep resolving.
type Question struct {
	ID            int64   `json:"id"`
	GroupID       int64   `json:"question_group_id"`
	Prompt        string  `json:"question_text"`
	Type          string  `json:"question_type"`
	OptionsJSON   string  `json:"options,omitempty"`
	CorrectAnswer string  `json:"correct_answer,omitempty"`
	Explanation   string  `json:"explanation,omitempty"`
	Locate        string  `json:"locate,omitempty"`
	Points        float64 `json:"points"`
	Position      int     `json:"position"`
}

// Submission states.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusGraded     = "graded"
)

// Submission is one (learner, skill) attempt.
type Submission struct {
	ID          int64    `json:"id"`
	UserID      int64    `json:"user_id"`
	SkillID     int64    `json:"skill_id"`
	SectionID   *int64   `json:"section_id,omitempty"`
	Status      string   `json:"status"`
	StartedAt   int64    `json:"started_at"`
	SubmittedAt *int64   `json:"submitted_at,omitempty"`
	TimeSpent   *int     `json:"time_spent,omitempty"` // seconds
	TotalScore  *float64 `json:"total_score,omitempty"`
	MaxScore    *float64 `json:"max_score,omitempty"`
}

// Answer is one learner response within a submission. Correct stays nil
// for question types outside the auto-gradable set until an external
// grading result is attached; FeedbackJSON then carries the band result.
type Answer struct {
	ID           int64    `json:"id"`
	SubmissionID int64    `json:"submission_id"`
	QuestionID   int64    `json:"question_id"`
	Text         string   `json:"answer_text,omitempty"`
	AudioRef     string   `json:"answer_audio,omitempty"`
	Correct      *bool    `json:"is_correct,omitempty"`
	Score        *float64 `json:"score,omitempty"`
	FeedbackJSON string   `json:"ai_feedback,omitempty"`
}
