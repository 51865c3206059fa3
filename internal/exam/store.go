package exam

import "context"

// SubmissionListOpts filters ListSubmissions.
type SubmissionListOpts struct {
	UserID  int64
	SkillID int64  // 0 = any
	Status  string // optional
	Limit   int
	Offset  int
}

// Store is the persistence surface for the exam content tree and
// learner submissions.
type Store interface {
	CreateTest(ctx context.Context, t Test) (int64, error)
	GetTest(ctx context.Context, id int64) (Test, error)
	ListTests(ctx context.Context) ([]Test, error)

	CreateSkill(ctx context.Context, s Skill) (int64, error)
	GetSkill(ctx context.Context, id int64) (Skill, error)
	ListSkills(ctx context.Context, testID int64) ([]Skill, error)
	ActivateSkill(ctx context.Context, id int64) error
	DeleteSkill(ctx context.Context, id int64) error

	CreateSection(ctx context.Context, s Section) (int64, error)
	ListSections(ctx context.Context, skillID int64) ([]Section, error)
	ListGroups(ctx context.Context, sectionID int64) ([]QuestionGroup, error)
	ListGroupQuestions(ctx context.Context, groupID int64) ([]Question, error)

	// QuestionsBySkill returns every non-deleted question reachable from
	// the skill, in section/group/position order.
	QuestionsBySkill(ctx context.Context, skillID int64) ([]Question, error)
	GetQuestion(ctx context.Context, id int64) (Question, error)
	DeleteQuestion(ctx context.Context, id int64) error

	// CreateSubmission writes the submission and all its answers in one
	// transaction.
	CreateSubmission(ctx context.Context, sub Submission, answers []Answer) (Submission, error)
	GetSubmission(ctx context.Context, id int64) (Submission, error)
	ListSubmissions(ctx context.Context, opts SubmissionListOpts) ([]Submission, error)
	AnswersBySubmission(ctx context.Context, submissionID int64) ([]Answer, error)

	// AttachGradingResult records an external band-grading result on one
	// answer and, when every answer of the submission has a verdict or a
	// result, flips the submission to graded.
	AttachGradingResult(ctx context.Context, answerID int64, score float64, feedbackJSON string) error
}
