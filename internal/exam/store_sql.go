package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested row does not exist or is
// soft-deleted.
var ErrNotFound = errors.New("not found")

// SQLStore implements Store over database/sql (sqlite or postgres).
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

// DB exposes the handle for components that manage their own
// transactions (the tree persister).
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) CreateTest(ctx context.Context, t Test) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO tests (name,description,family,is_active,created_at) VALUES ($1,$2,$3,$4,$5)`,
		t.Name, t.Description, t.Family, t.Active, time.Now().Unix())
}

func (s *SQLStore) GetTest(ctx context.Context, id int64) (Test, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,name,description,family,is_active,created_at FROM tests WHERE id=$1 AND deleted_at IS NULL`, id)
	var t Test
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Family, &t.Active, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Test{}, fmt.Errorf("test %d: %w", id, ErrNotFound)
		}
		return Test{}, err
	}
	return t, nil
}

func (s *SQLStore) ListTests(ctx context.Context) ([]Test, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,name,description,family,is_active,created_at FROM tests WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Test
	for rows.Next() {
		var t Test
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Family, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) CreateSkill(ctx context.Context, sk Skill) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO skills (test_id,skill_type,name,time_limit,is_active,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		sk.TestID, sk.Type, sk.Name, sk.TimeLimit, sk.Active, time.Now().Unix())
}

func (s *SQLStore) GetSkill(ctx context.Context, id int64) (Skill, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,test_id,skill_type,name,time_limit,is_active,created_at FROM skills WHERE id=$1 AND deleted_at IS NULL`, id)
	var sk Skill
	if err := row.Scan(&sk.ID, &sk.TestID, &sk.Type, &sk.Name, &sk.TimeLimit, &sk.Active, &sk.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Skill{}, fmt.Errorf("skill %d: %w", id, ErrNotFound)
		}
		return Skill{}, err
	}
	return sk, nil
}

func (s *SQLStore) ListSkills(ctx context.Context, testID int64) ([]Skill, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,test_id,skill_type,name,time_limit,is_active,created_at FROM skills
		 WHERE test_id=$1 AND deleted_at IS NULL ORDER BY id`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Skill
	for rows.Next() {
		var sk Skill
		if err := rows.Scan(&sk.ID, &sk.TestID, &sk.Type, &sk.Name, &sk.TimeLimit, &sk.Active, &sk.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

func (s *SQLStore) ActivateSkill(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE skills SET is_active=TRUE WHERE id=$1 AND deleted_at IS NULL`, id)
	return err
}

func (s *SQLStore) DeleteSkill(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE skills SET deleted_at=$1 WHERE id=$2 AND deleted_at IS NULL`,
		time.Now().Unix(), id)
	return err
}

func (s *SQLStore) CreateSection(ctx context.Context, sec Section) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO sections (skill_id,name,content,audio,position) VALUES ($1,$2,$3,$4,$5)`,
		sec.SkillID, sec.Name, sec.Content, sec.AudioRef, sec.Position)
}

func (s *SQLStore) ListSections(ctx context.Context, skillID int64) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,skill_id,name,content,audio,position FROM sections
		 WHERE skill_id=$1 AND deleted_at IS NULL ORDER BY position,id`, skillID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Section
	for rows.Next() {
		var sec Section
		if err := rows.Scan(&sec.ID, &sec.SkillID, &sec.Name, &sec.Content, &sec.AudioRef, &sec.Position); err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListGroups(ctx context.Context, sectionID int64) ([]QuestionGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,section_id,name,question_type,instruction,position FROM question_groups
		 WHERE section_id=$1 AND deleted_at IS NULL ORDER BY position,id`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []QuestionGroup
	for rows.Next() {
		var g QuestionGroup
		if err := rows.Scan(&g.ID, &g.SectionID, &g.Name, &g.QuestionType, &g.Instruction, &g.Position); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListGroupQuestions(ctx context.Context, groupID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, questionSelect+
		` WHERE q.question_group_id=$1 AND q.deleted_at IS NULL ORDER BY q.position,q.id`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuestions(rows)
}

const questionSelect = `SELECT q.id,q.question_group_id,q.question_text,q.question_type,
	COALESCE(q.options,''),COALESCE(q.correct_answer,''),COALESCE(q.explanation,''),COALESCE(q.locate,''),
	q.points,q.position FROM questions q`

func (s *SQLStore) QuestionsBySkill(ctx context.Context, skillID int64) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, questionSelect+`
		JOIN question_groups g ON q.question_group_id = g.id
		JOIN sections sec ON g.section_id = sec.id
		WHERE sec.skill_id=$1 AND q.deleted_at IS NULL AND g.deleted_at IS NULL AND sec.deleted_at IS NULL
		ORDER BY sec.position, sec.id, g.position, g.id, q.position, q.id`, skillID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuestions(rows)
}

func (s *SQLStore) GetQuestion(ctx context.Context, id int64) (Question, error) {
	row := s.db.QueryRowContext(ctx, questionSelect+` WHERE q.id=$1 AND q.deleted_at IS NULL`, id)
	var q Question
	err := row.Scan(&q.ID, &q.GroupID, &q.Prompt, &q.Type, &q.OptionsJSON, &q.CorrectAnswer,
		&q.Explanation, &q.Locate, &q.Points, &q.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, fmt.Errorf("question %d: %w", id, ErrNotFound)
	}
	return q, err
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE questions SET deleted_at=$1 WHERE id=$2 AND deleted_at IS NULL`,
		time.Now().Unix(), id)
	return err
}

func (s *SQLStore) CreateSubmission(ctx context.Context, sub Submission, answers []Answer) (Submission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Submission{}, err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO submissions (user_id,skill_id,section_id,status,started_at,submitted_at,time_spent,total_score,max_score)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		sub.UserID, sub.SkillID, sub.SectionID, sub.Status, sub.StartedAt, sub.SubmittedAt,
		sub.TimeSpent, sub.TotalScore, sub.MaxScore).Scan(&sub.ID)
	if err != nil {
		return Submission{}, err
	}
	for _, a := range answers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO answers (submission_id,question_id,answer_text,answer_audio,is_correct,score,ai_feedback)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			sub.ID, a.QuestionID, a.Text, a.AudioRef, a.Correct, a.Score, a.FeedbackJSON); err != nil {
			return Submission{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (s *SQLStore) GetSubmission(ctx context.Context, id int64) (Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,user_id,skill_id,section_id,status,started_at,submitted_at,time_spent,total_score,max_score
		 FROM submissions WHERE id=$1 AND deleted_at IS NULL`, id)
	var sub Submission
	err := row.Scan(&sub.ID, &sub.UserID, &sub.SkillID, &sub.SectionID, &sub.Status,
		&sub.StartedAt, &sub.SubmittedAt, &sub.TimeSpent, &sub.TotalScore, &sub.MaxScore)
	if errors.Is(err, sql.ErrNoRows) {
		return Submission{}, fmt.Errorf("submission %d: %w", id, ErrNotFound)
	}
	return sub, err
}

func (s *SQLStore) ListSubmissions(ctx context.Context, opts SubmissionListOpts) ([]Submission, error) {
	q := `SELECT id,user_id,skill_id,section_id,status,started_at,submitted_at,time_spent,total_score,max_score
		 FROM submissions WHERE user_id=$1 AND deleted_at IS NULL`
	args := []any{opts.UserID}
	if opts.SkillID != 0 {
		args = append(args, opts.SkillID)
		q += fmt.Sprintf(" AND skill_id=$%d", len(args))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	q += " ORDER BY started_at DESC, id DESC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
		if opts.Offset > 0 {
			args = append(args, opts.Offset)
			q += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.SkillID, &sub.SectionID, &sub.Status,
			&sub.StartedAt, &sub.SubmittedAt, &sub.TimeSpent, &sub.TotalScore, &sub.MaxScore); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) AnswersBySubmission(ctx context.Context, submissionID int64) ([]Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,submission_id,question_id,COALESCE(answer_text,''),COALESCE(answer_audio,''),is_correct,score,COALESCE(ai_feedback,'')
		 FROM answers WHERE submission_id=$1 ORDER BY id`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.ID, &a.SubmissionID, &a.QuestionID, &a.Text, &a.AudioRef,
			&a.Correct, &a.Score, &a.FeedbackJSON); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) AttachGradingResult(ctx context.Context, answerID int64, score float64, feedbackJSON string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var submissionID int64
	if err := tx.QueryRowContext(ctx, `SELECT submission_id FROM answers WHERE id=$1`, answerID).Scan(&submissionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("answer %d: %w", answerID, ErrNotFound)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE answers SET score=$1, ai_feedback=$2 WHERE id=$3`, score, feedbackJSON, answerID); err != nil {
		return err
	}

	// graded once no answer is left without a verdict or a score
	var pending int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE submission_id=$1 AND is_correct IS NULL AND score IS NULL`,
		submissionID).Scan(&pending); err != nil {
		return err
	}
	if pending == 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE submissions SET status=$1,
			   total_score=(SELECT COALESCE(SUM(score),0) FROM answers WHERE submission_id=$2)
			 WHERE id=$2`, StatusGraded, submissionID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// insert runs an INSERT ... RETURNING id; RETURNING is understood by both
// sqlite and postgres, unlike LastInsertId.
func (s *SQLStore) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
	return id, err
}

func scanQuestions(rows *sql.Rows) ([]Question, error) {
	var out []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.GroupID, &q.Prompt, &q.Type, &q.OptionsJSON, &q.CorrectAnswer,
			&q.Explanation, &q.Locate, &q.Points, &q.Position); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
