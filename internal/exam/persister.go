package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/prepstack/prepstack/internal/content"
)

// PersistenceIntegrityError reports a write failure inside the content
// tree transaction. The transaction is rolled back before it is returned,
// so the skill's tree is absent, not half-populated; the operation is
// retryable.
type PersistenceIntegrityError struct {
	Step string
	Err  error
}

func (e *PersistenceIntegrityError) Error() string {
	return fmt.Sprintf("persisting exam tree (%s): %v", e.Step, e.Err)
}

func (e *PersistenceIntegrityError) Unwrap() error { return e.Err }

// PersistedCounts reports what one Persist call wrote.
type PersistedCounts struct {
	Sections  int `json:"sections"`
	Groups    int `json:"groups"`
	Questions int `json:"questions"`
}

// TreePersister writes a canonical content tree under a skill as one
// transaction. Sections go in descriptor order and each section's groups
// and questions are fully written before the next section, so a reader
// never observes a question whose parent group lacks its section.
type TreePersister struct {
	db *sql.DB
}

func NewTreePersister(db *sql.DB) *TreePersister { return &TreePersister{db: db} }

// Persist writes sections, groups and questions for skillID.
//
// provisionalID names a section created before the response shape was
// known (to hold a section-level content block); zero means none. With a
// single-section layout the provisional section is confirmed: updated in
// place with the normalized name, content and audio. With a multi-part
// layout (listening) it is deleted, cascading to any dependents, before
// the per-part sections are written — the two layouts never coexist.
func (p *TreePersister) Persist(ctx context.Context, skillID, provisionalID int64, sections []content.Section) (PersistedCounts, error) {
	var counts PersistedCounts
	if len(sections) == 0 {
		return counts, &PersistenceIntegrityError{Step: "validate", Err: fmt.Errorf("no sections to persist")}
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, &PersistenceIntegrityError{Step: "begin", Err: err}
	}
	defer tx.Rollback()

	if provisionalID != 0 && len(sections) > 1 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE id=$1`, provisionalID); err != nil {
			return counts, &PersistenceIntegrityError{Step: "replace provisional section", Err: err}
		}
		provisionalID = 0
	}

	for i, sec := range sections {
		secID, err := p.writeSection(ctx, tx, skillID, provisionalID, i, sec)
		if err != nil {
			return PersistedCounts{}, err
		}
		counts.Sections++
		for gi, g := range sec.Groups {
			groupID, err := insertReturningID(ctx, tx,
				`INSERT INTO question_groups (section_id,name,question_type,instruction,position) VALUES ($1,$2,$3,$4,$5)`,
				secID, g.Name, groupType(g), g.Instruction, gi+1)
			if err != nil {
				return PersistedCounts{}, &PersistenceIntegrityError{Step: "insert group", Err: err}
			}
			counts.Groups++
			for _, q := range g.Questions {
				optionsJSON, err := q.Answer.EncodeOptions()
				if err != nil {
					return PersistedCounts{}, &PersistenceIntegrityError{Step: "encode answer material", Err: err}
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO questions (question_group_id,question_text,question_type,options,correct_answer,explanation,locate,points,position)
					 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
					groupID, q.Prompt, q.Type, optionsJSON, q.Answer.Text, q.Explanation, q.Locate, q.Points, q.Ordinal); err != nil {
					return PersistedCounts{}, &PersistenceIntegrityError{Step: "insert question", Err: err}
				}
				counts.Questions++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return PersistedCounts{}, &PersistenceIntegrityError{Step: "commit", Err: err}
	}
	return counts, nil
}

func (p *TreePersister) writeSection(ctx context.Context, tx *sql.Tx, skillID, provisionalID int64, idx int, sec content.Section) (int64, error) {
	body, err := sectionContent(sec)
	if err != nil {
		return 0, &PersistenceIntegrityError{Step: "encode section content", Err: err}
	}
	if provisionalID != 0 && idx == 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sections SET name=$1, content=$2, audio=$3, position=$4 WHERE id=$5`,
			sec.Name, body, sec.AudioRef, idx+1, provisionalID); err != nil {
			return 0, &PersistenceIntegrityError{Step: "confirm provisional section", Err: err}
		}
		return provisionalID, nil
	}
	id, err := insertReturningID(ctx, tx,
		`INSERT INTO sections (skill_id,name,content,audio,position) VALUES ($1,$2,$3,$4,$5)`,
		skillID, sec.Name, body, sec.AudioRef, idx+1)
	if err != nil {
		return 0, &PersistenceIntegrityError{Step: "insert section", Err: err}
	}
	return id, nil
}

// sectionContent serializes the section's context for the content column:
// structured passage blocks as JSON, listening contexts as plain text.
func sectionContent(sec content.Section) (string, error) {
	if sec.Content == nil {
		return "", nil
	}
	if sec.Content.Title == "" && sec.Content.Introduction == "" && sec.Content.WordCount == 0 {
		return sec.Content.BodyText, nil
	}
	b, err := json.Marshal(sec.Content)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func groupType(g content.Group) string {
	if g.TypeHint != "" {
		return g.TypeHint
	}
	if len(g.Questions) > 0 {
		return g.Questions[0].Type
	}
	return "multiple_choice"
}

func insertReturningID(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
	return id, err
}
