package audit

import (
	"context"
	"database/sql"
	"time"
)

// Event is one append-only audit record: content generation runs,
// rejections and external grading batches.
type Event struct {
	Offset    int64  `json:"offset"`
	Actor     string `json:"actor"` // user id or "system"
	Type      string `json:"type"`  // e.g. skill.generated, generation.rejected
	Key       string `json:"key"`   // affected entity, e.g. "skill:42"
	DataJSON  string `json:"data,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type Log struct{ db *sql.DB }

func NewLog(db *sql.DB) *Log { return &Log{db: db} }

func (l *Log) Append(ctx context.Context, e Event) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (actor, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.Actor, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// List returns events after the given offset, oldest first.
func (l *Log) List(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, actor, typ, key, COALESCE(data,''), created_at
		   FROM audit_log WHERE id > $1 ORDER BY id ASC LIMIT $2`,
		after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.Actor, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
