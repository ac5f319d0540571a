package repository

import (
	"context"
	"database/sql"

	"github.com/moran1024a/Library-Control-web/internal/model"
)

// LogRepo is the audit sink: append-only writes to the 'logs' table.  It
// is invoked by the audit consumer after a mutation committed, never from
// inside the engine's transaction.
type LogRepo struct{ DB *sql.DB }

func NewLogRepo(db *sql.DB) *LogRepo { return &LogRepo{DB: db} }

// RecordAction appends one audit entry.  A nil userID records an action
// performed outside an authenticated session.
func (r *LogRepo) RecordAction(ctx context.Context, userID *uint64, action, details string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO logs (user_id, action, details) VALUES (?,?,?)",
		userID, action, details)
	return err
}

// ListRecent returns the newest audit entries up to limit, for the admin
// log view.
func (r *LogRepo) ListRecent(ctx context.Context, limit int) ([]model.AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, user_id, action, details, created_at FROM logs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]model.AuditLog, 0, limit)
	for rows.Next() {
		var e model.AuditLog
		var uid sql.NullInt64
		if err := rows.Scan(&e.ID, &uid, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		if uid.Valid {
			u := uint64(uid.Int64)
			e.UserID = &u
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
