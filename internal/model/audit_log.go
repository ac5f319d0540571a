package model

import "time"

// AuditLog represents a row in the `logs` table.  Entries are written by
// the audit consumer after mutating actions succeed; UserID is nil for
// actions performed outside an authenticated session.
type AuditLog struct {
	ID        uint64    `json:"id"`
	UserID    *uint64   `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}
