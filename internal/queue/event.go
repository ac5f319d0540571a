// Package queue defines message payloads exchanged over the message broker.
package queue

// AuditActionEvent is published after a mutating action succeeds: a book
// was borrowed or returned, a user registered or logged in, a book was
// created, updated or deleted.  The consumer turns each event into a row
// of the `logs` table.  UserID is nil for actions without a session.
type AuditActionEvent struct {
	UserID     *uint64 `json:"user_id"`
	Action     string  `json:"action"`
	Details    string  `json:"details"`
	OccurredAt string  `json:"occurred_at"`
}
