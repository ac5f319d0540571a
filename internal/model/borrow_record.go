package model

import "time"

// Borrow record statuses.  Transitions only move forward:
// borrowed -> returned (terminal) or borrowed -> overdue, which can
// still be returned later.
const (
	StatusBorrowed = "borrowed"
	StatusReturned = "returned"
	StatusOverdue  = "overdue"
)

// ValidStatus reports whether s is one of the known borrow record statuses.
func ValidStatus(s string) bool {
	return s == StatusBorrowed || s == StatusReturned || s == StatusOverdue
}

// BorrowRecord represents a row in the `borrow_records` ledger.  A record
// is created only by a successful borrow and never deleted.  For a given
// (user, book) pair at most one record is in status `borrowed` at a time.
// BorrowDate and ReturnDate are calendar dates; ReturnDate stays nil until
// the book comes back.
type BorrowRecord struct {
	ID         uint64     `json:"id"`
	UserID     uint64     `json:"user_id"`
	BookID     uint64     `json:"book_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	ReturnDate *time.Time `json:"return_date"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}
