// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish expected business outcomes from real
// persistence failures. For example, ErrOutOfStock means a borrow
// request found no available copies and must be reported to the user,
// while an unrecognized error means the transaction failed and only a
// generic message should be shown.
package repository

import "errors"

// ErrBookNotFound is returned when a borrow targets a book id that does
// not exist. Handlers should translate this into an HTTP 400 outcome.
var ErrBookNotFound = errors.New("book not found")

// ErrOutOfStock is returned when a borrow finds the book's stock at
// zero. The transaction is rolled back and nothing is written.
var ErrOutOfStock = errors.New("out of stock")

// ErrDuplicateBorrow is returned when the user already holds an active
// borrow record for the same book.
var ErrDuplicateBorrow = errors.New("duplicate borrow")

// ErrRecordNotFound is returned when a return targets a borrow record
// id that does not exist.
var ErrRecordNotFound = errors.New("borrow record not found")

// ErrAlreadyReturned is returned when a return targets a record whose
// status is already `returned`. Stock is not touched a second time.
var ErrAlreadyReturned = errors.New("already returned")

// ErrUsernameExists is returned when registration collides with an
// existing username. Handlers should translate this into HTTP 409.
var ErrUsernameExists = errors.New("username already exists")
