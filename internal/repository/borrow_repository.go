package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// BorrowRepo is the borrow/return engine.  It owns every write to
// books.stock and borrow_records; read-only query paths must never touch
// either.  Each mutating method runs inside a single transaction and
// serializes concurrent access through an exclusive row lock
// (SELECT ... FOR UPDATE) acquired on the first read: two borrows of the
// same book, or two returns of the same record, are strictly ordered by
// the database while operations on different rows proceed in parallel.
type BorrowRepo struct {
	db *sql.DB
}

// NewBorrowRepo returns a BorrowRepo bound to the given database.
func NewBorrowRepo(db *sql.DB) *BorrowRepo { return &BorrowRepo{db: db} }

// DB exposes the underlying handle, mirroring the other repositories.
func (r *BorrowRepo) DB() *sql.DB { return r.db }

// BorrowBook lends one copy of a book to a user and returns the id of the
// new borrow record.  Inside one transaction it locks the book row, checks
// stock, rejects a second active borrow of the same book by the same user,
// inserts the ledger row with today's date and decrements stock.  Business
// rejections surface as ErrBookNotFound, ErrOutOfStock or
// ErrDuplicateBorrow; on any error path the transaction is rolled back and
// neither table changes.
//
// The lock on the book row is what prevents overselling: without it two
// concurrent borrowers could both read stock=1 and both decrement.  The
// duplicate check alone cannot help there because it is keyed on
// (user, book), not on stock.
func (r *BorrowRepo) BorrowBook(ctx context.Context, userID, bookID uint64) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var stock int64
	err = tx.QueryRowContext(ctx, `SELECT stock FROM books WHERE id = ? FOR UPDATE`, bookID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrBookNotFound
	}
	if err != nil {
		return 0, err
	}
	if stock <= 0 {
		return 0, ErrOutOfStock
	}

	var active int64
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_records WHERE user_id = ? AND book_id = ? AND status = 'borrowed'`,
		userID, bookID).Scan(&active)
	if err != nil {
		return 0, err
	}
	if active > 0 {
		return 0, ErrDuplicateBorrow
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO borrow_records (user_id, book_id, borrow_date, status) VALUES (?, ?, ?, 'borrowed')`,
		userID, bookID, today())
	if err != nil {
		return 0, err
	}
	recordID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE books SET stock = stock - 1 WHERE id = ?`, bookID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(recordID), nil
}

// ReturnBook closes a borrow record and puts the copy back in stock.  The
// record row is locked before inspection so that two concurrent returns of
// the same record cannot both increment stock; the loser of the race sees
// status `returned` and gets ErrAlreadyReturned.  Overdue records are
// returnable like borrowed ones.
func (r *BorrowRepo) ReturnBook(ctx context.Context, recordID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var bookID uint64
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT book_id, status FROM borrow_records WHERE id = ? FOR UPDATE`, recordID).Scan(&bookID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}
	if err != nil {
		return err
	}
	if status == "returned" {
		return ErrAlreadyReturned
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE borrow_records SET return_date = ?, status = 'returned' WHERE id = ?`,
		today(), recordID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE books SET stock = stock + 1 WHERE id = ?`, bookID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// CheckOverdue flips every `borrowed` record older than 30 days to
// `overdue` and returns the number of rows changed.  The sweep is a single
// bulk statement, idempotent by construction: rows already overdue or
// returned never match the predicate, so a second run reports zero.
func (r *BorrowRepo) CheckOverdue(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE borrow_records SET status = 'overdue' WHERE status = 'borrowed' AND borrow_date < DATE_SUB(CURDATE(), INTERVAL 30 DAY)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecordDetail is one row of a borrow record listing, joined with the book
// title and the borrower's username for display.
type RecordDetail struct {
	ID         uint64  `json:"id"`
	UserID     uint64  `json:"user_id"`
	BookID     uint64  `json:"book_id"`
	BorrowDate string  `json:"borrow_date"`
	ReturnDate *string `json:"return_date"`
	Status     string  `json:"status"`
	Title      string  `json:"title"`
	Username   string  `json:"username"`
}

// RecordPage bundles one page of records with pagination metadata.
type RecordPage struct {
	Data       []RecordDetail `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// ListRecords returns one page of borrow records ordered by borrow date
// descending, optionally filtered by exact user id and exact status.  The
// page size is fixed; Total in the returned pagination counts all rows
// matching the filters.  Read-only, no transaction.
func (r *BorrowRepo) ListRecords(ctx context.Context, userID *uint64, status *string, page int) (*RecordPage, error) {
	conditions := make([]string, 0, 2)
	params := make([]interface{}, 0, 2)
	if userID != nil {
		conditions = append(conditions, "br.user_id = ?")
		params = append(params, *userID)
	}
	if status != nil {
		conditions = append(conditions, "br.status = ?")
		params = append(params, *status)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	page, offset := offsetFor(page)
	query := `SELECT br.id, br.user_id, br.book_id, br.borrow_date, br.return_date, br.status, b.title, u.username
              FROM borrow_records br
              JOIN books b ON br.book_id = b.id
              JOIN users u ON br.user_id = u.id ` + where + `
              ORDER BY br.borrow_date DESC
              LIMIT ? OFFSET ?`
	args := append(append([]interface{}{}, params...), PerPage, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]RecordDetail, 0)
	for rows.Next() {
		var d RecordDetail
		var borrowDate time.Time
		var returnDate sql.NullTime
		if err := rows.Scan(&d.ID, &d.UserID, &d.BookID, &borrowDate, &returnDate, &d.Status, &d.Title, &d.Username); err != nil {
			return nil, err
		}
		d.BorrowDate = borrowDate.Format("2006-01-02")
		if returnDate.Valid {
			rd := returnDate.Time.Format("2006-01-02")
			d.ReturnDate = &rd
		}
		records = append(records, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM borrow_records br ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, params...).Scan(&total); err != nil {
		return nil, err
	}

	return &RecordPage{
		Data:       records,
		Pagination: Pagination{Page: page, PerPage: PerPage, Total: total},
	}, nil
}

// StatusCount is the number of borrow records in one status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// TopBook is one entry of the most-borrowed-books ranking.
type TopBook struct {
	Title       string `json:"title"`
	BorrowCount int64  `json:"borrow_count"`
}

// Statistics aggregates the ledger: total record count, counts grouped by
// status and the five most borrowed books.
type Statistics struct {
	Total    int64         `json:"total"`
	ByStatus []StatusCount `json:"by_status"`
	TopBooks []TopBook     `json:"top_books"`
}

// GetStatistics computes ledger aggregates.  Read-only, no transaction.
func (r *BorrowRepo) GetStatistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM borrow_records`).Scan(&stats.Total); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM borrow_records GROUP BY status`)
	if err != nil {
		return nil, err
	}
	stats.ByStatus = make([]StatusCount, 0, 3)
	for rows.Next() {
		var sc StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			rows.Close()
			return nil, err
		}
		stats.ByStatus = append(stats.ByStatus, sc)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	topRows, err := r.db.QueryContext(ctx,
		`SELECT b.title, COUNT(*) AS borrow_count
         FROM borrow_records br
         JOIN books b ON br.book_id = b.id
         GROUP BY br.book_id, b.title
         ORDER BY borrow_count DESC
         LIMIT 5`)
	if err != nil {
		return nil, err
	}
	defer topRows.Close()
	stats.TopBooks = make([]TopBook, 0, 5)
	for topRows.Next() {
		var tb TopBook
		if err := topRows.Scan(&tb.Title, &tb.BorrowCount); err != nil {
			return nil, err
		}
		stats.TopBooks = append(stats.TopBooks, tb)
	}
	if err := topRows.Err(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// today returns the current calendar date in UTC as stored in DATE columns.
func today() string {
	return time.Now().UTC().Format("2006-01-02")
}
