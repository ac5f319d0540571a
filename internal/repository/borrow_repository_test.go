package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectLockedStock(mock sqlmock.Sqlmock, bookID uint64, stock int64) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT stock FROM books WHERE id = ? FOR UPDATE`)).
		WithArgs(bookID).
		WillReturnRows(sqlmock.NewRows([]string{"stock"}).AddRow(stock))
}

func expectActiveCount(mock sqlmock.Sqlmock, userID, bookID uint64, count int64) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM borrow_records WHERE user_id = ? AND book_id = ? AND status = 'borrowed'`)).
		WithArgs(userID, bookID).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(count))
}

func TestBorrowBookSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	mock.ExpectBegin()
	expectLockedStock(mock, 9, 3)
	expectActiveCount(mock, 5, 9, 0)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO borrow_records (user_id, book_id, borrow_date, status) VALUES (?, ?, ?, 'borrowed')`)).
		WithArgs(uint64(5), uint64(9), today()).
		WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE books SET stock = stock - 1 WHERE id = ?`)).
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	recordID, err := repo.BorrowBook(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(41), recordID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrowBookNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT stock FROM books WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(77)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.BorrowBook(context.Background(), 5, 77)
	assert.ErrorIs(t, err, ErrBookNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrowBookOutOfStock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	mock.ExpectBegin()
	expectLockedStock(mock, 9, 0)
	mock.ExpectRollback()

	_, err := repo.BorrowBook(context.Background(), 5, 9)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrowBookDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	mock.ExpectBegin()
	expectLockedStock(mock, 9, 2)
	expectActiveCount(mock, 5, 9, 1)
	mock.ExpectRollback()

	_, err := repo.BorrowBook(context.Background(), 5, 9)
	assert.ErrorIs(t, err, ErrDuplicateBorrow)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrowBookRollsBackOnInsertFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	boom := errors.New("insert broke")
	mock.ExpectBegin()
	expectLockedStock(mock, 9, 2)
	expectActiveCount(mock, 5, 9, 0)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO borrow_records`)).
		WillReturnError(boom)
	mock.ExpectRollback()

	_, err := repo.BorrowBook(context.Background(), 5, 9)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two borrows of the last copy arrive back to back.  The row lock forces
// them into sequence: the first commits, the second reads the decremented
// stock and is rejected.  The mock scripts the serialized order the
// database would impose.
func TestBorrowBookLastCopyRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	mock.ExpectBegin()
	expectLockedStock(mock, 9, 1)
	expectActiveCount(mock, 5, 9, 0)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO borrow_records`)).
		WithArgs(uint64(5), uint64(9), today()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE books SET stock = stock - 1 WHERE id = ?`)).
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	expectLockedStock(mock, 9, 0)
	mock.ExpectRollback()

	_, err := repo.BorrowBook(context.Background(), 5, 9)
	require.NoError(t, err)

	_, err = repo.BorrowBook(context.Background(), 6, 9)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Borrow, fail a duplicate attempt, then return: the scripted sequence a
// single user drives against one book with three copies.
func TestBorrowReturnRoundTrip(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	mock.ExpectBegin()
	expectLockedStock(mock, 9, 3)
	expectActiveCount(mock, 5, 9, 0)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO borrow_records`)).
		WithArgs(uint64(5), uint64(9), today()).
		WillReturnResult(sqlmock.NewResult(41, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE books SET stock = stock - 1 WHERE id = ?`)).
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	expectLockedStock(mock, 9, 2)
	expectActiveCount(mock, 5, 9, 1)
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT book_id, status FROM borrow_records WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows([]string{"book_id", "status"}).AddRow(9, "borrowed"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE borrow_records SET return_date = ?, status = 'returned' WHERE id = ?`)).
		WithArgs(today(), uint64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE books SET stock = stock + 1 WHERE id = ?`)).
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	recordID, err := repo.BorrowBook(context.Background(), 5, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(41), recordID)

	_, err = repo.BorrowBook(context.Background(), 5, 9)
	assert.ErrorIs(t, err, ErrDuplicateBorrow)

	require.NoError(t, repo.ReturnBook(context.Background(), recordID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnBookSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT book_id, status FROM borrow_records WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows([]string{"book_id", "status"}).AddRow(9, "borrowed"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE borrow_records SET return_date = ?, status = 'returned' WHERE id = ?`)).
		WithArgs(today(), uint64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE books SET stock = stock + 1 WHERE id = ?`)).
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReturnBook(context.Background(), 41)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnBookNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT book_id, status FROM borrow_records WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(404)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.ReturnBook(context.Background(), 404)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnBookAlreadyReturned(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT book_id, status FROM borrow_records WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows([]string{"book_id", "status"}).AddRow(9, "returned"))
	mock.ExpectRollback()

	err := repo.ReturnBook(context.Background(), 41)
	assert.ErrorIs(t, err, ErrAlreadyReturned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// An overdue record closes like a borrowed one.
func TestReturnBookOverdueRecord(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT book_id, status FROM borrow_records WHERE id = ? FOR UPDATE`)).
		WithArgs(uint64(41)).
		WillReturnRows(sqlmock.NewRows([]string{"book_id", "status"}).AddRow(9, "overdue"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE borrow_records SET return_date = ?, status = 'returned' WHERE id = ?`)).
		WithArgs(today(), uint64(41)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE books SET stock = stock + 1 WHERE id = ?`)).
		WithArgs(uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReturnBook(context.Background(), 41))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOverdueIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	sweep := regexp.QuoteMeta(`UPDATE borrow_records SET status = 'overdue' WHERE status = 'borrowed' AND borrow_date < DATE_SUB(CURDATE(), INTERVAL 30 DAY)`)
	mock.ExpectExec(sweep).WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(sweep).WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := repo.CheckOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = repo.CheckOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecordsFiltered(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	borrowed := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	returned := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user_id", "book_id", "borrow_date", "return_date", "status", "title", "username"}).
		AddRow(2, 5, 9, borrowed, returned, "returned", "围城", "alice").
		AddRow(1, 5, 7, borrowed, nil, "borrowed", "活着", "alice")

	mock.ExpectQuery(regexp.QuoteMeta(`JOIN users u ON br.user_id = u.id WHERE br.user_id = ?`)).
		WithArgs(uint64(5), PerPage, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM borrow_records br WHERE br.user_id = ?`)).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(12))

	uid := uint64(5)
	page, err := repo.ListRecords(context.Background(), &uid, nil, 1)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "2026-08-01", page.Data[0].BorrowDate)
	require.NotNil(t, page.Data[0].ReturnDate)
	assert.Equal(t, "2026-08-20", *page.Data[0].ReturnDate)
	assert.Nil(t, page.Data[1].ReturnDate)
	assert.Equal(t, int64(12), page.Pagination.Total)
	assert.Equal(t, PerPage, page.Pagination.PerPage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecordsSecondPageOffset(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`JOIN users u ON br.user_id = u.id`)).
		WithArgs(PerPage, PerPage).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "book_id", "borrow_date", "return_date", "status", "title", "username"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM borrow_records br`)).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(10))

	page, err := repo.ListRecords(context.Background(), nil, nil, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.Equal(t, 2, page.Pagination.Page)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStatistics(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBorrowRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM borrow_records`)).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(30))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status, COUNT(*) FROM borrow_records GROUP BY status`)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "COUNT(*)"}).
			AddRow("borrowed", 12).
			AddRow("returned", 15).
			AddRow("overdue", 3))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY borrow_count DESC`)).
		WillReturnRows(sqlmock.NewRows([]string{"title", "borrow_count"}).
			AddRow("三体", 9).
			AddRow("活着", 7))

	stats, err := repo.GetStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(30), stats.Total)
	require.Len(t, stats.ByStatus, 3)
	assert.Equal(t, StatusCount{Status: "borrowed", Count: 12}, stats.ByStatus[0])
	require.Len(t, stats.TopBooks, 2)
	assert.Equal(t, TopBook{Title: "三体", BorrowCount: 9}, stats.TopBooks[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
