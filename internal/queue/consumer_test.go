package queue

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moran1024a/Library-Control-web/internal/repository"
)

func TestHandleMessageWritesLogRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	logs := repository.NewLogRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO logs (user_id, action, details) VALUES (?,?,?)`)).
		WithArgs(5, "borrow_book", `{"book_id":9}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	body := []byte(`{"user_id":5,"action":"borrow_book","details":"{\"book_id\":9}","occurred_at":"2026-08-31T10:00:00Z"}`)
	require.NoError(t, handleMessage(body, logs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessageRejectsBadPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	logs := repository.NewLogRepo(db)

	assert.Error(t, handleMessage([]byte("not json"), logs))
	assert.Error(t, handleMessage([]byte(`{"details":"missing action"}`), logs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleMessageNilUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	logs := repository.NewLogRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO logs`)).
		WithArgs(nil, "register", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, handleMessage([]byte(`{"action":"register"}`), logs))
	assert.NoError(t, mock.ExpectationsWereMet())
}
