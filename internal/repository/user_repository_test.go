package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moran1024a/Library-Control-web/internal/utils"
)

// bcrypt at minimum cost keeps these tests fast.
const testBcryptCost = 4

func TestUserCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	email := "a@b.cn"
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (username, password_hash, role, email, phone) VALUES (?,?,?,?,?)`)).
		WithArgs("alice", sqlmock.AnyArg(), "user", &email, nil).
		WillReturnResult(sqlmock.NewResult(5, 1))

	id, err := repo.Create(context.Background(), " alice ", "pass1word", "user", &email, nil, testBcryptCost)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateDuplicateUsername(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'alice' for key 'users.username'"))

	_, err := repo.Create(context.Background(), "alice", "pass1word", "user", nil, nil, testBcryptCost)
	assert.ErrorIs(t, err, ErrUsernameExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByUsername(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	hash, err := utils.HashPassword("pass1word", testBcryptCost)
	require.NoError(t, err)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username=?`)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "role", "email", "phone", "created_at", "updated_at"}).
			AddRow(5, "alice", hash, "user", nil, nil, now, now))

	u, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), u.ID)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "pass1word"))
	assert.Nil(t, u.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdateProfilePasswordAndContacts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	phone := "13800138000"
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET email = ?, phone = ?, password_hash = ? WHERE id = ?`)).
		WithArgs(nil, &phone, sqlmock.AnyArg(), uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateProfile(context.Background(), 5, ProfileUpdate{Phone: &phone, Password: "new1pass"}, testBcryptCost)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdateProfileMissingUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET email = ?, phone = ? WHERE id = ?`)).
		WithArgs(nil, nil, uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateProfile(context.Background(), 99, ProfileUpdate{}, testBcryptCost)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
