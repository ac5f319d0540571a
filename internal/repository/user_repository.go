package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/moran1024a/Library-Control-web/internal/model"
	"github.com/moran1024a/Library-Control-web/internal/utils"
)

// UserRepo provides account persistence over the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user with a bcrypt-hashed password and returns its ID.
// Email and phone are optional and stored as NULL when nil.
func (r *UserRepo) Create(ctx context.Context, username, password, role string, email, phone *string, cost int) (uint64, error) {
	username = strings.TrimSpace(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, role, email, phone) VALUES (?,?,?,?,?)",
		username, hash, role, email, phone)
	if err != nil {
		// MySQL 1062: duplicate entry for the unique username key
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches a user by login name.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,username,password_hash,role,email,phone,created_at,updated_at FROM users WHERE username=? LIMIT 1",
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Email, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,username,password_hash,role,email,phone,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Email, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// ProfileUpdate holds the optional fields of a profile update.  Nil
// pointers leave the stored value untouched except for email/phone, which
// are always written (clearing them is a valid update).
type ProfileUpdate struct {
	Email    *string
	Phone    *string
	Password string // empty means keep the current password
	Role     string // empty means keep the current role
}

// UpdateProfile rewrites a user's contact fields and optionally password
// and role, mirroring how the account update endpoint works.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, upd ProfileUpdate, cost int) (bool, error) {
	fields := []string{"email = ?", "phone = ?"}
	params := []interface{}{upd.Email, upd.Phone}

	if upd.Password != "" {
		hash, err := utils.HashPassword(upd.Password, cost)
		if err != nil {
			return false, err
		}
		fields = append(fields, "password_hash = ?")
		params = append(params, hash)
	}
	if upd.Role != "" {
		fields = append(fields, "role = ?")
		params = append(params, upd.Role)
	}
	params = append(params, id)

	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(fields, ", ")+" WHERE id = ?", params...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
