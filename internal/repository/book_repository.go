package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/moran1024a/Library-Control-web/internal/model"
)

// BookRepo provides CRUD and catalogue queries for books.  It reads
// books.stock but never adjusts it relative to the ledger; only the
// borrow/return engine does that.
type BookRepo struct {
	db *sql.DB
}

// NewBookRepo returns a BookRepo bound to the given database.
func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

// DB exposes the underlying handle for transaction-owning callers.
func (r *BookRepo) DB() *sql.DB { return r.db }

// BookFilter holds the optional catalogue filters.  Search matches title
// or author, Title and Author match their column alone, Category is an
// exact match.  Empty fields are ignored.
type BookFilter struct {
	Search   string
	Title    string
	Author   string
	Category string
}

// BookPage bundles one page of books with pagination metadata.
type BookPage struct {
	Data       []model.Book `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

// List returns one page of the catalogue ordered by creation time
// descending, plus the total count of rows matching the filters.
func (r *BookRepo) List(ctx context.Context, filter BookFilter, page int) (*BookPage, error) {
	conditions := make([]string, 0, 4)
	params := make([]interface{}, 0, 4)
	if filter.Search != "" {
		conditions = append(conditions, "(title LIKE ? OR author LIKE ?)")
		like := "%" + filter.Search + "%"
		params = append(params, like, like)
	}
	if filter.Title != "" {
		conditions = append(conditions, "title LIKE ?")
		params = append(params, "%"+filter.Title+"%")
	}
	if filter.Author != "" {
		conditions = append(conditions, "author LIKE ?")
		params = append(params, "%"+filter.Author+"%")
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		params = append(params, filter.Category)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	page, offset := offsetFor(page)
	query := `SELECT id, title, author, isbn, category, stock, created_at, updated_at FROM books ` +
		where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args := append(append([]interface{}{}, params...), PerPage, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]model.Book, 0)
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Category, &b.Stock, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books `+where, params...).Scan(&total); err != nil {
		return nil, err
	}

	return &BookPage{
		Data:       books,
		Pagination: Pagination{Page: page, PerPage: PerPage, Total: total},
	}, nil
}

// GetByID fetches a single book.  sql.ErrNoRows is returned when the id
// does not exist.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (model.Book, error) {
	var b model.Book
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, author, isbn, category, stock, created_at, updated_at FROM books WHERE id = ?`,
		id).Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Category, &b.Stock, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// Create inserts a book and returns its id.  Stock here is the initial
// number of copies; later adjustments during borrow/return go through the
// engine only.
func (r *BookRepo) Create(ctx context.Context, title, author, isbn, category string, stock uint32) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO books (title, author, isbn, category, stock) VALUES (?, ?, ?, ?, ?)`,
		title, author, isbn, category, stock)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Update overwrites every editable column of a book.  It returns false
// when the id does not exist.
func (r *BookRepo) Update(ctx context.Context, id uint64, title, author, isbn, category string, stock uint32) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE books SET title = ?, author = ?, isbn = ?, category = ?, stock = ? WHERE id = ?`,
		title, author, isbn, category, stock, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a book row.  It returns false when the id does not
// exist.  Ledger rows referencing the book keep it deletable only while
// no borrow records exist (enforced by the foreign key).
func (r *BookRepo) Delete(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
