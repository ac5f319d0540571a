package model

import "time"

// Book represents a row in the `books` table.  Stock is the number of
// copies currently available for borrowing; it is decremented and
// incremented exclusively by the borrow/return transactions and never
// goes negative.
type Book struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	ISBN      string    `json:"isbn"`
	Category  string    `json:"category"` // optional, empty string when unset
	Stock     uint32    `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
