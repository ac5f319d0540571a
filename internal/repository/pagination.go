package repository

// PerPage is the fixed page size used by every paginated listing.
const PerPage = 10

// Pagination carries page metadata returned alongside listing data.  Total
// counts every row matching the filters, not just the current page.
type Pagination struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
}

// offsetFor normalizes the page number and computes the LIMIT offset.
func offsetFor(page int) (int, int) {
	if page < 1 {
		page = 1
	}
	return page, (page - 1) * PerPage
}
