package shared

import "math"

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset is the index of the first item on the page. Pages too far out to
// address saturate at math.MaxInt.
func (p Pagination) Offset() int {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PerPage {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PerPage
}

// Paginate returns the page of items described by p. Pages past the end are empty.
func Paginate[T any](items []T, p Pagination) []T {
	start := p.Offset()
	if p.PerPage <= 0 || start < 0 || start >= len(items) {
		return []T{}
	}
	end := start + min(p.PerPage, len(items)-start)
	return items[start:end]
}
