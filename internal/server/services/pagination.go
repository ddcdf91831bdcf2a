package services

import "math"

// Pagination describes a requested page and, once the total is known, the
// number of pages.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

// NewPagination clamps page to at least 1 and limit to [1, 100]. A zero
// limit selects the default page size. Page is capped so Offset never
// overflows.
func NewPagination(page, limit int) Pagination {
	if page < 1 {
		page = 1
	}
	switch {
	case limit == 0:
		limit = defaultPageLimit
	case limit < 1:
		limit = 1
	case limit > maxPageLimit:
		limit = maxPageLimit
	}
	if maxPage := math.MaxInt/limit + 1; page > maxPage {
		page = maxPage
	}
	return Pagination{Page: page, Limit: limit}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// SetTotal records the total and computes ceil(total/limit).
func (p *Pagination) SetTotal(total int64) {
	p.Total = total
	p.Pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
}
