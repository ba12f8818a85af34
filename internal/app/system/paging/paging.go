// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// DefaultPageSize is applied whenever a caller omits the limit. The absence
// of a limit must never trigger an unbounded scan.
const DefaultPageSize = 10

// MaxPageSize caps the limit a caller may request in one page.
const MaxPageSize = 200

// Page is a 1-based page number plus a bounded per-page limit.
type Page struct {
	Number int
	Limit  int
}

// Clamp returns p with the number floored at 1 and the limit forced into
// [1, MaxPageSize], defaulting to DefaultPageSize when unset.
func (p Page) Clamp() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Skip returns the number of documents to skip for this page.
func (p Page) Skip() int64 {
	p = p.Clamp()
	return int64(p.Number-1) * int64(p.Limit)
}

// Limit64 returns the per-page limit as int64 for Mongo Find options.
func (p Page) Limit64() int64 {
	return int64(p.Clamp().Limit)
}

// Parse extracts "page" and "limit" query parameters, applying defaults
// and bounds. Invalid values fall back to the defaults rather than erroring
// so list screens degrade gracefully.
func Parse(r *http.Request) Page {
	p := Page{Number: 1, Limit: DefaultPageSize}
	if s := query.Get(r, "page"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 {
			p.Number = n
		}
	}
	if s := query.Get(r, "limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 {
			p.Limit = n
		}
	}
	return p.Clamp()
}

// Meta describes a page of results for the response envelope.
type Meta struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	Limit       int   `json:"limit"`
	HasNextPage bool  `json:"has_next_page"`
	HasPrevPage bool  `json:"has_prev_page"`
}

// NewMeta computes pagination metadata from the applied page and the total
// match count.
func NewMeta(p Page, total int64) Meta {
	p = p.Clamp()
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	if pages < 1 {
		pages = 1
	}
	return Meta{
		CurrentPage: p.Number,
		TotalPages:  pages,
		TotalItems:  total,
		Limit:       p.Limit,
		HasNextPage: int64(p.Number)*int64(p.Limit) < total,
		HasPrevPage: p.Number > 1,
	}
}
