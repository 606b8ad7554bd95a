package listutil

import "fmt"

// UpcomingPerPage is the page size of the upcoming-events list.
const UpcomingPerPage = 10

// PageInfo carries pagination metadata for rendering.
type PageInfo struct {
	Page       int // current page (1-indexed)
	PerPage    int // items per page
	Total      int // total items
	TotalPages int // ceil(Total / PerPage), at least 1
}

// NewPageInfo computes pagination metadata.
// PRE: total >= 0
// POST: TotalPages >= 1; Page clamped to [1, TotalPages]; PerPage defaults to UpcomingPerPage
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = UpcomingPerPage
	}
	if total < 0 {
		total = 0
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	page = max(1, min(page, totalPages))
	return PageInfo{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Offset returns the index of the first item on the current page.
// POST: Returns (Page-1) * PerPage
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Bounds returns the half-open item range [start, end) shown on the current page.
// POST: 0 <= start <= end <= Total
func (p PageInfo) Bounds() (start, end int) {
	start = min(p.Offset(), p.Total)
	end = min(start+p.PerPage, p.Total)
	return start, end
}

// IsFirst reports whether the current page is the first one.
func (p PageInfo) IsFirst() bool { return p.Page <= 1 }

// IsLast reports whether the current page is the last one.
func (p PageInfo) IsLast() bool { return p.Page >= p.TotalPages }

// Label renders the page indicator, e.g. "Page 2 of 5".
func (p PageInfo) Label() string {
	return fmt.Sprintf("Page %d of %d", p.Page, p.TotalPages)
}

// Pager steps through a fixed number of items page by page.
type Pager struct {
	info PageInfo
}

// NewPager starts on page 1.
// PRE: total >= 0
func NewPager(total, perPage int) *Pager {
	return &Pager{info: NewPageInfo(1, perPage, total)}
}

// Info returns the current page metadata.
func (p *Pager) Info() PageInfo { return p.info }

// Next advances one page.
// POST: returns false and leaves the page unchanged on the last page
func (p *Pager) Next() bool {
	if p.info.IsLast() {
		return false
	}
	p.info.Page++
	return true
}

// Prev goes back one page.
// POST: returns false and leaves the page unchanged on the first page
func (p *Pager) Prev() bool {
	if p.info.IsFirst() {
		return false
	}
	p.info.Page--
	return true
}
