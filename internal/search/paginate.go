package search

import "encoding/json"

// DefaultPageSize is the number of listings shown per page.
const DefaultPageSize = 20

const maxVisiblePages = 7

// Page is one slice of an ordered sequence plus navigation metadata.
// StartIndex and EndIndex are 1-based and inclusive; both are 0 when empty.
type Page[T any] struct {
	Items       []T        `json:"items"`
	CurrentPage int        `json:"currentPage"`
	TotalPages  int        `json:"totalPages"`
	TotalItems  int        `json:"totalItems"`
	PageSize    int        `json:"pageSize"`
	StartIndex  int        `json:"startIndex"`
	EndIndex    int        `json:"endIndex"`
	HasNextPage bool       `json:"hasNextPage"`
	HasPrevPage bool       `json:"hasPrevPage"`
	PageNumbers []PageLink `json:"pageNumbers"`
}

// TotalPages is ceil(total/size), never less than 1.
func TotalPages(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		return 1
	}
	return pages
}

// Paginate returns page number page of items. A page outside
// [1, TotalPages] is clamped, so a shrinking collection never yields a
// page past the end.
func Paginate[T any](items []T, size, page int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := TotalPages(total, size)
	page = min(max(page, 1), pages)

	start := (page - 1) * size
	end := min(start+size, total)

	p := Page[T]{
		Items:       items[start:end:end],
		CurrentPage: page,
		TotalPages:  pages,
		TotalItems:  total,
		PageSize:    size,
		HasNextPage: page < pages,
		HasPrevPage: page > 1,
		PageNumbers: PageNumbers(page, pages),
	}
	if end > start {
		p.StartIndex = start + 1
		p.EndIndex = end
	}
	return p
}

// PageLink is one slot of the page-number bar: a page or an ellipsis.
type PageLink struct {
	Number   int
	Ellipsis bool
}

// MarshalJSON renders a page as its number and an ellipsis as "...".
func (l PageLink) MarshalJSON() ([]byte, error) {
	if l.Ellipsis {
		return []byte(`"..."`), nil
	}
	return json.Marshal(l.Number)
}

var ellipsis = PageLink{Ellipsis: true}

// PageNumbers computes the windowed page bar:
//
//	total ≤ 7            1 2 3 4 5 6 7
//	current ≤ 4          1 2 3 4 5 … N
//	current ≥ total−3    1 … N-4 N-3 N-2 N-1 N
//	otherwise            1 … c-1 c c+1 … N
func PageNumbers(current, total int) []PageLink {
	var links []PageLink
	pages := func(from, to int) {
		for i := from; i <= to; i++ {
			links = append(links, PageLink{Number: i})
		}
	}

	switch {
	case total <= maxVisiblePages:
		pages(1, total)
	case current <= 4:
		pages(1, 5)
		links = append(links, ellipsis, PageLink{Number: total})
	case current >= total-3:
		links = append(links, PageLink{Number: 1}, ellipsis)
		pages(total-4, total)
	default:
		links = append(links, PageLink{Number: 1}, ellipsis)
		pages(current-1, current+1)
		links = append(links, ellipsis, PageLink{Number: total})
	}
	return links
}

// Pager tracks the current page of a navigable list. Moving to a page outside
// [1, totalPages] is ignored; a successful move calls onChange, which the UI
// uses to scroll back to the top.
type Pager struct {
	size     int
	current  int
	onChange func(page int)
}

// NewPager starts on page 1. onChange may be nil.
func NewPager(size int, onChange func(page int)) *Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Pager{size: size, current: 1, onChange: onChange}
}

// Current is the page the pager is on.
func (p *Pager) Current() int { return p.current }

// Size is the page size.
func (p *Pager) Size() int { return p.size }

// GoTo moves to page if it exists for totalItems; it reports whether it did.
func (p *Pager) GoTo(page, totalItems int) bool {
	if page < 1 || page > TotalPages(totalItems, p.size) {
		return false
	}
	if page != p.current {
		p.current = page
		if p.onChange != nil {
			p.onChange(page)
		}
	}
	return true
}

// PageFor returns the pager's current page of items.
func PageFor[T any](p *Pager, items []T) Page[T] {
	return Paginate(items, p.size, p.current)
}
