// Package catalog answers the public read queries over the live feed:
// filtered, sorted and paginated listing pages, related listings and the
// category list. REST and gRPC share it.
package catalog

import (
	"isilanlarim/internal/listing"
	"isilanlarim/internal/model"
	"isilanlarim/internal/search"
)

// RelatedLimit is the number of related listings shown under a listing.
const RelatedLimit = 5

// MaxPageSize caps client-chosen page sizes.
const MaxPageSize = 100

// Snapshotter exposes the current feed snapshot.
type Snapshotter interface {
	Snapshot() listing.Snapshot
}

// Query is one list request.
type Query struct {
	Criteria model.Criteria
	Page     int
	Size     int
}

// Catalog derives query results from the latest snapshot.
type Catalog struct {
	feed Snapshotter
	view search.View
}

// New returns a Catalog over feed.
func New(feed Snapshotter) *Catalog {
	return &Catalog{feed: feed}
}

// Active returns the active listings of the current snapshot, newest first.
func (c *Catalog) Active() []model.Listing {
	return c.feed.Snapshot().Listings
}

// Search filters, sorts and paginates the active listings, showing q.Page.
// A stored page beyond the end of a shrunken result set shows the last page.
// Repeated calls with an unchanged snapshot and criteria reuse the filtered
// slice.
func (c *Catalog) Search(q Query) search.Page[model.Listing] {
	pager, filtered := c.pager(q)
	return search.PageFor(pager, filtered)
}

// Navigate is Search after moving from q.Page to page. A page outside
// [1, totalPages] is ignored and q.Page is shown unchanged.
func (c *Catalog) Navigate(q Query, page int) search.Page[model.Listing] {
	pager, filtered := c.pager(q)
	pager.GoTo(page, len(filtered))
	return search.PageFor(pager, filtered)
}

func (c *Catalog) pager(q Query) (*search.Pager, []model.Listing) {
	snap := c.feed.Snapshot()
	filtered := c.view.Derive(snap.Version, snap.Listings, q.Criteria)

	size := q.Size
	if size <= 0 {
		size = search.DefaultPageSize
	}
	size = min(size, MaxPageSize)

	p := search.NewPager(size, nil)
	current := min(max(q.Page, 1), search.TotalPages(len(filtered), size))
	p.GoTo(current, len(filtered))
	return p, filtered
}

// Related returns other active listings sharing l's category or location.
func (c *Catalog) Related(l model.Listing) []model.Listing {
	return search.Related(l, c.Active(), RelatedLimit)
}

// Categories lists the categories in use.
func (c *Catalog) Categories() []string {
	out := search.Categories(c.Active())
	if out == nil {
		out = []string{}
	}
	return out
}
