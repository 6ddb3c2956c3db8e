package catalog_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"isilanlarim/internal/catalog"
	"isilanlarim/internal/listing"
	"isilanlarim/internal/model"
)

type staticFeed struct{ snap listing.Snapshot }

func (f *staticFeed) Snapshot() listing.Snapshot { return f.snap }

func feedOf(n int) *staticFeed {
	ls := make([]model.Listing, n)
	for i := range ls {
		cat := "hizmet"
		if i%3 == 0 {
			cat = "teknoloji"
		}
		ls[i] = model.Listing{
			ID: fmt.Sprintf("id%08d", i), Title: fmt.Sprintf("İlan %d", i),
			Category: cat, Location: "İstanbul", CreatedAt: int64(1000 - i), Status: model.StatusActive,
		}
	}
	return &staticFeed{snap: listing.Snapshot{Version: 1, Listings: ls}}
}

func TestSearch_Paginates(t *testing.T) {
	c := catalog.New(feedOf(45))

	p := c.Search(catalog.Query{Page: 3})
	assert.Equal(t, 3, p.TotalPages)
	assert.Len(t, p.Items, 5)
	assert.Equal(t, 41, p.StartIndex)
	assert.Equal(t, 45, p.EndIndex)
}

func TestSearch_StoredPagePastEndShowsLast(t *testing.T) {
	c := catalog.New(feedOf(25))
	p := c.Search(catalog.Query{Page: 7})
	assert.Equal(t, 2, p.CurrentPage)
	assert.Len(t, p.Items, 5)
}

func TestNavigate(t *testing.T) {
	c := catalog.New(feedOf(45))

	p := c.Navigate(catalog.Query{Page: 1}, 3)
	assert.Equal(t, 3, p.CurrentPage)
	assert.Equal(t, 41, p.StartIndex)

	for _, bad := range []int{0, -1, 4, 99} {
		p = c.Navigate(catalog.Query{Page: 2}, bad)
		assert.Equal(t, 2, p.CurrentPage, "page %d must be ignored", bad)
		assert.Equal(t, 21, p.StartIndex)
	}
}

func TestSearch_FiltersAndCapsSize(t *testing.T) {
	c := catalog.New(feedOf(300))

	p := c.Search(catalog.Query{Criteria: model.Criteria{Category: "teknoloji"}, Size: 1000})
	assert.Equal(t, 100, p.TotalItems)
	assert.Equal(t, catalog.MaxPageSize, p.PageSize)
}

func TestSearch_SortOldest(t *testing.T) {
	c := catalog.New(feedOf(5))
	p := c.Search(catalog.Query{Criteria: model.Criteria{SortBy: model.SortOldest}})
	assert.Equal(t, "id00000004", p.Items[0].ID)
}

func TestRelatedAndCategories(t *testing.T) {
	f := feedOf(10)
	c := catalog.New(f)

	rel := c.Related(f.snap.Listings[0])
	assert.Len(t, rel, catalog.RelatedLimit)
	for _, l := range rel {
		assert.NotEqual(t, f.snap.Listings[0].ID, l.ID)
	}
	assert.Equal(t, []string{"teknoloji", "hizmet"}, c.Categories())

	empty := catalog.New(&staticFeed{})
	assert.Equal(t, []string{}, empty.Categories())
}
