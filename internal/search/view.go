package search

import (
	"sync"

	"isilanlarim/internal/model"
)

// View memoizes Filter for the latest (snapshot version, criteria) pair, so
// repeated reads of an unchanged input return the very same slice.
type View struct {
	mu       sync.Mutex
	valid    bool
	version  uint64
	criteria model.Criteria
	result   []model.Listing
}

// Derive returns Filter(listings, c), recomputing only when version or c
// differ from the previous call. Callers must treat the result as read-only.
func (v *View) Derive(version uint64, listings []model.Listing, c model.Criteria) []model.Listing {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.valid && v.version == version && v.criteria == c {
		return v.result
	}
	v.result = Filter(listings, c)
	v.version = version
	v.criteria = c
	v.valid = true
	return v.result
}
