// Package search derives the visible listing set: filtering, sorting,
// pagination and the related/category helpers used by the listing pages.
package search

import (
	"slices"
	"strings"

	"isilanlarim/internal/model"
	"isilanlarim/internal/slug"
)

// matcher holds the folded criteria so each listing is checked in one pass.
type matcher struct {
	term        string
	category    string
	subCategory string
	city        string
	experience  string
}

func newMatcher(c model.Criteria) matcher {
	return matcher{
		term:        slug.Fold(strings.TrimSpace(c.SearchTerm)),
		category:    c.Category,
		subCategory: c.SubCategory,
		city:        slug.Fold(strings.TrimSpace(c.City)),
		experience:  c.ExperienceLevel,
	}
}

func (m matcher) match(l *model.Listing) bool {
	if m.category != "" && l.Category != m.category {
		return false
	}
	if m.subCategory != "" && l.SubCategory != m.subCategory {
		return false
	}
	if m.experience != "" && l.ExperienceLevel != m.experience {
		return false
	}
	if m.city != "" && !strings.Contains(slug.Fold(l.Location), m.city) {
		return false
	}
	if m.term == "" {
		return true
	}
	for _, field := range [...]string{l.Title, l.Company, l.Description, l.Location} {
		if strings.Contains(slug.Fold(field), m.term) {
			return true
		}
	}
	return false
}

// Filter returns the listings matching every non-empty criterion, sorted by
// createdAt per c.SortBy. The input slice is not modified.
func Filter(listings []model.Listing, c model.Criteria) []model.Listing {
	m := newMatcher(c)
	out := make([]model.Listing, 0, len(listings))
	for i := range listings {
		if m.match(&listings[i]) {
			out = append(out, listings[i])
		}
	}
	SortByCreated(out, c.SortBy)
	return out
}

// SortByCreated orders listings in place; anything but "oldest" means newest first.
func SortByCreated(listings []model.Listing, by model.SortBy) {
	if by == model.SortOldest {
		slices.SortStableFunc(listings, func(a, b model.Listing) int {
			return cmpInt64(a.CreatedAt, b.CreatedAt)
		})
		return
	}
	slices.SortStableFunc(listings, func(a, b model.Listing) int {
		return cmpInt64(b.CreatedAt, a.CreatedAt)
	})
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ParseSortBy accepts "newest" and "oldest"; anything else falls back to newest.
func ParseSortBy(s string) model.SortBy {
	if model.SortBy(s) == model.SortOldest {
		return model.SortOldest
	}
	return model.SortNewest
}

// Related returns up to n other listings sharing the category or the location.
func Related(current model.Listing, all []model.Listing, n int) []model.Listing {
	out := make([]model.Listing, 0, n)
	for _, l := range all {
		if len(out) == n {
			break
		}
		if l.ID == current.ID {
			continue
		}
		if l.Category == current.Category || l.Location == current.Location {
			out = append(out, l)
		}
	}
	return out
}

// Categories lists the distinct category and sub-category values in first-seen order.
func Categories(all []model.Listing) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, l := range all {
		add(l.Category)
		add(l.SubCategory)
	}
	return out
}
