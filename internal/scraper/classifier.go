// Package scraper pulls postings from external job boards, classifies them
// and stores the new ones as active listings.
package scraper

import (
	"strings"

	"isilanlarim/internal/slug"
)

// Category is a (category, sub-category) pair of the site taxonomy.
type Category struct {
	Main string
	Sub  string
}

// Fallback is used when no keyword matches.
var Fallback = Category{Main: "diger", Sub: "custom"}

type rule struct {
	keyword string
	cat     Category
}

// rules is checked in order; the first keyword found wins.
var rules = []rule{
	{"yazılım", Category{"teknoloji", "yazilim-gelistirici"}},
	{"developer", Category{"teknoloji", "yazilim-gelistirici"}},
	{"mühendis", Category{"muhendislik", "muhendis"}},
	{"satış", Category{"ticaret", "satis-temsilcisi"}},
	{"pazarlama", Category{"ticaret", "pazarlama-uzmani"}},
	{"muhasebe", Category{"finans", "muhasebeci"}},
	{"öğretmen", Category{"egitim", "ogretmen"}},
	{"şoför", Category{"lojistik", "sofor"}},
	{"garson", Category{"hizmet", "garson"}},
	{"aşçı", Category{"hizmet", "asci"}},
	{"temizlik", Category{"hizmet", "temizlik"}},
	{"güvenlik", Category{"guvenlik", "ozel-guvenlik"}},
}

var foldedRules = func() []rule {
	out := make([]rule, len(rules))
	for i, r := range rules {
		out[i] = rule{keyword: slug.Fold(r.keyword), cat: r.cat}
	}
	return out
}()

// Classify maps free text (title and description) to a category by
// case-insensitive keyword match. Turkish casing is honoured, so "AŞÇI" and
// "YAZILIM" match as well.
func Classify(text string) Category {
	folded := slug.Fold(text)
	for _, r := range foldedRules {
		if strings.Contains(folded, r.keyword) {
			return r.cat
		}
	}
	return Fallback
}
