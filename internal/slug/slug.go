// Package slug turns free-text listing titles into URL path segments.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fallback is returned when the input has nothing usable.
const Fallback = "ilan"

// MaxLen caps the slug length in bytes (the output is ASCII).
const MaxLen = 100

const minIDLen = 10

var turkishFold = strings.NewReplacer(
	"ğ", "g",
	"ü", "u",
	"ş", "s",
	"ı", "i",
	"ö", "o",
	"ç", "c",
)

// Make returns a lowercase, ASCII-only, hyphen-separated token for text.
// It is idempotent: Make(Make(s)) == Make(s).
func Make(text string) string {
	if strings.TrimSpace(text) == "" {
		return Fallback
	}

	// Turkish casing maps İ→i and I→ı, so the fold below sees a single form.
	lower := cases.Lower(language.Turkish).String(text)
	lower = turkishFold.Replace(lower)

	var b strings.Builder
	b.Grow(len(lower))
	pendingHyphen := false
	for _, r := range lower {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingHyphen = true
		}
	}

	out := b.String()
	if len(out) > MaxLen {
		out = strings.TrimRight(out[:MaxLen], "-")
	}
	if out == "" {
		return Fallback
	}
	return out
}

// WithID builds the canonical "{slug}-{id}" path segment.
func WithID(title, id string) string {
	return Make(title) + "-" + id
}

// SplitID recovers the id suffix from a "{slug}-{id}" segment. An id is the
// last hyphen-separated part when it has at least ten alphanumerics and one
// digit; plain title slugs report ok=false.
func SplitID(segment string) (base, id string, ok bool) {
	i := strings.LastIndexByte(segment, '-')
	if i <= 0 || i == len(segment)-1 {
		return segment, "", false
	}
	candidate := segment[i+1:]
	if len(candidate) < minIDLen {
		return segment, "", false
	}
	hasDigit := false
	for _, r := range candidate {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_':
		default:
			return segment, "", false
		}
	}
	if !hasDigit {
		return segment, "", false
	}
	return segment[:i], candidate, true
}

// Fold lower-cases text with Turkish rules and merges dotless ı into i, so
// "IZMIR", "İzmir" and "izmir" compare equal. Used for case-insensitive
// matching; the result is not a slug.
func Fold(text string) string {
	return strings.ReplaceAll(cases.Lower(language.Turkish).String(text), "ı", "i")
}
