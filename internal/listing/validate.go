package listing

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"isilanlarim/internal/slug"
)

var (
	emailRe  = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)
	mobileRe = regexp.MustCompile(`^5[0-9]{9}$`)
	landRe   = regexp.MustCompile(`^[2-5][0-9]{9}$`)
)

// normalizePhone strips formatting and the 0 / 90 trunk prefixes.
func normalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "90"):
		return digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return digits[1:]
	}
	return digits
}

// validate checks the fields every stored listing must carry. It runs on the
// merged result of an update as well, so partial patches cannot blank them.
func validate(d *Draft) error {
	required := []struct{ value, msg string }{
		{d.Title, "title is required"},
		{d.Company, "company is required"},
		{d.Description, "description is required"},
		{d.Location, "location is required"},
		{d.Type, "employment type is required"},
		{d.Category, "category is required"},
		{d.SubCategory, "sub-category is required"},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Msg: f.msg}
		}
	}
	if utf8.RuneCountInString(d.Title) > slug.MaxLen {
		return &ValidationError{Msg: "title must be at most 100 characters"}
	}

	if d.ContactEmail == "" && d.ContactPhone == "" && d.BusinessPhone == "" {
		return &ValidationError{Msg: "at least one contact method is required"}
	}
	if d.ContactEmail != "" && !emailRe.MatchString(d.ContactEmail) {
		return &ValidationError{Msg: "contact email is not a valid address"}
	}
	if d.ContactPhone != "" && !mobileRe.MatchString(normalizePhone(d.ContactPhone)) {
		return &ValidationError{Msg: "contact phone must be a mobile number (5XX XXX XX XX)"}
	}
	if d.BusinessPhone != "" && !landRe.MatchString(normalizePhone(d.BusinessPhone)) {
		return &ValidationError{Msg: "business phone is not a valid number"}
	}
	return nil
}
