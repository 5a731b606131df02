package util

import (
	"regexp"
	"time"
)

// The enumerated date shapes registers actually use. Anything else is not a
// date token.
var dateLayouts = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), "01/02/2006"},
	{regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`), "1/2/2006"},
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), "2006-01-02"},
	{regexp.MustCompile(`^\d{1,2}-[A-Za-z]{3}-\d{4}$`), "2-Jan-2006"},
}

// embedded shape for dates glued to OCR noise, e.g. "=07/15/2025"
var reEmbeddedDate = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)

// written-out shape on summary pages, e.g. "July 15, 2025"
var reLongDate = regexp.MustCompile(`^[A-Za-z]{3,9} \d{1,2}, \d{4}$`)

// LooksLikeDate reports whether a token matches one of the known date shapes.
func LooksLikeDate(token string) bool {
	for _, d := range dateLayouts {
		if d.re.MatchString(token) {
			return true
		}
	}
	return false
}

// ParseDateToken parses a token against the known date shapes. Falls back to
// an embedded MM/DD/YYYY match to survive stripe artifacts.
func ParseDateToken(token string) (time.Time, bool) {
	for _, d := range dateLayouts {
		if d.re.MatchString(token) {
			if t, err := time.Parse(d.layout, token); err == nil {
				return t, true
			}
		}
	}
	if m := reEmbeddedDate.FindString(token); m != "" {
		if t, err := time.Parse("01/02/2006", m); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseLongDate parses the written-out "Month DD, YYYY" shape. It spans
// whitespace, so callers join adjacent tokens before trying it.
func ParseLongDate(text string) (time.Time, bool) {
	if !reLongDate.MatchString(text) {
		return time.Time{}, false
	}
	for _, layout := range []string{"January 2, 2006", "Jan 2, 2006"} {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
