package extract

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// generalLayouts are tried after any source-specific layouts. The order runs
// from strict machine formats to looser editorial ones.
var generalLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
	"01/02/2006",
}

// ParseTime parses a published timestamp, trying source-specific layouts,
// then general layouts, then a natural-language parser. It returns nil when
// nothing matches; callers must treat nil as "unordered", never as "now".
func ParseTime(value string, sourceLayouts []string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	for _, layout := range sourceLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			u := t.UTC()
			return &u
		}
	}
	for _, layout := range generalLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			u := t.UTC()
			return &u
		}
	}
	if t, err := dateparse.ParseAny(value); err == nil {
		u := t.UTC()
		return &u
	}
	return nil
}
