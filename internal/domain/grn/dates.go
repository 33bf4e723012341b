package grn

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is how dates are printed on labels.
const DateLayout = "02/01/2006"

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate reads an OData v2 "/Date(ms)/" literal or an ISO timestamp.
// Timestamps without a zone are taken as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if strings.HasPrefix(s, "/Date(") && strings.HasSuffix(s, ")/") {
		inner := s[len("/Date(") : len(s)-len(")/")]
		// drop a trailing "+0000" style offset; the millis are already UTC
		if len(inner) > 1 {
			if i := strings.IndexAny(inner[1:], "+-"); i >= 0 {
				inner = inner[:i+1]
			}
		}
		ms, err := strconv.ParseInt(inner, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders s as dd/MM/yyyy in UTC, or "" when it cannot be parsed.
func FormatDate(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return ""
	}
	return t.Format(DateLayout)
}
