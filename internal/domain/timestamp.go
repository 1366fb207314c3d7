package domain

import (
	"strconv"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05",
}

// ParseTimestamp accepts unix seconds, unix milliseconds or one of the common
// ISO layouts. It returns the zero time when nothing matches.
func ParseTimestamp(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
		if ts > 1e12 {
			return time.UnixMilli(ts).UTC()
		}
		return time.Unix(ts, 0).UTC()
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
