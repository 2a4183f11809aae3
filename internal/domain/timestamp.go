package domain

import (
	"strings"
	"time"
)

// TimestampLayout is the on-disk format of Notification.CreatedAt: naive UTC
// with microseconds, e.g. 2024-05-01T10:00:00.000000.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Epoch is the watermark used when a client supplies none or an invalid one.
var Epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// FormatTimestamp renders t in TimestampLayout after converting to UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts RFC 3339 (Z or offset) and naive ISO-8601 values with
// optional fractional seconds. Naive values are taken as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseWatermark is ParseTimestamp with a silent fallback to Epoch.
func ParseWatermark(s string) time.Time {
	if t, ok := ParseTimestamp(s); ok {
		return t
	}
	return Epoch
}
