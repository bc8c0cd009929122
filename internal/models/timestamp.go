package models

import (
	"fmt"
	"time"
)

// TimestampLayout is fixed width so that lexical order of stored values
// matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func Now() string {
	return FormatTimestamp(time.Now())
}

// localLayout is an ISO-8601 date-time without a zone designator.
const localLayout = "2006-01-02T15:04:05.999999999"

// ParseTimestamp accepts an ISO-8601 date-time. Values with an offset or Z
// are read as RFC 3339; values without a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(localLayout, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q is not an ISO-8601 date-time", ErrInvalid, s)
}

// NormalizeTimestamp re-renders an ISO-8601 value in TimestampLayout.
func NormalizeTimestamp(s string) (string, error) {
	t, err := ParseTimestamp(s)
	if err != nil {
		return "", err
	}
	return FormatTimestamp(t), nil
}
