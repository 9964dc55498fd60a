// Package businessday maps wall-clock instants to accounting days that roll
// over at a configurable start time (default 06:00) instead of midnight.
// Invoice date stamps and daily aggregates all agree on these boundaries.
package businessday

import (
	"fmt"
	"time"
)

// DefaultOffset is the new-day start used when a tenant has not configured
// one.
const DefaultOffset = 6 * time.Hour

// ParseOffset parses a "HH:MM" day-start offset. An unparsable value is a
// configuration error and must be treated as fatal by the caller.
func ParseOffset(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid day start offset %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid day start offset %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Day returns the business day an instant belongs to, as midnight of that
// calendar date in the instant's location. Instants before the day-start
// offset belong to the previous calendar date.
func Day(t time.Time, offset time.Duration) time.Time {
	shifted := t.Add(-offset)
	return time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, t.Location())
}

// Range returns the half-open instant range [day+offset, day+1d+offset)
// covered by a business day.
func Range(day time.Time, offset time.Duration) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location()).Add(offset)
	return start, start.AddDate(0, 0, 1)
}

// Stamp formats a business day as the YYMMDD invoice date prefix.
func Stamp(day time.Time) string {
	return day.Format("060102")
}
