package utils

import (
	"fmt"
	"time"
)

const (
	// DisplayLayout is the human readable timestamp shown next to answers
	DisplayLayout = "Jan 2, 2006 3:04:05 PM"
	// DayLayout names history buckets
	DayLayout = "2006-01-02"
)

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := d / time.Minute
		seconds := (d % time.Minute) / time.Second
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := d / time.Hour
	minutes := (d % time.Hour) / time.Minute
	return fmt.Sprintf("%dh%dm", hours, minutes)
}

// FormatTimestamp formats timestamp in ISO 8601 format
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// ParseTimestamp parses ISO 8601 timestamp
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// FormatDisplay renders t in the local zone for display
func FormatDisplay(t time.Time) string {
	return t.Local().Format(DisplayLayout)
}

// DayKey returns the local calendar day of t, e.g. 2024-03-01
func DayKey(t time.Time) string {
	return t.Local().Format(DayLayout)
}

// ValidDayKey reports whether s is a well formed day key
func ValidDayKey(s string) bool {
	_, err := time.ParseInLocation(DayLayout, s, time.Local)
	return err == nil
}

// Now returns current time (useful for mocking in tests)
var Now = time.Now
