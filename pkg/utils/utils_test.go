package utils

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordIDPattern = regexp.MustCompile(`^\d+-[0-9a-f]{4}$`)

func TestGenerateRecordID(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	id := GenerateRecordID(now)

	assert.Regexp(t, recordIDPattern, id)
	assert.True(t, strings.HasPrefix(id, "1709"))

	other := GenerateRecordID(now)
	assert.Len(t, other, len(id))
}

func TestParseRecordTime(t *testing.T) {
	created := time.Date(2024, 3, 1, 23, 59, 59, 0, time.Local)
	id := GenerateRecordID(created)

	got, ok := ParseRecordTime(id)
	require.True(t, ok)
	assert.True(t, created.Equal(got))
	assert.Equal(t, "2024-03-01", DayKey(got))

	for _, bad := range []string{"", "abc-1234", "-ffff", "nodash", "0-abcd"} {
		_, ok := ParseRecordTime(bad)
		assert.False(t, ok, "expected %q to be rejected", bad)
	}
}

func TestGenerateConnectionID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateConnectionID()
		assert.False(t, seen[id], "duplicate connection id %s", id)
		seen[id] = true
	}
}

func TestGenerateRequestID(t *testing.T) {
	id := GenerateRequestID()
	assert.True(t, strings.HasPrefix(id, "req_"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeString("  hello\x00 world\x07 "))
	assert.Equal(t, "line\nbreak", SanitizeString("line\nbreak"))
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is..."},
		{"abc", 2, "ab"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TruncateString(tt.input, tt.maxLen))
	}
}

func TestMaskSensitive(t *testing.T) {
	assert.Equal(t, "AIza******", MaskSensitive("AIzaSyXXXX", 4))
	assert.Equal(t, "***", MaskSensitive("abc", 4))
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, ".png", ImageExtension("shot.PNG", "image/jpeg"))
	assert.Equal(t, ".webp", ImageExtension("blob", "image/webp"))
	assert.Equal(t, ".jpg", ImageExtension("", "application/octet-stream"))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     string
	}{
		{500 * time.Millisecond, "500ms"},
		{2 * time.Second, "2.00s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 30*time.Minute, "2h30m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.duration))
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 30, 0, 123000000, time.UTC)
	parsed, err := ParseTimestamp(FormatTimestamp(now))
	require.NoError(t, err)
	assert.True(t, now.Equal(parsed))
}

func TestDayKey(t *testing.T) {
	ts := time.Date(2024, 12, 31, 23, 59, 0, 0, time.Local)
	assert.Equal(t, "2024-12-31", DayKey(ts))
	assert.Equal(t, "2025-01-01", DayKey(ts.Add(2*time.Minute)))

	assert.True(t, ValidDayKey("2024-02-29"))
	assert.False(t, ValidDayKey("2024-13-01"))
	assert.False(t, ValidDayKey("../etc"))
}

func TestFormatDisplay(t *testing.T) {
	ts := time.Date(2024, 3, 1, 15, 4, 5, 0, time.Local)
	assert.Equal(t, "Mar 1, 2024 3:04:05 PM", FormatDisplay(ts))
}
