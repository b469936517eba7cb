package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISO8601(t *testing.T) {
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	cases := map[string]time.Time{
		"2024-01-15T10:30:00Z":         want,
		"2024-01-15T10:30:00":          want,
		"2024-01-15T10:30":             want,
		"2024-01-15T15:30:00+05:00":    want,
		"2024-01-15 10:30:00":          want,
		"2024-01-15T13:30:00+0300":     want,
		"2024-01-15T13:30:00+03":       want,
		"2024-01-15T07:30:00.5-0300":   want.Add(500 * time.Millisecond),
		"2024-01-15 13:30:00+0300":     want,
		"2024-01-15 13:30:00+03":       want,
		"2024-01-15 13:30:00+03:00":    want,
		"2024-01-15T10:30:00.123456Z":  want.Add(123456 * time.Microsecond),
		"2024-01-15T10:30:00.1234567Z": want.Add(123456 * time.Microsecond),
		"  2024-01-15T10:30:00Z  ":     want,
	}
	for input, expected := range cases {
		t.Run(input, func(t *testing.T) {
			got, err := ParseISO8601(input)
			require.NoError(t, err)
			assert.True(t, expected.Equal(got), "ожидалось %s, получено %s", expected, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	for _, bad := range []string{"", "15.01.2024", "2024-13-01T00:00:00Z", "вчера"} {
		_, err := ParseISO8601(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatAPITime(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	value := time.Date(2024, 1, 15, 13, 30, 45, 999, moscow)
	assert.Equal(t, "2024-01-15T10:30:45Z", FormatAPITime(value))
}

func TestParseDateBound(t *testing.T) {
	from, err := ParseDateBound("2024-01-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)

	to, err := ParseDateBound("2024-01-31", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 999999000, time.UTC), to)

	exact, err := ParseDateBound("2024-01-31T12:00:00Z", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC), exact)

	_, err = ParseDateBound("31/01/2024", false)
	assert.Error(t, err)
}
