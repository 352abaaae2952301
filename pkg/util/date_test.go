package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))

	got, ok = ParseTime("2024-10-10T10:10:10.5Z")
	require.True(t, ok)
	assert.Equal(t, 500*time.Millisecond, time.Duration(got.Nanosecond()))
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "yesterday", "-5", "0"} {
		_, ok := ParseTime(s)
		assert.False(t, ok, s)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
}

func TestAlignFromTo(t *testing.T) {
	from := time.Date(2024, 1, 1, 10, 7, 31, 0, time.UTC)
	to := time.Date(2024, 1, 1, 11, 2, 59, 0, time.UTC)

	f, e := AlignFromTo(from, to, 5*time.Minute)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC), f)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), e)

	f, e = AlignFromTo(from, to, 0)
	assert.Equal(t, from, f)
	assert.Equal(t, to, e)
}
