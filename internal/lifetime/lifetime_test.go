package lifetime

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribePresets(t *testing.T) {
	want := []string{"1 hour", "1 day", "1 month", "1 year", "5 years", "unlimited"}
	require.Len(t, Presets, len(want))
	for i, p := range Presets {
		assert.Equal(t, want[i], Describe(p.Lifetime), "preset %q", p.Label)
	}
}

func TestDescribeUnits(t *testing.T) {
	cases := []struct {
		in   Lifetime
		want string
	}{
		{Seconds(24 * Hour), "1 day"},
		{Seconds(48 * Hour), "2 days"},
		{Seconds(5 * Year), "5 years"},
		{Seconds(60 * Day), "2 months"},
		{Seconds(36 * Hour), "36 hours"},
		{Seconds(90), "90 seconds"},
		{Seconds(1), "1 second"},
		{Seconds(0), "0 seconds"},
		{Seconds(Hour + 1), "3601 seconds"},
		{Unlimited(), "unlimited"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Describe(tc.in))
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, p := range Presets {
		got, err := Parse(p.Lifetime.Value())
		require.NoError(t, err)
		assert.Equal(t, p.Lifetime, got)
	}

	_, err := Parse("soon")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Parse("-5")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Parse("9223372036854775807")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = Parse(strconv.FormatInt(MaxSeconds+1, 10))
	assert.ErrorIs(t, err, ErrInvalid)

	longest, err := Parse(strconv.FormatInt(MaxSeconds, 10))
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, longest.Deadline(now).After(now))
}

func TestDeadline(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.True(t, Unlimited().Deadline(now).IsZero())
	assert.Equal(t, now.Add(time.Hour), Seconds(Hour).Deadline(now))
	assert.False(t, Seconds(0).Positive())
	assert.False(t, Unlimited().Positive())
	assert.True(t, Seconds(Hour).Positive())
}
