// Package lifetime models the optional durations a user picks for a share link:
// how long the link stays valid and how long delivered copies survive.
package lifetime

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Unit sizes in seconds. Months and years are calendar-agnostic.
const (
	Hour  int64 = 60 * 60
	Day         = 24 * Hour
	Month       = 30 * Day
	Year        = 365 * Day
)

// NoneValue is the wire value of an unlimited lifetime.
const NoneValue = "none"

// MaxSeconds is the longest lifetime that still fits in a time.Duration.
const MaxSeconds = math.MaxInt64 / int64(time.Second)

// ErrInvalid is returned when a wire value cannot be parsed.
var ErrInvalid = errors.New("lifetime: invalid value")

// Lifetime is an optional duration in whole seconds. The zero value is unlimited.
type Lifetime struct {
	seconds int64
	limited bool
}

// Unlimited returns a lifetime without a limit.
func Unlimited() Lifetime {
	return Lifetime{}
}

// Seconds returns a limited lifetime of n seconds.
func Seconds(n int64) Lifetime {
	return Lifetime{seconds: n, limited: true}
}

// Limited reports whether the lifetime carries a duration.
func (l Lifetime) Limited() bool {
	return l.limited
}

// Seconds returns the duration in seconds, or 0 when unlimited.
func (l Lifetime) Seconds() int64 {
	if !l.limited {
		return 0
	}
	return l.seconds
}

// Duration converts the lifetime into a time.Duration, 0 when unlimited.
func (l Lifetime) Duration() time.Duration {
	return time.Duration(l.Seconds()) * time.Second
}

// Positive reports whether the lifetime is limited and strictly greater than zero.
func (l Lifetime) Positive() bool {
	return l.limited && l.seconds > 0
}

// Deadline returns from+duration for limited lifetimes and the zero time otherwise.
func (l Lifetime) Deadline(from time.Time) time.Time {
	if !l.limited {
		return time.Time{}
	}
	return from.Add(l.Duration())
}

// Value encodes the lifetime for callback payloads: "none" or the number of seconds.
func (l Lifetime) Value() string {
	if !l.limited {
		return NoneValue
	}
	return strconv.FormatInt(l.seconds, 10)
}

// String implements fmt.Stringer using the human-readable form.
func (l Lifetime) String() string {
	return Describe(l)
}

// Parse decodes a callback payload value produced by Value.
func Parse(value string) (Lifetime, error) {
	v := strings.TrimSpace(value)
	if v == NoneValue {
		return Unlimited(), nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 || n > MaxSeconds {
		return Lifetime{}, fmt.Errorf("%w: %q", ErrInvalid, value)
	}
	return Seconds(n), nil
}
