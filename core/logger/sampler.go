package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratio keeps Keep out of every Every events.
type ratio struct {
	Keep, Every int
}

func (r ratio) valid() bool {
	return r.Keep > 0 && r.Every > 0
}

// parseRatio reads "k/n" or "n" (meaning 1/n). ok is false for malformed input.
func parseRatio(spec string) (ratio, bool) {
	spec = strings.TrimSpace(spec)
	if num, den, found := strings.Cut(spec, "/"); found {
		k, err1 := strconv.Atoi(strings.TrimSpace(num))
		n, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 != nil || err2 != nil {
			return ratio{}, false
		}
		return ratio{Keep: min(k, n), Every: n}, true
	}
	n, err := strconv.Atoi(spec)
	if err != nil {
		return ratio{}, false
	}
	return ratio{Keep: 1, Every: n}, true
}

// sampler passes the first Keep of every Every calls. An unset or invalid
// ratio passes everything.
type sampler struct {
	r atomic.Pointer[ratio]
	n atomic.Uint64
}

func (s *sampler) set(r ratio) {
	if !r.valid() {
		s.r.Store(nil)
	} else {
		s.r.Store(&r)
	}
	s.n.Store(0)
}

func (s *sampler) allow() bool {
	r := s.r.Load()
	if r == nil {
		return true
	}
	n := s.n.Add(1) - 1
	return int(n%uint64(r.Every)) < r.Keep
}
