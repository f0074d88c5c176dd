package timer

import (
	"sort"
	"time"
)

const (
	T3346 = 3346
	T3502 = 3502
	T3510 = 3510
	T3511 = 3511
	T3512 = 3512
	T3521 = 3521
	T3580 = 3580
	T3581 = 3581
)

// Default intervals from TS 24.501 tables 10.2.1 and 10.3.1.
var Defaults = map[int]time.Duration{
	T3346: 15 * time.Minute,
	T3502: 12 * time.Minute,
	T3510: 15 * time.Second,
	T3511: 10 * time.Second,
	T3512: 54 * time.Minute,
	T3521: 15 * time.Second,
	T3580: 16 * time.Second,
	T3581: 16 * time.Second,
}

// session management timers, everything else belongs to MM
var smTimers = map[int]bool{T3580: true, T3581: true}

// Set holds the timers of one endpoint.
type Set struct {
	timers map[int]*Timer
}

// NewSet creates every known timer. Intervals override Defaults.
func NewSet(poster Poster, intervals map[int]time.Duration) *Set {
	s := &Set{timers: make(map[int]*Timer, len(Defaults))}
	for code, d := range Defaults {
		if v, ok := intervals[code]; ok && v > 0 {
			d = v
		}
		s.timers[code] = New(code, !smTimers[code], d, poster)
	}
	return s
}

func (s *Set) Get(code int) *Timer {
	return s.timers[code]
}

func (s *Set) StopAll() {
	for _, t := range s.timers {
		t.Stop()
	}
}

// Running lists the running timers in code order.
func (s *Set) Running() []*Timer {
	var out []*Timer
	for _, t := range s.timers {
		if t.IsRunning() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
