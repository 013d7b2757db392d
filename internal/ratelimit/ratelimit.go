package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrLimited is returned when a deletion request exceeds the configured rate.
var ErrLimited = errors.New("deletion rate limit exceeded")

// Limits caps how many destructive requests are accepted per window.
// A zero limit disables that window.
type Limits struct {
	PerMinute int `yaml:"per_minute"`
	PerHour   int `yaml:"per_hour"`
	PerDay    int `yaml:"per_day"`
}

// Limiter is a sliding-window limiter for store deletions.
type Limiter struct {
	limits  Limits
	enabled bool
	now     func() time.Time

	minuteWindow []time.Time
	hourWindow   []time.Time
	dayWindow    []time.Time
	mu           sync.Mutex
}

// New creates a limiter. A disabled limiter allows everything.
func New(limits Limits, enabled bool) *Limiter {
	return &Limiter{
		limits:  limits,
		enabled: enabled,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records a request and reports whether it fits in every window.
// Rejected requests are not recorded.
func (l *Limiter) Allow() bool {
	if l == nil || !l.enabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	if full(l.minuteWindow, l.limits.PerMinute) ||
		full(l.hourWindow, l.limits.PerHour) ||
		full(l.dayWindow, l.limits.PerDay) {
		return false
	}

	l.minuteWindow = append(l.minuteWindow, now)
	l.hourWindow = append(l.hourWindow, now)
	l.dayWindow = append(l.dayWindow, now)
	return true
}

// RetryAfter is how long until the oldest entry of the tightest full window expires.
func (l *Limiter) RetryAfter() time.Duration {
	if l == nil || !l.enabled {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	var wait time.Duration
	check := func(window []time.Time, limit int, span time.Duration) {
		if !full(window, limit) {
			return
		}
		if d := window[0].Add(span).Sub(now); d > wait {
			wait = d
		}
	}
	check(l.minuteWindow, l.limits.PerMinute, time.Minute)
	check(l.hourWindow, l.limits.PerHour, time.Hour)
	check(l.dayWindow, l.limits.PerDay, 24*time.Hour)
	return wait
}

func full(window []time.Time, limit int) bool {
	return limit > 0 && len(window) >= limit
}

func (l *Limiter) cleanup(now time.Time) {
	l.minuteWindow = filterTimes(l.minuteWindow, now.Add(-time.Minute))
	l.hourWindow = filterTimes(l.hourWindow, now.Add(-time.Hour))
	l.dayWindow = filterTimes(l.dayWindow, now.Add(-24*time.Hour))
}

// filterTimes keeps only times after the cutoff
func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}

// Stats returns current limiter statistics
func (l *Limiter) Stats() Stats {
	if l == nil || !l.enabled {
		return Stats{Enabled: false}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanup(l.now())

	return Stats{
		Enabled:            true,
		RequestsLastMinute: len(l.minuteWindow),
		RequestsLastHour:   len(l.hourWindow),
		RequestsLastDay:    len(l.dayWindow),
		Limits:             l.limits,
	}
}

// Stats contains limiter statistics
type Stats struct {
	Enabled            bool   `json:"enabled"`
	RequestsLastMinute int    `json:"requests_last_minute"`
	RequestsLastHour   int    `json:"requests_last_hour"`
	RequestsLastDay    int    `json:"requests_last_day"`
	Limits             Limits `json:"limits"`
}

// Reset clears all tracked requests
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.minuteWindow = nil
	l.hourWindow = nil
	l.dayWindow = nil
}
