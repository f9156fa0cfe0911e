package strava

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Strava rate limits:
// - 100 requests per 15 minutes
// - 1000 requests per day
const (
	DefaultShortLimit  = 100
	DefaultDailyLimit  = 1000
	DefaultMinInterval = 150 * time.Millisecond
)

// window is a fixed request budget that resets at resetsAt.
type window struct {
	limit    int
	usage    int
	resetsAt time.Time
	next     func(now time.Time) time.Time
}

func (w *window) roll(now time.Time) {
	if !now.Before(w.resetsAt) {
		w.usage = 0
		w.resetsAt = w.next(now)
	}
}

// RateLimiter keeps API usage inside Strava's 15-minute and daily budgets and
// spaces consecutive requests by a minimum interval.
type RateLimiter struct {
	mu    sync.Mutex
	short window
	daily window

	pacer *rate.Limiter
	now   func() time.Time
}

// NewRateLimiter creates a new rate limiter with Strava's limits
func NewRateLimiter() *RateLimiter {
	return newRateLimiter(DefaultShortLimit, DefaultDailyLimit, DefaultMinInterval, time.Now)
}

func newRateLimiter(shortLimit, dailyLimit int, minInterval time.Duration, now func() time.Time) *RateLimiter {
	t := now()
	nextShort := func(now time.Time) time.Time { return now.Add(15 * time.Minute) }
	nextDaily := func(now time.Time) time.Time { return now.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour) }
	return &RateLimiter{
		short: window{limit: shortLimit, resetsAt: nextShort(t), next: nextShort},
		daily: window{limit: dailyLimit, resetsAt: nextDaily(t), next: nextDaily},
		pacer: rate.NewLimiter(rate.Every(minInterval), 1),
		now:   now,
	}
}

// Wait blocks until a request can be made without exceeding rate limits
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		r.short.roll(now)
		r.daily.roll(now)

		var until time.Time
		switch {
		case r.daily.usage >= r.daily.limit:
			until = r.daily.resetsAt
		case r.short.usage >= r.short.limit:
			until = r.short.resetsAt
		default:
			r.short.usage++
			r.daily.usage++
			r.mu.Unlock()
			return r.pacer.Wait(ctx)
		}
		r.mu.Unlock()

		timer := time.NewTimer(until.Sub(now))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// UpdateFromHeaders updates rate limit state from Strava response headers
func (r *RateLimiter) UpdateFromHeaders(h http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strava returns: X-RateLimit-Limit: "100,1000" and X-RateLimit-Usage: "34,512"
	if short, daily, ok := parsePair(h.Get("X-RateLimit-Usage")); ok {
		r.short.usage, r.daily.usage = short, daily
	}
	if short, daily, ok := parsePair(h.Get("X-RateLimit-Limit")); ok {
		r.short.limit, r.daily.limit = short, daily
	}
}

func parsePair(v string) (first, second int, ok bool) {
	parts := strings.Split(v, ",")
	if len(parts) < 2 {
		return 0, 0, false
	}
	first, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	second, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	return first, second, err1 == nil && err2 == nil
}

// Status returns current rate limit status
func (r *RateLimiter) Status() (shortRemaining, dailyRemaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.short.limit - r.short.usage, r.daily.limit - r.daily.usage
}
