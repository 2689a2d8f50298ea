package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outbound requests per host. A host that answered 429 can be
// paused, which holds back every caller sharing the limiter, not just the one retrying.
type Limiter struct {
	hosts sync.Map // host -> *hostBudget
	rate  rate.Limit
	burst int
	now   func() time.Time
}

type hostBudget struct {
	limiter *rate.Limiter

	mu          sync.Mutex
	pausedUntil time.Time
}

// NewLimiter creates a limiter granting requestsPerSecond to each host
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		rate:  rate.Limit(requestsPerSecond),
		burst: max(burst, 1),
		now:   time.Now,
	}
}

// Wait blocks until rawURL's host is unpaused and has budget
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	b := l.budget(host)

	if d := b.pause(l.now()); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return b.limiter.Wait(ctx)
}

// Allow reports whether a request could go out now, consuming budget if so
func (l *Limiter) Allow(rawURL string) bool {
	host, err := hostOf(rawURL)
	if err != nil {
		return false
	}
	b := l.budget(host)
	if b.pause(l.now()) > 0 {
		return false
	}
	return b.limiter.Allow()
}

// Penalize pauses rawURL's host for d. Overlapping pauses keep the later end.
func (l *Limiter) Penalize(rawURL string, d time.Duration) {
	host, err := hostOf(rawURL)
	if err != nil || d <= 0 {
		return
	}
	b := l.budget(host)
	until := l.now().Add(d)

	b.mu.Lock()
	if until.After(b.pausedUntil) {
		b.pausedUntil = until
	}
	b.mu.Unlock()
}

// SetHostRate overrides the rate for one host
func (l *Limiter) SetHostRate(host string, requestsPerSecond float64, burst int) {
	if burst <= 0 {
		burst = l.burst
	}
	l.hosts.Store(host, &hostBudget{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)})
}

func (l *Limiter) budget(host string) *hostBudget {
	if b, ok := l.hosts.Load(host); ok {
		return b.(*hostBudget)
	}
	b, _ := l.hosts.LoadOrStore(host, &hostBudget{limiter: rate.NewLimiter(l.rate, l.burst)})
	return b.(*hostBudget)
}

// pause returns how long the host is still paused at now
func (b *hostBudget) pause(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now.Before(b.pausedUntil) {
		return b.pausedUntil.Sub(now)
	}
	return 0
}

func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("url has no host: %s", rawURL)
	}
	return parsed.Host, nil
}
