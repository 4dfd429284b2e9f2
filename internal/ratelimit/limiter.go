package ratelimit

import (
	"context"
	"sync"
	"time"
)

const window = time.Minute

type tokenEntry struct {
	at     time.Time
	tokens int
}

// Limiter enforces two trailing 60-second windows against an external
// service: one counting requests, one summing estimated token volume. State
// is process-local and shared by every caller holding the same Limiter.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	maxTokens   int
	requests    []time.Time
	tokens      []tokenEntry
	now         func() time.Time
}

// New builds a limiter. Non-positive limits disable the corresponding window.
func New(maxRequestsPerMinute, maxTokensPerMinute int) *Limiter {
	return &Limiter{
		maxRequests: maxRequestsPerMinute,
		maxTokens:   maxTokensPerMinute,
		now:         time.Now,
	}
}

// Acquire blocks until the call fits both windows, then records it in both.
// The returned duration is the total time spent waiting. Cancellation aborts
// the wait and leaves both windows unmodified; that is the only error path.
//
// The wait target is when the oldest surviving entry exits the horizon;
// after waking the limiter re-checks, since another caller may have taken
// the freed slot in between.
func (l *Limiter) Acquire(ctx context.Context, estimatedTokens int) (time.Duration, error) {
	var waited time.Duration
	for {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		wait := l.waitFor(now, estimatedTokens)
		if wait <= 0 {
			l.record(now, estimatedTokens)
			l.mu.Unlock()
			return waited, nil
		}
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return waited, ctx.Err()
		case <-timer.C:
			waited += wait
		}
	}
}

// Usage reports the current window sums after pruning stale entries.
func (l *Limiter) Usage() (requests int, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	total := 0
	for _, e := range l.tokens {
		total += e.tokens
	}
	return len(l.requests), total
}

// Reset clears both windows. Operator hook; normal operation never needs it.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = nil
	l.tokens = nil
}

// waitFor computes how long until both windows admit the call. A window head
// is only consulted behind a length check; an empty window contributes no
// wait, so an oversized first request passes straight through rather than
// stalling forever.
func (l *Limiter) waitFor(now time.Time, estimatedTokens int) time.Duration {
	var wait time.Duration
	if l.maxRequests > 0 && len(l.requests) >= l.maxRequests {
		if d := l.requests[0].Add(window).Sub(now); d > wait {
			wait = d
		}
	}
	if l.maxTokens > 0 && len(l.tokens) > 0 {
		current := 0
		for _, e := range l.tokens {
			current += e.tokens
		}
		if current+estimatedTokens > l.maxTokens {
			if d := l.tokens[0].at.Add(window).Sub(now); d > wait {
				wait = d
			}
		}
	}
	return wait
}

// prune evicts entries older than the window. Front eviction is a re-slice.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(l.requests) && !l.requests[i].After(cutoff) {
		i++
	}
	l.requests = l.requests[i:]

	j := 0
	for j < len(l.tokens) && !l.tokens[j].at.After(cutoff) {
		j++
	}
	l.tokens = l.tokens[j:]
}

func (l *Limiter) record(now time.Time, estimatedTokens int) {
	l.requests = append(l.requests, now)
	l.tokens = append(l.tokens, tokenEntry{at: now, tokens: estimatedTokens})
}
