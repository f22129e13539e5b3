// Package ratelimit provides a token-bucket rate limiting primitive.
//
// The harness uses a single Bucket to throttle the accept loop of the
// raw-listener transport, bounding how fast new connections are taken
// off the socket.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket is a single token bucket rate limiter.
// It is safe for concurrent use.
type Bucket struct {
	tokens     float64
	maxTokens  float64
	rate       float64 // tokens per second
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewBucket creates a new token bucket with the given rate (tokens/second)
// and burst (maximum tokens). The bucket starts full.
func NewBucket(rate float64, burst int) *Bucket {
	maxTokens := float64(burst)
	if maxTokens <= 0 {
		maxTokens = rate
	}
	return &Bucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		rate:       rate,
		lastUpdate: time.Now(),
	}
}

// refill adds tokens based on elapsed time. Caller must hold b.mu.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastUpdate).Seconds()
	b.tokens += elapsed * b.rate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastUpdate = now
}

// Allow tries to consume one token. Returns true if a token was available.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(time.Now())

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is cancelled.
func (b *Bucket) Wait(ctx context.Context) error {
	b.mu.Lock()
	b.refill(time.Now())

	if b.tokens >= 1 {
		b.tokens--
		b.mu.Unlock()
		return nil
	}

	// Time until one token accrues at the configured rate.
	waitTime := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(waitTime):
		b.mu.Lock()
		b.tokens = 0 // consume the token we waited for
		b.mu.Unlock()
		return nil
	}
}

// Available returns the current number of tokens (including time-based refill).
func (b *Bucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastUpdate).Seconds()
	tokens := b.tokens + elapsed*b.rate
	if tokens > b.maxTokens {
		tokens = b.maxTokens
	}
	return tokens
}
