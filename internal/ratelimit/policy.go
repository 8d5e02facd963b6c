// Package ratelimit holds the retry policy record consumed by callers that
// wrap backend invocations in retry loops. The ticket service itself never
// retries; it only classifies errors for fallback.
package ratelimit

import (
	"math/rand"
	"time"
)

// Default policy values, tuned for agent backend subprocess calls.
const (
	DefaultMaxRetries   = 3
	DefaultBaseDelay    = 2 * time.Second
	DefaultMaxDelay     = 60 * time.Second
	DefaultJitterFactor = 0.25
)

// DefaultRetryableStatuses is the usual transient set.
func DefaultRetryableStatuses() []int {
	return []int{429, 500, 502, 503, 504}
}

// Policy describes how a caller should retry transient failures.
type Policy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	JitterFactor      float64
	RetryableStatuses map[int]struct{}

	// rng is injectable for deterministic jitter in tests.
	rng *rand.Rand
}

// PolicyOption customizes a Policy.
type PolicyOption func(*Policy)

// WithRand replaces the jitter source.
func WithRand(r *rand.Rand) PolicyOption {
	return func(p *Policy) { p.rng = r }
}

// NewPolicy builds a policy, filling unset fields with defaults.
func NewPolicy(maxRetries int, baseDelay, maxDelay time.Duration, jitterFactor float64, retryableStatuses []int, opts ...PolicyOption) *Policy {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if jitterFactor < 0 || jitterFactor > 1 {
		jitterFactor = DefaultJitterFactor
	}
	if retryableStatuses == nil {
		retryableStatuses = DefaultRetryableStatuses()
	}
	statuses := make(map[int]struct{}, len(retryableStatuses))
	for _, s := range retryableStatuses {
		statuses[s] = struct{}{}
	}
	p := &Policy{
		MaxRetries:        maxRetries,
		BaseDelay:         baseDelay,
		MaxDelay:          maxDelay,
		JitterFactor:      jitterFactor,
		RetryableStatuses: statuses,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultPolicy returns the stock policy.
func DefaultPolicy(opts ...PolicyOption) *Policy {
	return NewPolicy(DefaultMaxRetries, DefaultBaseDelay, DefaultMaxDelay,
		DefaultJitterFactor, DefaultRetryableStatuses(), opts...)
}

// DelayFor computes the backoff before retry attempt n (0-based): base
// doubled per attempt, capped at MaxDelay, then jittered by up to
// ±JitterFactor. The result is never negative.
func (p *Policy) DelayFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := p.BaseDelay << uint(attempt)
	if delay <= 0 || delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.JitterFactor > 0 {
		spread := float64(delay) * p.JitterFactor
		delay += time.Duration((p.rng.Float64()*2 - 1) * spread)
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

// Retryable reports whether an HTTP status is in the retryable set.
func (p *Policy) Retryable(status int) bool {
	_, ok := p.RetryableStatuses[status]
	return ok
}
