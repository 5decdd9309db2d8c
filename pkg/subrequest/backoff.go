package subrequest

import (
	"math/rand"
	"time"
)

// fullJitterBackOff implements backoff.BackOff with the policy from
// spec.md §4.2: delay = base * 2^attempt, capped at maxBackoff, then full
// jitter in [0, delay). cenkalti/backoff/v4's built-in ExponentialBackOff
// jitters around the computed delay rather than from zero, so the policy
// is hand-implemented against its BackOff interface and driven by the
// library's Retry/WithMaxRetries/WithContext machinery.
type fullJitterBackOff struct {
	base    time.Duration
	max     time.Duration
	attempt int
}

func newFullJitterBackOff(base, max time.Duration) *fullJitterBackOff {
	return &fullJitterBackOff{base: base, max: max}
}

func (b *fullJitterBackOff) Reset() { b.attempt = 0 }

func (b *fullJitterBackOff) NextBackOff() time.Duration {
	delay := b.base * (1 << uint(b.attempt))
	if delay <= 0 || delay > b.max {
		delay = b.max
	}
	b.attempt++
	if delay <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(delay)))
}
