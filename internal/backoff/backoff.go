// Package backoff computes jittered exponential delays for
// reconnection and retry scheduling.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Defaults for the dashboard connection policy: 1s doubling up to 30s,
// with up to 1s of uniform jitter added before the cap is applied.
const (
	DefaultBase   = 1 * time.Second
	DefaultMax    = 30 * time.Second
	DefaultJitter = 1 * time.Second
)

// Policy computes the delay before a given attempt. The random source
// is injectable so tests can substitute a deterministic generator.
type Policy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration

	// Rand returns a uniform value in [0, 1). Nil means math/rand/v2.
	Rand func() float64
}

// Default returns a Policy with the standard connection parameters.
func Default() *Policy {
	return &Policy{Base: DefaultBase, Max: DefaultMax, Jitter: DefaultJitter}
}

// Delay returns the delay before the given zero-based attempt:
// min(Base·2^attempt + jitter, Max), jitter uniform in [0, Jitter).
// The cap is applied after jitter, so the result never exceeds Max.
// Negative attempts are undefined.
func (p *Policy) Delay(attempt int) time.Duration {
	random := p.Rand
	if random == nil {
		random = rand.Float64
	}

	d := float64(p.Base) * math.Pow(2, float64(attempt))
	d += random() * float64(p.Jitter)
	if d > float64(p.Max) {
		d = float64(p.Max)
	}
	return time.Duration(d)
}
