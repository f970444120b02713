package session

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// newRegistrationBackoff creates an exponential backoff for the
// registration flow: 1s → 60s, multiplier 2x, ±20% jitter.
func newRegistrationBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 60 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.2
	b.Reset()
	return b
}
