package queue

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff is the redelivery delay schedule: Base * Multiplier^(attempt-1), capped at Max.
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

// DefaultBackoff is base 2s, doubling, capped at one minute.
var DefaultBackoff = Backoff{Base: 2 * time.Second, Multiplier: 2, Max: time.Minute}

// Delay returns the wait before the attempt after the given (1-based) failed attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.Base
	eb.Multiplier = b.Multiplier
	eb.MaxInterval = b.Max
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()

	d := eb.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = eb.NextBackOff()
	}
	return d
}
