package fetcher

import (
	"math/rand"
	"time"
)

// BackoffPolicy maps a retry attempt number to a delay. Kept as a plain
// value so retry timing can be tested without sleeping.
type BackoffPolicy struct {
	Base           time.Duration
	Max            time.Duration
	JitterFraction float64
}

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:           2 * time.Second,
		Max:            30 * time.Second,
		JitterFraction: 0.25,
	}
}

// Delay returns the wait before retry number attempt (1-based): exponential
// growth from Base, capped at Max, plus up to JitterFraction of random jitter.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.Max {
			delay = p.Max
			break
		}
	}
	if delay > p.Max {
		delay = p.Max
	}

	if p.JitterFraction > 0 {
		jitter := time.Duration(rand.Float64() * p.JitterFraction * float64(delay))
		delay += jitter
	}

	return delay
}
