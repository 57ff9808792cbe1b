package worker

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff doubles base per attempt up to ceiling and adds up to
// 250ms of jitter. attempt=0 => base.
func ExponentialBackoff(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if delay > ceiling || delay <= 0 {
		delay = ceiling
	}

	return delay + time.Duration(rand.Intn(250))*time.Millisecond
}
