package recovery

import (
	"math/rand/v2"
	"time"
)

// Clock abstracts time so retry scheduling can be driven by tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// JitterSource returns samples from [0, 1).
type JitterSource func() float64

func defaultJitter() float64 {
	return rand.Float64()
}
