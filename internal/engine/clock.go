package engine

import "time"

// Clock supplies the engine's only time source: one read per operation,
// unix seconds, never decreasing between successive reads for a pool.
type Clock interface {
	Now() int64
}

type realClock struct{}

func (realClock) Now() int64 {
	return time.Now().Unix()
}

// RealClock returns a Clock backed by the system clock.
func RealClock() Clock {
	return realClock{}
}
