package utils

import "gonum.org/v1/gonum/floats"

// RollingMean accumulates the most recent samples up to a fixed capacity
// and reports their arithmetic mean. Once full, every new sample evicts
// the oldest one.
type RollingMean struct {
	data []float64
	pos  int
	n    int
}

// NewRollingMean returns an empty accumulator holding up to capacity
// samples. Capacity must be at least 1.
func NewRollingMean(capacity int) *RollingMean {
	return &RollingMean{data: make([]float64, capacity)}
}

func (rm *RollingMean) Capacity() int {
	return len(rm.data)
}

// Size returns how many samples are currently retained.
func (rm *RollingMean) Size() int {
	return rm.n
}

// Add appends a sample, evicting the oldest once the window is full.
func (rm *RollingMean) Add(x float64) {
	rm.data[rm.pos] = x
	rm.pos++
	if rm.pos >= len(rm.data) {
		rm.pos = 0
	}
	if rm.n < len(rm.data) {
		rm.n++
	}
}

// Mean returns the arithmetic mean of the retained samples, or 0 when no
// samples have been accumulated yet.
func (rm *RollingMean) Mean() float64 {
	if rm.n == 0 {
		return 0
	}
	return floats.Sum(rm.data[:rm.n]) / float64(rm.n)
}
