package main

import (
	"fmt"
	"math"
)

// srgbToLinear converts one sRGB channel in [0, 1] to linear light.
func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// linearizeRamp converts a grey ramp of size steps and returns the mean linear
// value. It is the unit of work the run command hands to the pool.
func linearizeRamp(size int) (float64, error) {
	if size < 2 {
		return 0, fmt.Errorf("ramp needs at least 2 steps, got %d", size)
	}
	var sum float64
	for i := range size {
		sum += srgbToLinear(float64(i) / float64(size-1))
	}
	return sum / float64(size), nil
}
