package tensor

import (
	"math"
)

// AddTo writes a[i] + b[i] into dst for every i < len(dst).
func AddTo(dst, a, b []float32) {
	a = a[:len(dst)]
	b = b[:len(dst)]
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
}

// Relu writes max(0, src[i]) into dst.
func Relu(dst, src []float32) {
	src = src[:len(dst)]
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		} else {
			dst[i] = 0
		}
	}
}

// MeanStdDev returns the mean and the population standard deviation of x.
// Sums are accumulated in float64.
func MeanStdDev(x []float32) (mean, stddev float32) {
	if len(x) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range x {
		sum += float64(v)
	}
	m := sum / float64(len(x))
	var sq float64
	for _, v := range x {
		d := float64(v) - m
		sq += d * d
	}
	return float32(m), float32(math.Sqrt(sq / float64(len(x))))
}

// MeanNormalize writes alpha*(src[i]-mean)/stddev + beta into dst.
func MeanNormalize(dst, src []float32, mean, stddev, alpha, beta float32) {
	src = src[:len(dst)]
	scale := alpha / stddev
	for i, v := range src {
		dst[i] = (v-mean)*scale + beta
	}
}

// Repeat fills dst with consecutive copies of pattern. len(dst) must be a
// multiple of len(pattern).
func Repeat(dst, pattern []float32) {
	if len(pattern) == 0 {
		return
	}
	for off := 0; off+len(pattern) <= len(dst); off += len(pattern) {
		copy(dst[off:], pattern)
	}
}
