package control

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// WindowKernel weights the buffered innovation statistics by recency.
type WindowKernel int

const (
	// SigmoidKernel weighs sample i (0 = most recent) by 1/(1+exp(i-size/2)). It flattens
	// single-sample spikes.
	SigmoidKernel WindowKernel = iota
	// ExponentialKernel weighs sample i by decay^i and reacts quickly to regime changes.
	ExponentialKernel
)

// ParseWindowKernel parses "sig"/"sigmoid" and "exp"/"exponential".
func ParseWindowKernel(name string) (WindowKernel, error) {
	switch strings.ToLower(name) {
	case "sig", "sigmoid":
		return SigmoidKernel, nil
	case "exp", "exponential":
		return ExponentialKernel, nil
	}
	return SigmoidKernel, newConfigurationError("window_kernel", "unknown kernel %q, expected sig or exp", name)
}

func (k WindowKernel) String() string {
	switch k {
	case SigmoidKernel:
		return "sig"
	case ExponentialKernel:
		return "exp"
	}
	return "unknown"
}

// Weight returns the weight of the i-th most recent of size samples.
func (k WindowKernel) Weight(i, size int, decay float64) float64 {
	switch k {
	case ExponentialKernel:
		return math.Pow(decay, float64(i))
	default:
		return 1 / (1 + math.Exp(float64(i)-float64(size)/2))
	}
}

// AdaptationWindow is a fixed capacity FIFO of normalized innovations (y²/S) that reduces them to
// a kernel weighted mean. Until it holds size values its ratio is the default r0. It does not
// clamp; bounds are applied by the filter.
type AdaptationWindow struct {
	kernel WindowKernel
	size   int
	r0     float64

	weights []float64
	// ring buffer; head is the slot the next value is written to.
	buf   []float64
	head  int
	count int

	// scratch holds values ordered newest first.
	scratch []float64
}

// NewAdaptationWindow returns an empty window. decay is only used by the exponential kernel.
func NewAdaptationWindow(kernel WindowKernel, size int, decay, r0 float64) *AdaptationWindow {
	if size < 1 {
		size = 1
	}
	weights := make([]float64, size)
	for i := range weights {
		weights[i] = kernel.Weight(i, size, decay)
	}
	return &AdaptationWindow{
		kernel:  kernel,
		size:    size,
		r0:      r0,
		weights: weights,
		buf:     make([]float64, size),
		scratch: make([]float64, size),
	}
}

// Push adds eta, evicting the oldest value when full, and returns the resulting ratio. Negative
// and NaN values are not valid normalized innovations and are ignored.
func (w *AdaptationWindow) Push(eta float64) float64 {
	if eta < 0 || math.IsNaN(eta) {
		return w.Ratio()
	}
	w.buf[w.head] = eta
	w.head = (w.head + 1) % w.size
	if w.count < w.size {
		w.count++
	}
	return w.Ratio()
}

// Ratio returns the weighted mean of the buffered values relative to the reference magnitude 1,
// or the default ratio while the window is still filling.
func (w *AdaptationWindow) Ratio() float64 {
	if w.count < w.size {
		return w.r0
	}
	for i := range w.scratch {
		w.scratch[i] = w.buf[(w.head-1-i+2*w.size)%w.size]
	}
	const reference = 1.0
	return floats.Dot(w.weights, w.scratch) / floats.Sum(w.weights) / reference
}

// Len returns the number of buffered values.
func (w *AdaptationWindow) Len() int {
	return w.count
}

// Size returns the capacity.
func (w *AdaptationWindow) Size() int {
	return w.size
}

// Full returns whether the warm-up period is over.
func (w *AdaptationWindow) Full() bool {
	return w.count == w.size
}

// Kernel returns the weighting kernel.
func (w *AdaptationWindow) Kernel() WindowKernel {
	return w.kernel
}

// Reset empties the window.
func (w *AdaptationWindow) Reset() {
	for i := range w.buf {
		w.buf[i] = 0
	}
	w.head = 0
	w.count = 0
}

func (w *AdaptationWindow) clone() *AdaptationWindow {
	c := *w
	c.buf = append([]float64(nil), w.buf...)
	c.scratch = make([]float64, w.size)
	return &c
}
