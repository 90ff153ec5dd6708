package sim

// convolveSame returns the central len(x) samples of the full discrete convolution of x and k.
func convolveSame(x, k []float64) []float64 {
	n, m := len(x), len(k)
	offset := (m - 1) / 2
	out := make([]float64, n)
	for i := range out {
		full := i + offset
		var sum float64
		jLo := full - m + 1
		if jLo < 0 {
			jLo = 0
		}
		jHi := full
		if jHi > n-1 {
			jHi = n - 1
		}
		for j := jLo; j <= jHi; j++ {
			sum += x[j] * k[full-j]
		}
		out[i] = sum
	}
	return out
}

// gradient returns central differences of y with unit spacing, one-sided at the edges.
func gradient(y []float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	out[0] = y[1] - y[0]
	out[n-1] = y[n-1] - y[n-2]
	for i := 1; i < n-1; i++ {
		out[i] = (y[i+1] - y[i-1]) / 2
	}
	return out
}
