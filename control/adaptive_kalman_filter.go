package control

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// adapt rescales the adaptive target by the window ratio r, clamped per diagonal element by the
// bound matrix, and recomputes the quantities the correction needs. It returns the multiplier
// applied to diagonal element 0.
func (f *Filter) adapt(
	r, acceleration, dt float64,
	xPrior *mat.VecDense,
	pPrior *mat.SymDense,
	z float64,
) (*mat.VecDense, *mat.SymDense, float64, float64, float64) {
	scale := [2]float64{clamp(r, f.params.bounds[0]), clamp(r, f.params.bounds[1])}

	switch f.params.target {
	case TargetQ:
		xPrior, pPrior = f.predict(acceleration, dt, scaleDiagonal(f.params.q, scale))
		y, s := innovation(xPrior, pPrior, z, f.params.r+f.params.floor)
		return xPrior, pPrior, y, s, scale[0]
	default:
		y, s := innovation(xPrior, pPrior, z, scale[0]*f.params.r+f.params.floor)
		return xPrior, pPrior, y, s, scale[0]
	}
}

// scaleDiagonal returns D·Q·D with D = diag(√scale), which multiplies diagonal element i by
// scale[i] and keeps the result positive semi-definite.
func scaleDiagonal(q mat.Symmetric, scale [2]float64) *mat.SymDense {
	d := mat.NewDiagDense(2, []float64{math.Sqrt(scale[0]), math.Sqrt(scale[1])})
	var dq, dqd mat.Dense
	dq.Mul(d, q)
	dqd.Mul(&dq, d)
	return symmetrize(&dqd)
}
