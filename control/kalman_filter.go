package control

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"go.viam.com/adaptkalman/logging"
)

// FilterMode selects between the plain recursion and the recursion with an adaptation pass.
type FilterMode int

const (
	// ModeLinear uses fixed Q and R.
	ModeLinear FilterMode = iota
	// ModeAdaptive rescales Q or R from a window of innovation statistics before each correction.
	ModeAdaptive
)

func (m FilterMode) String() string {
	if m == ModeAdaptive {
		return "adaptive"
	}
	return "linear"
}

// observation picks the velocity out of [position, velocity].
var observation = mat.NewDense(1, 2, []float64{0, 1})

// Estimate is the outcome of one Step.
type Estimate struct {
	Position float64
	Velocity float64
	// Ratio is the covariance multiplier used for the correction; always 1 for a linear filter.
	Ratio float64
	// Innovation and InnovationCov are y and S before any rescaling.
	Innovation    float64
	InnovationCov float64
}

// A Filter estimates distance traveled and linear velocity from a velocity measurement and an
// acceleration reading. A Filter is not safe for concurrent use; each step depends on the exact
// outcome of the previous one.
type Filter struct {
	mode   FilterMode
	cfg    Config
	params *params
	logger logging.Logger

	x      *mat.VecDense
	p      *mat.SymDense
	window *AdaptationWindow
}

// NewFilter returns a linear or adaptive filter depending on cfg.Adaptive.
func NewFilter(cfg Config, logger logging.Logger) (*Filter, error) {
	p, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewBlankLogger("filter")
	}
	f := &Filter{
		mode:   ModeLinear,
		cfg:    cfg,
		params: p,
		logger: logger,
	}
	if p.adaptive {
		f.mode = ModeAdaptive
		f.window = NewAdaptationWindow(p.kernel, p.size, p.decay, p.r0)
	}
	f.Reset()
	return f, nil
}

// NewLinearFilter returns a filter with fixed covariances, ignoring the adaptation settings of cfg.
func NewLinearFilter(cfg Config, logger logging.Logger) (*Filter, error) {
	cfg.Adaptive = false
	return NewFilter(cfg, logger)
}

// NewAdaptiveFilter returns a filter that adapts cfg.AdaptiveTarget.
func NewAdaptiveFilter(cfg Config, logger logging.Logger) (*Filter, error) {
	cfg.Adaptive = true
	return NewFilter(cfg, logger)
}

// Mode returns whether the filter adapts.
func (f *Filter) Mode() FilterMode {
	return f.mode
}

// Config returns the configuration the filter was built from.
func (f *Filter) Config() Config {
	return f.cfg
}

// DefaultRatio is the ratio reported before any adaptation takes place.
func (f *Filter) DefaultRatio() float64 {
	if f.mode == ModeAdaptive {
		return clamp(f.params.r0, f.params.bounds[0])
	}
	return 1
}

// Window returns the adaptation window, or nil for a linear filter.
func (f *Filter) Window() *AdaptationWindow {
	return f.window
}

// State returns copies of the state vector [position, velocity] and its covariance.
func (f *Filter) State() (*mat.VecDense, *mat.SymDense) {
	p := mat.NewSymDense(2, nil)
	p.CopySym(f.p)
	return mat.VecDenseCopyOf(f.x), p
}

// Reset restores the initial estimate and empties the adaptation window.
func (f *Filter) Reset() {
	f.x = mat.VecDenseCopyOf(f.params.x0)
	p0 := mat.NewSymDense(2, nil)
	p0.CopySym(f.params.p0)
	f.p = p0
	if f.window != nil {
		f.window.Reset()
	}
}

// Step runs one predict/correct cycle over dt seconds. On error the filter is left unchanged.
func (f *Filter) Step(velocity, acceleration, dt float64) (Estimate, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return Estimate{}, NewInvalidSampleError(-1, "time delta must be positive and finite, got %v", dt)
	}
	if math.IsNaN(velocity) || math.IsInf(velocity, 0) {
		return Estimate{}, NewInvalidSampleError(-1, "velocity must be finite, got %v", velocity)
	}
	if math.IsNaN(acceleration) || math.IsInf(acceleration, 0) {
		return Estimate{}, NewInvalidSampleError(-1, "acceleration must be finite, got %v", acceleration)
	}

	z := f.params.alpha * velocity
	xPrior, pPrior := f.predict(acceleration, dt, f.params.q)
	y, s := innovation(xPrior, pPrior, z, f.params.r+f.params.floor)
	if !(s > 0) {
		return Estimate{}, &SingularCovarianceError{S: s}
	}
	est := Estimate{Ratio: 1, Innovation: y, InnovationCov: s}

	var window *AdaptationWindow
	if f.mode == ModeAdaptive {
		window = f.window.clone()
		r := window.Push(y * y / s)
		xPrior, pPrior, y, s, est.Ratio = f.adapt(r, acceleration, dt, xPrior, pPrior, z)
		if !(s > 0) {
			return Estimate{}, &SingularCovarianceError{S: s}
		}
	}

	x, p := correct(xPrior, pPrior, y, s)

	f.x, f.p = x, p
	if window != nil {
		if !f.window.Full() && window.Full() {
			f.logger.Debugw("adaptation window warm", "size", window.Size(), "kernel", window.Kernel().String())
		}
		f.window = window
	}
	est.Position = x.AtVec(0)
	est.Velocity = x.AtVec(1)
	return est, nil
}

// predict returns x⁻ = F·x + B·β·a and P⁻ = F·P·Fᵗ + Q.
func (f *Filter) predict(acceleration, dt float64, q mat.Symmetric) (*mat.VecDense, *mat.SymDense) {
	trans := mat.NewDense(2, 2, []float64{1, dt, 0, 1})
	ctrl := mat.NewVecDense(2, []float64{dt * dt / 2, dt})

	var xPrior mat.VecDense
	xPrior.MulVec(trans, f.x)
	xPrior.AddScaledVec(&xPrior, f.params.beta*acceleration, ctrl)

	var fp, fpf mat.Dense
	fp.Mul(trans, f.p)
	fpf.Mul(&fp, trans.T())
	fpf.Add(&fpf, q)
	return &xPrior, symmetrize(&fpf)
}

// innovation returns y = z - H·x⁻ and S = H·P⁻·Hᵗ + r.
func innovation(xPrior *mat.VecDense, pPrior mat.Symmetric, z, r float64) (float64, float64) {
	var hx mat.VecDense
	hx.MulVec(observation, xPrior)

	var hp, hph mat.Dense
	hp.Mul(observation, pPrior)
	hph.Mul(&hp, observation.T())
	return z - hx.AtVec(0), hph.At(0, 0) + r
}

// correct returns x = x⁻ + K·y and P = (I - K·H)·P⁻ with K = P⁻·Hᵗ/S.
func correct(xPrior *mat.VecDense, pPrior *mat.SymDense, y, s float64) (*mat.VecDense, *mat.SymDense) {
	var gain mat.Dense
	gain.Mul(pPrior, observation.T())
	gain.Scale(1/s, &gain)

	x := mat.VecDenseCopyOf(xPrior)
	x.AddScaledVec(x, y, gain.ColView(0))

	var kh, ikh, p mat.Dense
	kh.Mul(&gain, observation)
	ikh.Sub(eye2, &kh)
	p.Mul(&ikh, pPrior)
	return x, symmetrize(&p)
}

var eye2 = mat.NewDiagDense(2, []float64{1, 1})

// symmetrize returns (m + mᵗ)/2.
func symmetrize(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return sym
}

func clamp(v float64, bounds [2]float64) float64 {
	return math.Min(math.Max(v, bounds[0]), bounds[1])
}
