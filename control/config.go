package control

import (
	"math"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// AdaptiveTarget names the covariance rescaled by the adaptation ratio.
type AdaptiveTarget string

const (
	// TargetQ rescales the process noise covariance.
	TargetQ AdaptiveTarget = "Q"
	// TargetR rescales the measurement noise covariance.
	TargetR AdaptiveTarget = "R"
)

const (
	defaultDecay        = 0.5
	defaultRatio        = 1.0
	defaultWindowSize   = 5
	psdTolerance        = 1e-12
	defaultCovRatio     = 1. / 3
	defaultMeasurementR = 1.0
)

// Config configures a Filter. It is read once by NewFilter and never mutated afterwards.
type Config struct {
	// Alpha scales the velocity measurement, Beta scales the acceleration control input.
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`

	// Q is the 2x2 process noise covariance. When omitted it is Ratio*R*I.
	Q     [][]float64 `json:"q,omitempty"`
	R     float64     `json:"r"`
	Ratio float64     `json:"ratio,omitempty"`

	Adaptive       bool           `json:"adaptive"`
	AdaptiveTarget AdaptiveTarget `json:"adaptive_target,omitempty"`
	WindowKernel   string         `json:"window_kernel,omitempty"`
	WindowSize     int            `json:"window_size,omitempty"`
	Decay          float64        `json:"decay,omitempty"`
	DefaultRatio   float64        `json:"default_ratio,omitempty"`
	// BoundMatrix row i holds [low, high] for the multiplier of diagonal element i of the adaptive
	// target. Only row 0 applies to R.
	BoundMatrix [][]float64 `json:"bound_matrix,omitempty"`

	InitialState      []float64   `json:"initial_state,omitempty"`
	InitialCovariance [][]float64 `json:"initial_covariance,omitempty"`
	// CovarianceFloor is added to the innovation covariance before it is inverted.
	CovarianceFloor float64 `json:"covariance_floor,omitempty"`
}

// DefaultConfig returns a linear filter with unit scale factors and a 1/3 covariance ratio.
func DefaultConfig() Config {
	return Config{
		Alpha: 1,
		Beta:  1,
		R:     defaultMeasurementR,
		Ratio: defaultCovRatio,
	}
}

// params is the resolved, validated form of a Config.
type params struct {
	alpha, beta float64
	q           *mat.SymDense
	r           float64
	floor       float64

	adaptive bool
	target   AdaptiveTarget
	kernel   WindowKernel
	size     int
	decay    float64
	r0       float64
	bounds   [2][2]float64

	x0 *mat.VecDense
	p0 *mat.SymDense
}

// Validate returns every problem with the config, combined into one error. Each is a
// *ConfigurationError.
func (cfg Config) Validate() error {
	_, err := cfg.resolve()
	return err
}

func (cfg Config) resolve() (*params, error) {
	var errs error
	p := &params{
		alpha:    cfg.Alpha,
		beta:     cfg.Beta,
		r:        cfg.R,
		floor:    cfg.CovarianceFloor,
		adaptive: cfg.Adaptive,
		target:   cfg.AdaptiveTarget,
		size:     cfg.WindowSize,
		decay:    cfg.Decay,
		r0:       cfg.DefaultRatio,
	}

	if !(cfg.Alpha > 0) || math.IsInf(cfg.Alpha, 0) {
		errs = multierr.Append(errs, newConfigurationError("alpha", "must be a positive number, got %v", cfg.Alpha))
	}
	if !(cfg.Beta > 0) || math.IsInf(cfg.Beta, 0) {
		errs = multierr.Append(errs, newConfigurationError("beta", "must be a positive number, got %v", cfg.Beta))
	}
	if !(cfg.R > 0) || math.IsInf(cfg.R, 0) {
		errs = multierr.Append(errs, newConfigurationError("r", "must be a positive number, got %v", cfg.R))
	}
	if cfg.CovarianceFloor < 0 || math.IsNaN(cfg.CovarianceFloor) {
		errs = multierr.Append(errs, newConfigurationError("covariance_floor", "must not be negative"))
	}

	if cfg.Q == nil {
		if !(cfg.Ratio > 0) {
			errs = multierr.Append(errs, newConfigurationError("q", "missing, and no positive ratio to derive it from"))
		} else {
			v := cfg.Ratio * cfg.R
			p.q = mat.NewSymDense(2, []float64{v, 0, 0, v})
		}
	} else {
		q, err := covariance("q", cfg.Q)
		errs = multierr.Append(errs, err)
		p.q = q
	}

	if cfg.InitialState == nil {
		p.x0 = mat.NewVecDense(2, nil)
	} else if len(cfg.InitialState) != 2 {
		errs = multierr.Append(errs, newConfigurationError("initial_state", "expected 2 elements, got %d", len(cfg.InitialState)))
	} else {
		p.x0 = mat.NewVecDense(2, []float64{cfg.InitialState[0], cfg.InitialState[1]})
	}

	if cfg.InitialCovariance == nil {
		p.p0 = mat.NewSymDense(2, nil)
	} else {
		p0, err := covariance("initial_covariance", cfg.InitialCovariance)
		errs = multierr.Append(errs, err)
		p.p0 = p0
	}

	if cfg.Adaptive {
		errs = multierr.Append(errs, cfg.resolveAdaptation(p))
	}

	if errs != nil {
		return nil, errs
	}
	return p, nil
}

func (cfg Config) resolveAdaptation(p *params) error {
	var errs error
	switch p.target {
	case "":
		p.target = TargetR
	case TargetQ, TargetR:
	default:
		errs = multierr.Append(errs, newConfigurationError("adaptive_target", "unknown target %q, expected Q or R", p.target))
	}

	kernelName := cfg.WindowKernel
	if kernelName == "" {
		kernelName = SigmoidKernel.String()
	}
	kernel, err := ParseWindowKernel(kernelName)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	p.kernel = kernel

	if p.size == 0 {
		p.size = defaultWindowSize
	}
	if p.size < 1 {
		errs = multierr.Append(errs, newConfigurationError("window_size", "must be at least 1, got %d", p.size))
	}
	if p.decay == 0 {
		p.decay = defaultDecay
	}
	if kernel == ExponentialKernel && !(p.decay > 0 && p.decay < 1) {
		errs = multierr.Append(errs, newConfigurationError("decay", "must be in (0, 1), got %v", p.decay))
	}
	if p.r0 == 0 {
		p.r0 = defaultRatio
	}
	if p.r0 < 0 || math.IsNaN(p.r0) {
		errs = multierr.Append(errs, newConfigurationError("default_ratio", "must not be negative"))
	}

	p.bounds = [2][2]float64{{0, math.Inf(1)}, {0, math.Inf(1)}}
	if cfg.BoundMatrix != nil {
		if len(cfg.BoundMatrix) != 2 || len(cfg.BoundMatrix[0]) != 2 || len(cfg.BoundMatrix[1]) != 2 {
			return multierr.Append(errs, newConfigurationError("bound_matrix", "must be 2x2"))
		}
		for i, row := range cfg.BoundMatrix {
			if row[0] < 0 || row[0] > row[1] || math.IsNaN(row[0]) || math.IsNaN(row[1]) {
				errs = multierr.Append(errs, newConfigurationError("bound_matrix",
					"row %d must satisfy 0 <= low <= high, got [%v, %v]", i, row[0], row[1]))
				continue
			}
			p.bounds[i] = [2]float64{row[0], row[1]}
		}
	}
	return errs
}

// covariance checks that rows is a 2x2 symmetric positive semi-definite matrix.
func covariance(field string, rows [][]float64) (*mat.SymDense, error) {
	if len(rows) != 2 || len(rows[0]) != 2 || len(rows[1]) != 2 {
		return nil, newConfigurationError(field, "must be 2x2")
	}
	for _, row := range rows {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, newConfigurationError(field, "must be finite")
			}
		}
	}
	if rows[0][1] != rows[1][0] {
		return nil, newConfigurationError(field, "must be symmetric")
	}
	sym := mat.NewSymDense(2, []float64{rows[0][0], rows[0][1], rows[1][0], rows[1][1]})
	if minEigenvalue(sym) < -psdTolerance {
		return nil, newConfigurationError(field, "must be positive semi-definite")
	}
	return sym, nil
}

func minEigenvalue(m mat.Symmetric) float64 {
	var eig mat.EigenSym
	if ok := eig.Factorize(m, false); !ok {
		return math.NaN()
	}
	// Values are returned in ascending order.
	return eig.Values(nil)[0]
}
