// Package sim synthesizes velocity, acceleration and yaw rate profiles of a robot driving a
// sequence of straight segments, for regression runs against a known ground truth.
package sim

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat/distuv"

	"go.viam.com/adaptkalman/estimator"
)

// Config describes a simulated run. Zero fields take the defaults of DefaultConfig.
type Config struct {
	N            int     `json:"n"`
	SimTime      float64 `json:"sim_time"`
	PeakVelocity float64 `json:"peak_velocity"`
	// Segments is the number of start-drive-stop segments.
	Segments int `json:"segments"`
	// TurnRate is the constant yaw rate in rad/s after t = 0.
	TurnRate float64 `json:"turn_rate"`

	StillNoise       float64 `json:"still_noise"`
	MovingNoiseCoeff float64 `json:"moving_noise_coeff"`
	GaussSigma       float64 `json:"gauss_sigma"`
	GradientGain     float64 `json:"gradient_gain"`
	Seed             uint64  `json:"seed"`
	// Noiseless disables both noise terms.
	Noiseless bool `json:"noiseless"`
}

const (
	circleSegments      = 8
	defaultN            = 1600
	defaultSimTime      = 5.0
	defaultPeakVelocity = 0.14
	defaultStillNoise   = 0.05
	defaultMovingCoeff  = 1.0
	defaultGaussSigma   = 0.01
	defaultGradientGain = 25.0
	movingThreshold     = 0.01
)

// DefaultConfig returns the circle run: 1600 samples over 5 s at 0.14 m/s peak.
func DefaultConfig() Config {
	return Config{
		N:                defaultN,
		SimTime:          defaultSimTime,
		PeakVelocity:     defaultPeakVelocity,
		Segments:         circleSegments,
		TurnRate:         2 * math.Pi / defaultSimTime,
		StillNoise:       defaultStillNoise,
		MovingNoiseCoeff: defaultMovingCoeff,
		GaussSigma:       defaultGaussSigma,
		GradientGain:     defaultGradientGain,
	}
}

func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.N == 0 {
		cfg.N = def.N
	}
	if cfg.SimTime == 0 {
		cfg.SimTime = def.SimTime
	}
	if cfg.PeakVelocity == 0 {
		cfg.PeakVelocity = def.PeakVelocity
	}
	if cfg.Segments == 0 {
		cfg.Segments = def.Segments
	}
	if cfg.StillNoise == 0 {
		cfg.StillNoise = def.StillNoise
	}
	if cfg.MovingNoiseCoeff == 0 {
		cfg.MovingNoiseCoeff = def.MovingNoiseCoeff
	}
	if cfg.GaussSigma == 0 {
		cfg.GaussSigma = def.GaussSigma
	}
	if cfg.GradientGain == 0 {
		cfg.GradientGain = def.GradientGain
	}
	return cfg
}

// Validate checks the config after defaults are applied.
func (cfg Config) Validate() error {
	cfg = cfg.withDefaults()
	switch {
	case cfg.N < 2:
		return errors.Errorf("need at least 2 samples, got %d", cfg.N)
	case cfg.SimTime <= 0:
		return errors.Errorf("sim_time must be positive, got %v", cfg.SimTime)
	case cfg.Segments < 1 || cfg.Segments > cfg.N:
		return errors.Errorf("segments must be in [1, %d], got %d", cfg.N, cfg.Segments)
	case cfg.StillNoise < 0 || cfg.MovingNoiseCoeff < 0 || cfg.GaussSigma <= 0:
		return errors.New("noise parameters must not be negative and gauss_sigma must be positive")
	}
	return nil
}

// Trajectory is a simulated run. Velocity is the noise free ground truth.
type Trajectory struct {
	T            []float64
	Velocity     []float64
	Acceleration []float64
	YawRate      []float64
}

// Circle drives cfg.Segments (default 8) segments while turning a full circle over the run.
func Circle(cfg Config) (*Trajectory, error) {
	if cfg.TurnRate == 0 {
		simTime := cfg.SimTime
		if simTime == 0 {
			simTime = defaultSimTime
		}
		cfg.TurnRate = 2 * math.Pi / simTime
	}
	return Generate(cfg)
}

// Line drives a single straight segment.
func Line(cfg Config) (*Trajectory, error) {
	cfg.Segments = 1
	cfg.TurnRate = 0
	return Generate(cfg)
}

// Generate synthesizes the trajectory described by cfg.
func Generate(cfg Config) (*Trajectory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	tr := &Trajectory{
		T:        make([]float64, cfg.N),
		Velocity: make([]float64, cfg.N),
		YawRate:  make([]float64, cfg.N),
	}
	floats.Span(tr.T, 0, cfg.SimTime)

	perSegment := cfg.N / cfg.Segments
	for i := 0; i < cfg.Segments; i++ {
		tr.segment(i*perSegment, (i+1)*perSegment, cfg.PeakVelocity)
	}
	for i, t := range tr.T {
		if t > 0 {
			tr.YawRate[i] = cfg.TurnRate
		}
	}
	tr.Acceleration = tr.acceleration(cfg)
	return tr, nil
}

// segment holds still for the first and last 10% of [begin, end) and drives at peak in between.
func (tr *Trajectory) segment(begin, end int, peak float64) {
	n := end - begin
	tStart := tr.T[begin+int(0.1*float64(n))]
	tStop := tr.T[begin+int(0.9*float64(n))]
	for i := begin; i < end; i++ {
		switch t := tr.T[i]; {
		case t > tStop:
			tr.Velocity[i] = 0
		case t > tStart:
			tr.Velocity[i] = peak
		default:
			tr.Velocity[i] = 0
		}
	}
}

// acceleration differentiates a gaussian smoothed velocity and adds sensor noise that grows with
// speed.
func (tr *Trajectory) acceleration(cfg Config) []float64 {
	n := len(tr.T)
	kernel := make([]float64, n)
	floats.Span(kernel, -cfg.SimTime/2, cfg.SimTime/2)
	for i, x := range kernel {
		kernel[i] = math.Exp(-math.Pow(x/cfg.GaussSigma, 2) / 2)
	}
	floats.Scale(1/floats.Sum(kernel), kernel)

	accel := gradient(convolveSame(tr.Velocity, kernel))
	floats.Scale(cfg.GradientGain, accel)
	if cfg.Noiseless {
		return accel
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	still := distuv.Normal{Mu: 0, Sigma: cfg.StillNoise, Src: src}
	for i := range accel {
		accel[i] += still.Rand()
	}
	for i, v := range tr.Velocity {
		if math.Abs(v) < movingThreshold {
			continue
		}
		moving := distuv.Normal{Mu: 0, Sigma: math.Abs(v) * cfg.MovingNoiseCoeff, Src: src}
		accel[i] += moving.Rand()
	}
	return accel
}

// Samples returns the trajectory as estimator input.
func (tr *Trajectory) Samples() []estimator.Sample {
	samples := make([]estimator.Sample, len(tr.T))
	for i := range samples {
		samples[i] = estimator.Sample{
			T:            tr.T[i],
			Velocity:     tr.Velocity[i],
			Acceleration: tr.Acceleration[i],
			YawRate:      tr.YawRate[i],
		}
	}
	return samples
}

// Distance integrates the ground truth velocity over the whole run.
func (tr *Trajectory) Distance() float64 {
	return integrate.Trapezoidal(tr.T, tr.Velocity)
}

// CumulativeDistance returns the ground truth distance at every sample.
func (tr *Trajectory) CumulativeDistance() []float64 {
	out := make([]float64, len(tr.T))
	for i := 1; i < len(out); i++ {
		out[i] = out[i-1] + (tr.T[i]-tr.T[i-1])*(tr.Velocity[i]+tr.Velocity[i-1])/2
	}
	return out
}

// Heading integrates the yaw rate into a heading in radians wrapped to [0, 2π).
func (tr *Trajectory) Heading() []float64 {
	out := make([]float64, len(tr.T))
	var psi float64
	for i := 1; i < len(out); i++ {
		psi += (tr.T[i] - tr.T[i-1]) * (tr.YawRate[i] + tr.YawRate[i-1]) / 2
		out[i] = math.Mod(psi, 2*math.Pi)
	}
	return out
}
