package control

import (
	"math"
	"math/rand/v2"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/adaptkalman/logging"
)

func requireSymmetricPSD(t *testing.T, p *mat.SymDense) {
	t.Helper()
	test.That(t, p.At(0, 1), test.ShouldEqual, p.At(1, 0))
	test.That(t, minEigenvalue(p), test.ShouldBeGreaterThanOrEqualTo, -1e-9)
}

func TestLinearStepCovarianceStaysPSD(t *testing.T) {
	logger := logging.NewTestLogger(t)
	rng := rand.New(rand.NewPCG(1, 2))
	for _, cfg := range []Config{
		DefaultConfig(),
		{Alpha: 1.1, Beta: 0.9, R: 0.04, Q: [][]float64{{0.00004, 0}, {0, 0.02}}},
		{Alpha: 1, Beta: 1, R: 1e-6, Q: [][]float64{{2, 0.5}, {0.5, 1}}, InitialCovariance: [][]float64{{10, 0}, {0, 10}}},
	} {
		f, err := NewFilter(cfg, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, f.Mode(), test.ShouldEqual, ModeLinear)
		for i := 0; i < 500; i++ {
			dt := 0.001 + rng.Float64()*0.05
			est, err := f.Step(rng.NormFloat64(), rng.NormFloat64()*3, dt)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, est.Ratio, test.ShouldEqual, 1)
			_, p := f.State()
			requireSymmetricPSD(t, p)
		}
	}
}

func TestZeroInputNoDrift(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialState = []float64{0.25, 0}
	f, err := NewFilter(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 10000; i++ {
		_, err := f.Step(0, 0, 0.01)
		test.That(t, err, test.ShouldBeNil)
	}
	x, _ := f.State()
	test.That(t, x.AtVec(0), test.ShouldAlmostEqual, 0.25, 1e-12)
	test.That(t, x.AtVec(1), test.ShouldAlmostEqual, 0, 1e-12)
}

func TestConstantAccelerationTracking(t *testing.T) {
	const (
		a0 = 0.8
		dt = 0.02
		n  = 250
	)
	f, err := NewFilter(DefaultConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	var est Estimate
	for k := 1; k <= n; k++ {
		est, err = f.Step(a0*dt*float64(k), a0, dt)
		test.That(t, err, test.ShouldBeNil)
	}
	tEnd := dt * n
	test.That(t, est.Velocity, test.ShouldAlmostEqual, a0*dt*n, 1e-9)
	test.That(t, est.Position, test.ShouldAlmostEqual, a0*tEnd*tEnd/2, 1e-9)
}

func TestConvergenceFromWrongInitialState(t *testing.T) {
	const (
		a0 = -0.3
		dt = 0.01
	)
	cfg := DefaultConfig()
	cfg.InitialState = []float64{0, 1}
	cfg.InitialCovariance = [][]float64{{1, 0}, {0, 1}}
	f, err := NewFilter(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	est, err := f.Step(a0*dt, a0, dt)
	test.That(t, err, test.ShouldBeNil)
	firstErr := math.Abs(est.Velocity - a0*dt)
	for k := 2; k <= 200; k++ {
		est, err = f.Step(a0*dt*float64(k), a0, dt)
		test.That(t, err, test.ShouldBeNil)
	}
	lastErr := math.Abs(est.Velocity - a0*dt*200)
	test.That(t, lastErr, test.ShouldBeLessThan, firstErr)
	test.That(t, lastErr, test.ShouldBeLessThan, 1e-6)
}

func TestScaleFactors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Alpha = 2
	cfg.Beta = 0.5
	f, err := NewFilter(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	// x⁻ velocity = 0.5*4*0.1 = 0.2; z = 2*0.1 = 0.2; no innovation with P0 = 0.
	est, err := f.Step(0.1, 4, 0.1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, est.Innovation, test.ShouldAlmostEqual, 0, 1e-15)
	test.That(t, est.Velocity, test.ShouldAlmostEqual, 0.2, 1e-15)
	test.That(t, est.Position, test.ShouldAlmostEqual, 0.5*4*0.01/2, 1e-15)
}

func TestInvalidStepDoesNotMutate(t *testing.T) {
	for _, adaptive := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Adaptive = adaptive
		cfg.WindowSize = 2
		f, err := NewFilter(cfg, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		_, err = f.Step(0.3, 0.1, 0.05)
		test.That(t, err, test.ShouldBeNil)

		xBefore, pBefore := f.State()
		for _, tc := range []struct{ v, a, dt float64 }{
			{0.3, 0.1, 0},
			{0.3, 0.1, -0.01},
			{0.3, 0.1, math.NaN()},
			{math.Inf(1), 0.1, 0.05},
			{0.3, math.NaN(), 0.05},
		} {
			_, err := f.Step(tc.v, tc.a, tc.dt)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, IsInvalidSample(err), test.ShouldBeTrue)
		}
		xAfter, pAfter := f.State()
		test.That(t, mat.Equal(xBefore, xAfter), test.ShouldBeTrue)
		test.That(t, mat.Equal(pBefore, pAfter), test.ShouldBeTrue)
		if adaptive {
			test.That(t, f.Window().Len(), test.ShouldEqual, 1)
		}
	}
}

func TestSingularInnovationCovariance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Q = [][]float64{{0, 0}, {0, 0}}
	cfg.Adaptive = true
	cfg.BoundMatrix = [][]float64{{0, 0}, {0, 0}}
	f, err := NewFilter(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, err = f.Step(1, 0, 0.1)
	test.That(t, IsSingularCovariance(err), test.ShouldBeTrue)
	test.That(t, f.Window().Len(), test.ShouldEqual, 0)
	x, _ := f.State()
	test.That(t, x.AtVec(1), test.ShouldEqual, 0)

	cfg.CovarianceFloor = 1e-6
	f, err = NewFilter(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	est, err := f.Step(1, 0, 0.1)
	test.That(t, err, test.ShouldBeNil)
	// With P⁻ = 0 the gain vanishes and the prediction stands.
	test.That(t, est.Ratio, test.ShouldEqual, 0)
	test.That(t, est.Velocity, test.ShouldEqual, 0)
	test.That(t, f.Window().Len(), test.ShouldEqual, 1)
}

func TestResetRestoresInitialState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialState = []float64{1, 2}
	f, err := NewFilter(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 10; i++ {
		_, err = f.Step(0.5, 0.1, 0.1)
		test.That(t, err, test.ShouldBeNil)
	}
	f.Reset()
	x, p := f.State()
	test.That(t, x.RawVector().Data, test.ShouldResemble, []float64{1, 2})
	test.That(t, mat.Equal(p, mat.NewSymDense(2, nil)), test.ShouldBeTrue)
}

func TestStateCopiesCovariance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialCovariance = [][]float64{{2, 0.5}, {0.5, 1}}
	f, err := NewFilter(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, p := f.State()
	test.That(t, p.SymmetricDim(), test.ShouldEqual, 2)
	test.That(t, mat.Equal(p, mat.NewSymDense(2, []float64{2, 0.5, 0.5, 1})), test.ShouldBeTrue)

	p.SetSym(0, 0, 100)
	_, again := f.State()
	test.That(t, again.At(0, 0), test.ShouldEqual, 2)

	_, err = f.Step(1, 0, 0.1)
	test.That(t, err, test.ShouldBeNil)
	_, p = f.State()
	test.That(t, p.SymmetricDim(), test.ShouldEqual, 2)
	requireSymmetricPSD(t, p)
}

func TestNewFilterRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Alpha = -1
	_, err := NewFilter(cfg, logging.NewTestLogger(t))
	test.That(t, IsConfigurationError(err), test.ShouldBeTrue)
}
