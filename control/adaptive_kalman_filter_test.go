package control

import (
	"math"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/adaptkalman/logging"
)

func adaptiveConfig(target AdaptiveTarget, kernel string, size int) Config {
	cfg := DefaultConfig()
	cfg.Adaptive = true
	cfg.AdaptiveTarget = target
	cfg.WindowKernel = kernel
	cfg.WindowSize = size
	cfg.InitialCovariance = [][]float64{{1, 0}, {0, 1}}
	return cfg
}

func TestAdaptiveWarmupUsesDefaultRatio(t *testing.T) {
	cfg := adaptiveConfig(TargetR, "exp", 4)
	cfg.DefaultRatio = 1.5
	f, err := NewFilter(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Mode(), test.ShouldEqual, ModeAdaptive)
	test.That(t, f.DefaultRatio(), test.ShouldEqual, 1.5)

	for i := 0; i < 3; i++ {
		est, err := f.Step(float64(i), 0, 0.1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, est.Ratio, test.ShouldEqual, 1.5)
	}
	est, err := f.Step(3, 0, 0.1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Window().Full(), test.ShouldBeTrue)
	test.That(t, est.Ratio, test.ShouldAlmostEqual, f.Window().Ratio(), 1e-15)
}

func TestAdaptiveWithUnitBoundsMatchesLinear(t *testing.T) {
	for _, target := range []AdaptiveTarget{TargetQ, TargetR} {
		cfg := adaptiveConfig(target, "sig", 3)
		cfg.BoundMatrix = [][]float64{{1, 1}, {1, 1}}
		adaptive, err := NewFilter(cfg, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		linear, err := NewLinearFilter(cfg, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, linear.Mode(), test.ShouldEqual, ModeLinear)

		for k := 0; k < 50; k++ {
			v := math.Sin(float64(k) / 5)
			a := math.Cos(float64(k) / 3)
			ea, err := adaptive.Step(v, a, 0.05)
			test.That(t, err, test.ShouldBeNil)
			el, err := linear.Step(v, a, 0.05)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, ea.Ratio, test.ShouldEqual, 1)
			test.That(t, ea.Position, test.ShouldAlmostEqual, el.Position, 1e-12)
			test.That(t, ea.Velocity, test.ShouldAlmostEqual, el.Velocity, 1e-12)
		}
	}
}

func TestAdaptiveInflatesOnManeuver(t *testing.T) {
	for _, target := range []AdaptiveTarget{TargetQ, TargetR} {
		cfg := adaptiveConfig(target, "exp", 3)
		cfg.BoundMatrix = [][]float64{{0.5, 4}, {0.5, 4}}
		f, err := NewFilter(cfg, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		for i := 0; i < 20; i++ {
			_, err := f.Step(0, 0, 0.1)
			test.That(t, err, test.ShouldBeNil)
		}
		est, err := f.Step(5, 0, 0.1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, f.Window().Ratio(), test.ShouldBeGreaterThan, 4)
		test.That(t, est.Ratio, test.ShouldEqual, 4)
	}
}

func TestAdaptiveQuiescentRelaxesToLowerBound(t *testing.T) {
	cfg := adaptiveConfig(TargetR, "sig", 5)
	cfg.BoundMatrix = [][]float64{{0.2, 5}, {0.2, 5}}
	f, err := NewFilter(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	var est Estimate
	for i := 0; i < 30; i++ {
		est, err = f.Step(0, 0, 0.1)
		test.That(t, err, test.ShouldBeNil)
	}
	// No innovation at all: the statistic is 0 and the multiplier sits on the lower bound.
	test.That(t, est.Ratio, test.ShouldEqual, 0.2)
}

func TestAdaptiveCovarianceStaysPSD(t *testing.T) {
	for _, target := range []AdaptiveTarget{TargetQ, TargetR} {
		cfg := adaptiveConfig(target, "exp", 4)
		cfg.Q = [][]float64{{0.01, 0.002}, {0.002, 0.3}}
		f, err := NewFilter(cfg, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		for k := 0; k < 300; k++ {
			v := 0.14
			if (k/40)%2 == 0 {
				v = 0
			}
			_, err := f.Step(v, math.Sin(float64(k)), 0.003)
			test.That(t, err, test.ShouldBeNil)
			_, p := f.State()
			requireSymmetricPSD(t, p)
		}
	}
}

func TestScaleDiagonal(t *testing.T) {
	q := mat.NewSymDense(2, []float64{4, 1, 1, 9})
	scaled := scaleDiagonal(q, [2]float64{2, 0.5})
	test.That(t, scaled.At(0, 0), test.ShouldAlmostEqual, 8, 1e-12)
	test.That(t, scaled.At(1, 1), test.ShouldAlmostEqual, 4.5, 1e-12)
	test.That(t, scaled.At(0, 1), test.ShouldAlmostEqual, 1, 1e-12)
}
