package experiment

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"go.viam.com/adaptkalman/control"
	"go.viam.com/adaptkalman/estimator"
	"go.viam.com/adaptkalman/logging"
	"go.viam.com/adaptkalman/sim"
)

func circle(t *testing.T) (*sim.Trajectory, []estimator.Sample) {
	t.Helper()
	traj, err := sim.Circle(sim.Config{N: 400, Seed: 11})
	test.That(t, err, test.ShouldBeNil)
	return traj, traj.Samples()
}

func TestRunBuilders(t *testing.T) {
	base := control.DefaultConfig()
	alphas := AlphaRuns(base, []float64{0.9, 1.1})
	test.That(t, alphas, test.ShouldHaveLength, 2)
	test.That(t, alphas[0].Name, test.ShouldEqual, "alpha=0.9")
	test.That(t, alphas[1].Config.Alpha, test.ShouldEqual, 1.1)
	test.That(t, alphas[1].Config.Beta, test.ShouldEqual, base.Beta)

	betas := BetaRuns(base, []float64{2})
	test.That(t, betas[0].Name, test.ShouldEqual, "beta=2")
	test.That(t, betas[0].Config.Beta, test.ShouldEqual, 2)

	compare := CompareRuns(base, "", "sig", "exp")
	test.That(t, compare[0].Name, test.ShouldEqual, "linear")
	test.That(t, compare[0].Config.Adaptive, test.ShouldBeFalse)
	test.That(t, compare[2].Config.Adaptive, test.ShouldBeTrue)
	test.That(t, compare[2].Config.WindowKernel, test.ShouldEqual, "exp")

	cfg := SweepConfig{Alphas: []float64{1}, Kernels: []string{"sig"}}
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	test.That(t, cfg.Runs(base), test.ShouldHaveLength, 2)
	test.That(t, (&SweepConfig{}).Validate(), test.ShouldNotBeNil)
	test.That(t, (&SweepConfig{Kernels: []string{"box"}}).Validate(), test.ShouldNotBeNil)
	test.That(t, (&SweepConfig{Betas: []float64{1}, Parallel: -1}).Validate(), test.ShouldNotBeNil)
}

func TestSweep(t *testing.T) {
	traj, samples := circle(t)
	base := control.DefaultConfig()
	runs := append(AlphaRuns(base, []float64{0.5, 1, 1.5}), CompareRuns(base, "sig", "exp")...)

	report, err := Sweep(context.Background(), samples, runs, Options{
		Parallel:  2,
		Reference: &Reference{Velocity: traj.Velocity, Distance: traj.Distance()},
		Logger:    logging.NewTestLogger(t),
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report.Results, test.ShouldHaveLength, len(runs))
	for i, res := range report.Results {
		test.That(t, res.Run.Name, test.ShouldEqual, runs[i].Name)
		test.That(t, res.Series.Len(), test.ShouldEqual, len(samples))
		test.That(t, res.Summary.Name, test.ShouldEqual, runs[i].Name)
		test.That(t, math.IsNaN(res.Summary.PositionError), test.ShouldBeFalse)
		test.That(t, res.Summary.MaxRatio, test.ShouldBeGreaterThanOrEqualTo, res.Summary.P95Ratio)
	}

	// each run is independent of the others in the sweep
	single, err := estimator.Estimate(runs[1].Config, samples, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmp.Diff(single, report.Results[1].Series), test.ShouldBeEmpty)

	// alpha 1 tracks the true distance better than a halved velocity
	test.That(t, math.Abs(report.Results[1].Summary.PositionError), test.ShouldBeLessThan,
		math.Abs(report.Results[0].Summary.PositionError))

	test.That(t, report.Series(), test.ShouldHaveLength, len(runs))
	best, ok := report.Best()
	test.That(t, ok, test.ShouldBeTrue)
	for _, res := range report.Results {
		test.That(t, best.Summary.VelocityRMSE, test.ShouldBeLessThanOrEqualTo, res.Summary.VelocityRMSE)
	}

	out := report.String()
	for _, run := range runs {
		test.That(t, out, test.ShouldContainSubstring, run.Name)
	}
	test.That(t, out, test.ShouldContainSubstring, "VELOCITY RMSE")
}

func TestSweepErrors(t *testing.T) {
	_, samples := circle(t)
	base := control.DefaultConfig()

	_, err := Sweep(context.Background(), samples, nil, Options{})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = Sweep(context.Background(), samples, append(AlphaRuns(base, []float64{1}), AlphaRuns(base, []float64{1})...), Options{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "duplicate")

	bad := base
	bad.R = -1
	_, err = Sweep(context.Background(), samples, []Run{{Name: "ok", Config: base}, {Name: "bad", Config: bad}}, Options{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, control.IsConfigurationError(err), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, `run "bad"`)

	_, err = Sweep(context.Background(), samples, AlphaRuns(base, []float64{1}), Options{Reference: &Reference{Velocity: []float64{1}}})
	test.That(t, err, test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Sweep(ctx, samples, AlphaRuns(base, []float64{1, 2}), Options{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSummarize(t *testing.T) {
	series, err := estimator.Estimate(control.DefaultConfig(), []estimator.Sample{
		{T: 0, Velocity: 1},
		{T: 1, Velocity: 1},
		{T: 2, Velocity: 1},
	}, nil)
	test.That(t, err, test.ShouldBeNil)

	s, err := Summarize("lin", series, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.IsNaN(s.PositionError), test.ShouldBeTrue)
	test.That(t, s.MeanRatio, test.ShouldEqual, 1)
	test.That(t, s.FinalPosition, test.ShouldEqual, series.Position[2])
	test.That(t, strings.HasPrefix(s.String(), "lin:"), test.ShouldBeTrue)

	s, err = Summarize("lin", series, &Reference{Distance: 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.PositionError, test.ShouldAlmostEqual, series.Position[2]-2)
}
