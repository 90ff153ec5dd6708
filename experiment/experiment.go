// Package experiment runs several filter configurations over the same samples and compares them.
package experiment

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"go.viam.com/adaptkalman/control"
	"go.viam.com/adaptkalman/estimator"
	"go.viam.com/adaptkalman/logging"
)

// Run is one named filter configuration.
type Run struct {
	Name   string
	Config control.Config
}

// SweepConfig describes a sweep as read from a config file.
type SweepConfig struct {
	Alphas   []float64 `json:"alphas,omitempty"`
	Betas    []float64 `json:"betas,omitempty"`
	Kernels  []string  `json:"kernels,omitempty"`
	Parallel int       `json:"parallel,omitempty"`
}

// Validate checks the sweep config.
func (cfg *SweepConfig) Validate() error {
	if len(cfg.Alphas) == 0 && len(cfg.Betas) == 0 && len(cfg.Kernels) == 0 {
		return errors.New("sweep needs at least one of alphas, betas or kernels")
	}
	if cfg.Parallel < 0 {
		return errors.Errorf("parallel must not be negative, got %d", cfg.Parallel)
	}
	for _, k := range cfg.Kernels {
		if k == "" || k == LinearKernel {
			continue
		}
		if _, err := control.ParseWindowKernel(k); err != nil {
			return err
		}
	}
	return nil
}

// Runs expands the sweep around base.
func (cfg *SweepConfig) Runs(base control.Config) []Run {
	var runs []Run
	runs = append(runs, AlphaRuns(base, cfg.Alphas)...)
	runs = append(runs, BetaRuns(base, cfg.Betas)...)
	runs = append(runs, CompareRuns(base, cfg.Kernels...)...)
	return runs
}

func formatParam(name string, v float64) string {
	return name + "=" + strconv.FormatFloat(v, 'g', -1, 64)
}

// AlphaRuns varies the velocity scale factor of base.
func AlphaRuns(base control.Config, alphas []float64) []Run {
	return lo.Map(alphas, func(alpha float64, _ int) Run {
		cfg := base
		cfg.Alpha = alpha
		return Run{Name: formatParam("alpha", alpha), Config: cfg}
	})
}

// BetaRuns varies the acceleration scale factor of base.
func BetaRuns(base control.Config, betas []float64) []Run {
	return lo.Map(betas, func(beta float64, _ int) Run {
		cfg := base
		cfg.Beta = beta
		return Run{Name: formatParam("beta", beta), Config: cfg}
	})
}

// LinearKernel names the linear run in CompareRuns.
const LinearKernel = "linear"

// CompareRuns returns base as an adaptive filter per window kernel. The kernels "" and "linear"
// name the linear run.
func CompareRuns(base control.Config, kernels ...string) []Run {
	return lo.Map(kernels, func(kernel string, _ int) Run {
		cfg := base
		if kernel == "" || kernel == LinearKernel {
			cfg.Adaptive = false
			return Run{Name: LinearKernel, Config: cfg}
		}
		cfg.Adaptive = true
		cfg.WindowKernel = kernel
		return Run{Name: kernel, Config: cfg}
	})
}

// Reference is the ground truth a run is scored against.
type Reference struct {
	Velocity []float64
	Distance float64
}

// Options controls a sweep.
type Options struct {
	// Parallel limits the number of concurrent runs. Zero means no limit.
	Parallel  int
	Reference *Reference
	Logger    logging.Logger
}

// Result is the outcome of one run.
type Result struct {
	Run     Run
	Series  *estimator.SampleSeries
	Summary Summary
}

// Sweep runs every configuration on its own fresh filter over the same samples. Results keep the
// order of runs. The first failing run cancels the rest.
func Sweep(ctx context.Context, samples []estimator.Sample, runs []Run, opts Options) (*Report, error) {
	if len(runs) == 0 {
		return nil, errors.New("no runs to sweep")
	}
	names := lo.Map(runs, func(r Run, _ int) string { return r.Name })
	if dup := lo.FindDuplicates(names); len(dup) > 0 {
		return nil, errors.Errorf("duplicate run names %v", dup)
	}
	if opts.Reference != nil && opts.Reference.Velocity != nil && len(opts.Reference.Velocity) != len(samples) {
		return nil, errors.Errorf("reference has %d velocities for %d samples", len(opts.Reference.Velocity), len(samples))
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewBlankLogger("experiment")
	}

	results := make([]Result, len(runs))
	g, ctx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}
	for i, run := range runs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			series, err := estimator.Estimate(run.Config, samples, logger.Sublogger(run.Name))
			if err != nil {
				return errors.Wrapf(err, "run %q", run.Name)
			}
			summary, err := Summarize(run.Name, series, opts.Reference)
			if err != nil {
				return errors.Wrapf(err, "summarizing run %q", run.Name)
			}
			results[i] = Result{Run: run, Series: series, Summary: summary}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Infow("sweep complete", "runs", len(runs))
	return &Report{Results: results}, nil
}

// Summary condenses one run.
type Summary struct {
	Name          string
	FinalPosition float64
	FinalVelocity float64
	// VelocityRMSE is measured against the reference velocity, or the raw input without one.
	VelocityRMSE float64
	// PositionError is the final position minus the reference distance, NaN without a reference.
	PositionError float64
	MeanRatio     float64
	MaxRatio      float64
	P95Ratio      float64
}

// Summarize computes the summary of series.
func Summarize(name string, series *estimator.SampleSeries, ref *Reference) (Summary, error) {
	n := series.Len()
	if n == 0 {
		return Summary{}, errors.New("empty series")
	}
	s := Summary{
		Name:          name,
		FinalPosition: series.Position[n-1],
		FinalVelocity: series.VelocityEst[n-1],
		PositionError: math.NaN(),
	}

	truth := series.Velocity
	if ref != nil {
		if ref.Velocity != nil {
			truth = ref.Velocity
		}
		s.PositionError = s.FinalPosition - ref.Distance
	}
	sq := make(stats.Float64Data, n)
	for i := range sq {
		d := series.VelocityEst[i] - truth[i]
		sq[i] = d * d
	}
	mse, err := stats.Mean(sq)
	if err != nil {
		return Summary{}, err
	}
	s.VelocityRMSE = math.Sqrt(mse)

	ratio := stats.Float64Data(series.Ratio)
	if s.MeanRatio, err = stats.Mean(ratio); err != nil {
		return Summary{}, err
	}
	if s.MaxRatio, err = stats.Max(ratio); err != nil {
		return Summary{}, err
	}
	if s.P95Ratio, err = stats.Percentile(ratio, 95); err != nil {
		return Summary{}, err
	}
	return s, nil
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: y=%.4f v=%.4f rmse=%.4f", s.Name, s.FinalPosition, s.FinalVelocity, s.VelocityRMSE)
}
