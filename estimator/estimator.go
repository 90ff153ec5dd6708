// Package estimator drives a filter across a series of time aligned samples and keeps the full
// output series for export and comparison.
package estimator

import (
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/adaptkalman/control"
	"go.viam.com/adaptkalman/logging"
)

// ErrEmptySeries is wrapped by EmptySeriesError.
var ErrEmptySeries = errors.New("at least two samples are required")

// EmptySeriesError is returned when a run is given fewer than two samples.
type EmptySeriesError struct {
	N int
}

func (e *EmptySeriesError) Error() string {
	return fmt.Sprintf("%s, got %d", ErrEmptySeries, e.N)
}

// Unwrap returns ErrEmptySeries.
func (e *EmptySeriesError) Unwrap() error {
	return ErrEmptySeries
}

// Estimator runs one filter over one sample series. The filter must be fresh: estimators are not
// reusable across runs.
type Estimator struct {
	filter *control.Filter
	logger logging.Logger
	series *SampleSeries
}

// New returns an estimator for filter.
func New(filter *control.Filter, logger logging.Logger) *Estimator {
	if logger == nil {
		logger = logging.NewBlankLogger("estimator")
	}
	return &Estimator{filter: filter, logger: logger}
}

// Run steps the filter once per consecutive pair of samples. Entry 0 of the returned series holds
// the initial estimate and the default ratio; entry k holds the estimate after consuming the
// inputs of sample k-1 over dt = t[k] - t[k-1]. The output therefore has exactly len(samples)
// entries, each stamped and carrying the raw inputs of its own sample.
func (e *Estimator) Run(samples []Sample) (*SampleSeries, error) {
	if e.series != nil {
		return nil, errors.New("estimator has already run")
	}
	if len(samples) < 2 {
		return nil, &EmptySeriesError{N: len(samples)}
	}
	if err := ValidateSamples(samples); err != nil {
		return nil, err
	}

	e.logger.Debugw("run starting", "samples", len(samples), "t0", samples[0].T)
	series := newSampleSeries(len(samples))
	x, _ := e.filter.State()
	series.append(samples[0], x.AtVec(0), x.AtVec(1), e.filter.DefaultRatio())
	for k := 1; k < len(samples); k++ {
		dt := samples[k].T - samples[k-1].T
		est, err := e.filter.Step(samples[k-1].Velocity, samples[k-1].Acceleration, dt)
		if err != nil {
			var invalid *control.InvalidSampleError
			if errors.As(err, &invalid) {
				invalid.Index = k - 1
				return nil, invalid
			}
			return nil, errors.Wrapf(err, "step %d at t=%v", k, samples[k].T)
		}
		series.append(samples[k], est.Position, est.Velocity, est.Ratio)
	}
	e.series = series
	e.logger.Debugw("run complete",
		"samples", series.Len(),
		"final_position", series.Position[series.Len()-1],
		"final_velocity", series.VelocityEst[series.Len()-1])
	return series, nil
}

// Series returns the series of the completed run, or nil.
func (e *Estimator) Series() *SampleSeries {
	return e.series
}

// Slice locates the half-open index range of the completed series whose timestamps fall in
// [tStart, tEnd]. tEnd may be +Inf.
func (e *Estimator) Slice(tStart, tEnd float64) (int, int, error) {
	if e.series == nil {
		return 0, 0, errors.New("no completed run to slice")
	}
	return e.series.Bounds(tStart, tEnd)
}

// Estimate builds a fresh filter from cfg and runs it over samples.
func Estimate(cfg control.Config, samples []Sample, logger logging.Logger) (*SampleSeries, error) {
	filter, err := control.NewFilter(cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(filter, logger).Run(samples)
}
