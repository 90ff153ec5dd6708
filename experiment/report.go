package experiment

import (
	"fmt"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"

	"go.viam.com/adaptkalman/estimator"
)

// Report holds the results of a sweep in run order.
type Report struct {
	Results []Result
}

// Series returns the output series keyed by run name.
func (r *Report) Series() map[string]*estimator.SampleSeries {
	out := make(map[string]*estimator.SampleSeries, len(r.Results))
	for _, res := range r.Results {
		out[res.Run.Name] = res.Series
	}
	return out
}

// Best returns the result with the lowest velocity RMSE.
func (r *Report) Best() (Result, bool) {
	if len(r.Results) == 0 {
		return Result{}, false
	}
	best := r.Results[0]
	for _, res := range r.Results[1:] {
		if res.Summary.VelocityRMSE < best.Summary.VelocityRMSE {
			best = res
		}
	}
	return best, true
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.5f", v)
}

// String prints one table row per run.
func (r *Report) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Run", "Distance", "Velocity", "Velocity RMSE", "Distance Error", "Mean Ratio", "Max Ratio", "P95 Ratio"})
	for i, res := range r.Results {
		s := res.Summary
		t.AppendRow(table.Row{
			fmt.Sprintf("%d", i+1),
			s.Name,
			formatCell(s.FinalPosition),
			formatCell(s.FinalVelocity),
			formatCell(s.VelocityRMSE),
			formatCell(s.PositionError),
			formatCell(s.MeanRatio),
			formatCell(s.MaxRatio),
			formatCell(s.P95Ratio),
		})
	}
	return t.Render()
}
