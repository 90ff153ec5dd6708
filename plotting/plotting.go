// Package plotting renders run output as stacked time series panels.
package plotting

import (
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"go.viam.com/adaptkalman/estimator"
)

const timeLabel = "Time in s"

// Panel is one stacked subplot.
type Panel struct {
	Column string
	Label  string
}

// DefaultPanels are the input velocity, input acceleration, distance, velocity estimate and ratio.
var DefaultPanels = []Panel{
	{estimator.ColumnVelocity, "Velocity in m/s"},
	{estimator.ColumnAcceleration, "Acceleration in m/s^2"},
	{estimator.ColumnPosition, "Distance in m"},
	{estimator.ColumnVelocityEst, "Velocity in m/s"},
	{estimator.ColumnRatio, "Ratio"},
}

// Options controls the rendered figure size.
type Options struct {
	Width       vg.Length
	PanelHeight vg.Length
	Panels      []Panel
}

func (o Options) withDefaults() Options {
	if o.Width == 0 {
		o.Width = 8 * vg.Inch
	}
	if o.PanelHeight == 0 {
		o.PanelHeight = 2 * vg.Inch
	}
	if len(o.Panels) == 0 {
		o.Panels = DefaultPanels
	}
	return o
}

func xys(t, values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(t))
	for i := range pts {
		pts[i].X = t[i]
		pts[i].Y = values[i]
	}
	return pts
}

// Render writes a PNG of one run with one panel per channel.
func Render(w io.Writer, series *estimator.SampleSeries, opts Options) error {
	if series == nil || series.Len() == 0 {
		return errors.New("nothing to plot")
	}
	return RenderCompare(w, map[string]*estimator.SampleSeries{"": series}, opts)
}

// RenderCompare writes a PNG overlaying several runs, one line per run in every panel. Runs are
// drawn in name order; a run named "" gets no legend entry.
func RenderCompare(w io.Writer, runs map[string]*estimator.SampleSeries, opts Options) error {
	if len(runs) == 0 {
		return errors.New("nothing to plot")
	}
	opts = opts.withDefaults()
	names := make([]string, 0, len(runs))
	for name := range runs {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]*plot.Plot, len(opts.Panels))
	for i, panel := range opts.Panels {
		p := plot.New()
		p.X.Label.Text = timeLabel
		p.Y.Label.Text = panel.Label
		for j, name := range names {
			series := runs[name]
			values, err := series.Column(panel.Column)
			if err != nil {
				return err
			}
			line, err := plotter.NewLine(xys(series.T, values))
			if err != nil {
				return errors.Wrapf(err, "plotting %q of run %q", panel.Column, name)
			}
			line.Color = plotutil.Color(j)
			p.Add(line)
			if name != "" {
				p.Legend.Add(name, line)
			}
		}
		rows[i] = []*plot.Plot{p}
	}

	img := vgimg.New(opts.Width, vg.Length(len(rows))*opts.PanelHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(rows),
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      vg.Millimeter,
		PadTop:    vg.Points(2),
		PadBottom: vg.Points(2),
		PadLeft:   vg.Points(2),
		PadRight:  vg.Points(2),
	}
	canvases := plot.Align(rows, tiles, dc)
	for i := range rows {
		rows[i][0].Draw(canvases[i][0])
	}
	_, err := vgimg.PngCanvas{Canvas: img}.WriteTo(w)
	return err
}

// RenderFile renders series into the PNG file at path.
func RenderFile(path string, series *estimator.SampleSeries, opts Options) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating plot file")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return Render(f, series, opts)
}
