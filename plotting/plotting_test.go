package plotting

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
	"gonum.org/v1/plot/vg"

	"go.viam.com/adaptkalman/control"
	"go.viam.com/adaptkalman/estimator"
	"go.viam.com/adaptkalman/sim"
)

func simSeries(t *testing.T, cfg control.Config) *estimator.SampleSeries {
	t.Helper()
	traj, err := sim.Circle(sim.Config{N: 200, Seed: 3})
	test.That(t, err, test.ShouldBeNil)
	series, err := estimator.Estimate(cfg, traj.Samples(), nil)
	test.That(t, err, test.ShouldBeNil)
	return series
}

func TestRender(t *testing.T) {
	series := simSeries(t, control.DefaultConfig())
	var buf bytes.Buffer
	err := Render(&buf, series, Options{Width: 4 * vg.Inch, PanelHeight: vg.Inch})
	test.That(t, err, test.ShouldBeNil)

	img, err := png.Decode(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldBeGreaterThan, 0)
	test.That(t, img.Bounds().Dy(), test.ShouldBeGreaterThan, img.Bounds().Dx())
}

func TestRenderCompare(t *testing.T) {
	adaptive := control.DefaultConfig()
	adaptive.Adaptive = true
	runs := map[string]*estimator.SampleSeries{
		"linear":   simSeries(t, control.DefaultConfig()),
		"adaptive": simSeries(t, adaptive),
	}
	var buf bytes.Buffer
	err := RenderCompare(&buf, runs, Options{Panels: DefaultPanels[2:]})
	test.That(t, err, test.ShouldBeNil)
	_, err = png.Decode(&buf)
	test.That(t, err, test.ShouldBeNil)

	err = RenderCompare(&buf, nil, Options{})
	test.That(t, err, test.ShouldNotBeNil)
	err = Render(&buf, nil, Options{})
	test.That(t, err, test.ShouldNotBeNil)
	err = Render(&buf, runs["linear"], Options{Panels: []Panel{{Column: "nope"}}})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRenderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.png")
	test.That(t, RenderFile(path, simSeries(t, control.DefaultConfig()), Options{}), test.ShouldBeNil)
	info, err := os.Stat(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)
}
