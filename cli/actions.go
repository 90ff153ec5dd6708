package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/adaptkalman/config"
	"go.viam.com/adaptkalman/estimator"
	"go.viam.com/adaptkalman/experiment"
	"go.viam.com/adaptkalman/export"
	"go.viam.com/adaptkalman/logging"
	"go.viam.com/adaptkalman/plotting"
	"go.viam.com/adaptkalman/sensorlog"
	"go.viam.com/adaptkalman/sim"
)

type runner struct {
	logger logging.Logger
}

func (r *runner) before(c *cli.Context) error {
	if c.Bool(generalFlagDebug) {
		r.logger = logging.NewDebugLogger("adaptkalman")
	} else {
		r.logger = logging.NewLogger("adaptkalman")
		r.logger.SetLevel(logging.WARN)
	}
	return nil
}

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	if _, err := color.New(color.Bold, color.FgYellow).Fprint(w, "Warning: "); err != nil {
		return
	}
	printf(w, format, a...)
}

func (r *runner) loadConfig(c *cli.Context) (*config.Config, error) {
	var conf *config.Config
	if path := c.Path(generalFlagConfig); path != "" {
		var err error
		if conf, err = config.Read(path, r.logger); err != nil {
			return nil, errors.Wrapf(err, "loading %s", path)
		}
	} else {
		conf = config.Default()
	}
	applyFilterFlags(c, conf)
	if err := conf.Ensure(); err != nil {
		return nil, err
	}
	return conf, nil
}

// applyFilterFlags overrides the filter section with every filter flag set on the command line.
func applyFilterFlags(c *cli.Context, conf *config.Config) {
	f := &conf.Filter
	if c.IsSet(filterFlagRatio) {
		f.Ratio = c.Float64(filterFlagRatio)
		f.Q = nil
	}
	if c.IsSet(filterFlagWindow) {
		window := c.String(filterFlagWindow)
		if window == experiment.LinearKernel {
			window = ""
		}
		f.Adaptive = window != ""
		f.WindowKernel = window
	}
	if c.IsSet(filterFlagWindowSize) {
		f.WindowSize = c.Int(filterFlagWindowSize)
	}
	if c.IsSet(filterFlagAlpha) {
		f.Alpha = c.Float64(filterFlagAlpha)
	}
	if c.IsSet(filterFlagBeta) {
		f.Beta = c.Float64(filterFlagBeta)
	}
}

func applyOutputFlags(c *cli.Context, conf *config.Config) {
	if c.IsSet(outputFlagPlot) {
		conf.Plot = c.Path(outputFlagPlot)
	}
	if !c.IsSet(outputFlagExportDir) && conf.Export == nil {
		return
	}
	if conf.Export == nil {
		conf.Export = export.DefaultConfig("")
	}
	if c.IsSet(outputFlagExportDir) {
		conf.Export.Dir = c.Path(outputFlagExportDir)
	}
	if c.IsSet(outputFlagPrefix) || conf.Export.Prefix == "" {
		conf.Export.Prefix = c.String(outputFlagPrefix)
	}
	if c.IsSet(outputFlagSliceStart) {
		conf.Export.SliceStart = c.Float64(outputFlagSliceStart)
	}
	if c.IsSet(outputFlagSliceEnd) {
		conf.Export.SliceEnd = c.Float64(outputFlagSliceEnd)
	}
	if c.IsSet(outputFlagTrimStart) {
		conf.Export.TrimStart = c.Int(outputFlagTrimStart)
	}
	if c.IsSet(outputFlagTrimEnd) {
		conf.Export.TrimEnd = c.Int(outputFlagTrimEnd)
	}
}

func simulate(c *cli.Context, conf *config.Config) (*sim.Trajectory, error) {
	simCfg := sim.DefaultConfig()
	if conf.Simulation != nil {
		simCfg = *conf.Simulation
	}
	if c.IsSet(simFlagN) {
		simCfg.N = c.Int(simFlagN)
	}
	if c.IsSet(simFlagSimTime) {
		simCfg.SimTime = c.Float64(simFlagSimTime)
		simCfg.TurnRate = 0
	}
	if c.IsSet(simFlagPeakVel) {
		simCfg.PeakVelocity = c.Float64(simFlagPeakVel)
	}
	if c.IsSet(simFlagSeed) {
		simCfg.Seed = c.Uint64(simFlagSeed)
	}
	if c.IsSet(simFlagNoiseless) {
		simCfg.Noiseless = c.Bool(simFlagNoiseless)
	}
	switch shape := c.String(simFlagShape); shape {
	case shapeCircle:
		return sim.Circle(simCfg)
	case shapeLine:
		return sim.Line(simCfg)
	default:
		return nil, errors.Errorf("unknown shape %q, expected %s or %s", shape, shapeCircle, shapeLine)
	}
}

// windowName is the file name tag of the filter's window, empty for the linear filter.
func windowName(conf *config.Config) string {
	if !conf.Filter.Adaptive {
		return ""
	}
	if conf.Filter.WindowKernel == "" {
		return "sig"
	}
	return conf.Filter.WindowKernel
}

func (r *runner) estimate(conf *config.Config, samples []estimator.Sample) (*estimator.SampleSeries, error) {
	series, err := estimator.Estimate(conf.Filter, samples, r.logger.Sublogger("estimator"))
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (r *runner) output(c *cli.Context, conf *config.Config, series *estimator.SampleSeries, ref *experiment.Reference) error {
	summary, err := experiment.Summarize(conf.Source(), series, ref)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", summary)
	if ref != nil {
		printf(c.App.Writer, "distance error %.5f m", summary.PositionError)
	}

	if conf.Plot == "" && conf.Export == nil {
		warningf(c.App.ErrWriter, "neither --%s nor --%s given, only printing the summary", outputFlagPlot, outputFlagExportDir)
		return nil
	}
	if conf.Plot != "" {
		if err := plotting.RenderFile(conf.Plot, series, plotting.Options{}); err != nil {
			return err
		}
		printf(c.App.Writer, "plotted %s", conf.Plot)
	}
	if conf.Export != nil {
		if err := conf.Export.Validate(); err != nil {
			return err
		}
		begin, end, err := conf.Export.Range(series)
		if err != nil {
			return err
		}
		exporter := &export.Exporter{
			Dir:    conf.Export.Dir,
			Prefix: conf.Export.Prefix,
			Window: windowName(conf),
			Logger: r.logger,
		}
		paths, err := exporter.Export(series, begin, end)
		if err != nil {
			return err
		}
		for _, p := range paths {
			printf(c.App.Writer, "wrote %s", p)
		}
	}
	return nil
}

func (r *runner) simulateAction(c *cli.Context) error {
	conf, err := r.loadConfig(c)
	if err != nil {
		return err
	}
	if conf.Log != nil {
		return errors.New("config reads a log, use replay instead")
	}
	applyOutputFlags(c, conf)

	traj, err := simulate(c, conf)
	if err != nil {
		return err
	}
	series, err := r.estimate(conf, traj.Samples())
	if err != nil {
		return err
	}
	return r.output(c, conf, series, &experiment.Reference{Velocity: traj.Velocity, Distance: traj.Distance()})
}

func (r *runner) readLog(c *cli.Context, conf *config.Config) ([]estimator.Sample, error) {
	if c.IsSet(replayFlagLog) {
		if conf.Log == nil {
			conf.Log = &sensorlog.Config{}
		}
		conf.Log.Path = c.Path(replayFlagLog)
		conf.Simulation = nil
	}
	if conf.Log == nil {
		return nil, errors.Errorf("no log given, set --%s or the log section of the config", replayFlagLog)
	}
	return sensorlog.Read(c.Context, *conf.Log, r.logger.Sublogger("sensorlog"))
}

func (r *runner) replayAction(c *cli.Context) error {
	conf, err := r.loadConfig(c)
	if err != nil {
		return err
	}
	applyOutputFlags(c, conf)

	samples, err := r.readLog(c, conf)
	if err != nil {
		return err
	}
	series, err := r.estimate(conf, samples)
	if err != nil {
		return err
	}
	return r.output(c, conf, series, nil)
}

func (r *runner) sweepAction(c *cli.Context) error {
	conf, err := r.loadConfig(c)
	if err != nil {
		return err
	}
	if conf.Sweep == nil {
		conf.Sweep = &experiment.SweepConfig{}
	}
	if c.IsSet(sweepFlagAlphas) {
		conf.Sweep.Alphas = c.Float64Slice(sweepFlagAlphas)
	}
	if c.IsSet(sweepFlagBetas) {
		conf.Sweep.Betas = c.Float64Slice(sweepFlagBetas)
	}
	if c.IsSet(sweepFlagKernels) {
		conf.Sweep.Kernels = c.StringSlice(sweepFlagKernels)
	}
	if c.IsSet(sweepFlagParallel) {
		conf.Sweep.Parallel = c.Int(sweepFlagParallel)
	}
	if c.IsSet(outputFlagPlot) {
		conf.Plot = c.Path(outputFlagPlot)
	}
	if err := conf.Sweep.Validate(); err != nil {
		return err
	}

	var (
		samples []estimator.Sample
		ref     *experiment.Reference
	)
	if c.IsSet(replayFlagLog) || conf.Log != nil {
		if samples, err = r.readLog(c, conf); err != nil {
			return err
		}
	} else {
		traj, err := simulate(c, conf)
		if err != nil {
			return err
		}
		samples = traj.Samples()
		ref = &experiment.Reference{Velocity: traj.Velocity, Distance: traj.Distance()}
	}

	report, err := experiment.Sweep(c.Context, samples, conf.Sweep.Runs(conf.Filter), experiment.Options{
		Parallel:  conf.Sweep.Parallel,
		Reference: ref,
		Logger:    r.logger.Sublogger("experiment"),
	})
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", report)
	if best, ok := report.Best(); ok {
		printf(c.App.Writer, "lowest velocity error: %s", best.Run.Name)
	}
	if conf.Plot != "" {
		if err := renderCompareFile(conf.Plot, report); err != nil {
			return err
		}
		printf(c.App.Writer, "plotted %s", conf.Plot)
	}
	return nil
}
