// Package cli contains the adaptkalman command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/adaptkalman/export"
	"go.viam.com/adaptkalman/logging"
)

const (
	// Global flags.
	generalFlagConfig = "config"
	generalFlagDebug  = "debug"

	// Filter flags.
	filterFlagRatio      = "ratio"
	filterFlagWindow     = "window"
	filterFlagWindowSize = "window-size"
	filterFlagAlpha      = "alpha"
	filterFlagBeta       = "beta"

	// Simulation flags.
	simFlagN         = "N"
	simFlagSimTime   = "sim-time"
	simFlagPeakVel   = "peak-vel"
	simFlagSeed      = "seed"
	simFlagShape     = "shape"
	simFlagNoiseless = "noiseless"

	// Replay flags.
	replayFlagLog = "log"

	// Output flags.
	outputFlagPlot       = "plot"
	outputFlagExportDir  = "export-dir"
	outputFlagPrefix     = "prefix"
	outputFlagSliceStart = "slice-start"
	outputFlagSliceEnd   = "slice-end"
	outputFlagTrimStart  = "trim-start"
	outputFlagTrimEnd    = "trim-end"

	// Sweep flags.
	sweepFlagAlphas   = "alphas"
	sweepFlagBetas    = "betas"
	sweepFlagKernels  = "kernels"
	sweepFlagParallel = "parallel"

	shapeCircle = "circle"
	shapeLine   = "line"
)

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:  filterFlagRatio,
			Value: 1. / 3,
			Usage: "process to measurement covariance ratio, Q = ratio*R*I",
		},
		&cli.StringFlag{
			Name:  filterFlagWindow,
			Usage: "adaptation window kernel, sig or exp; empty or linear runs the linear filter",
		},
		&cli.IntFlag{
			Name:  filterFlagWindowSize,
			Value: 5,
			Usage: "number of normalized innovations in the adaptation window",
		},
		&cli.Float64Flag{
			Name:  filterFlagAlpha,
			Value: 1,
			Usage: "velocity measurement scale factor",
		},
		&cli.Float64Flag{
			Name:  filterFlagBeta,
			Value: 1,
			Usage: "acceleration input scale factor",
		},
	}
}

func simFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  simFlagN,
			Value: 1600,
			Usage: "number of simulated samples",
		},
		&cli.Float64Flag{
			Name:  simFlagSimTime,
			Value: 5,
			Usage: "simulated duration in seconds",
		},
		&cli.Float64Flag{
			Name:  simFlagPeakVel,
			Value: 0.14,
			Usage: "peak segment velocity in m/s",
		},
		&cli.Uint64Flag{
			Name:  simFlagSeed,
			Usage: "noise seed",
		},
		&cli.StringFlag{
			Name:  simFlagShape,
			Value: shapeCircle,
			Usage: "simulated path, circle or line",
		},
		&cli.BoolFlag{
			Name:  simFlagNoiseless,
			Usage: "disable acceleration noise",
		},
	}
}

func outputFlags(prefix string) []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{
			Name:  outputFlagPlot,
			Usage: "render the run into a PNG at `FILE`",
		},
		&cli.PathFlag{
			Name:  outputFlagExportDir,
			Usage: "export the run as text files into `DIR`",
		},
		&cli.StringFlag{
			Name:  outputFlagPrefix,
			Value: prefix,
			Usage: "file name prefix of exported files",
		},
		&cli.Float64Flag{
			Name:  outputFlagSliceStart,
			Usage: "first timestamp to export",
		},
		&cli.Float64Flag{
			Name:  outputFlagSliceEnd,
			Usage: "last timestamp to export, 0 for no limit",
		},
		&cli.IntFlag{
			Name:  outputFlagTrimStart,
			Value: export.DefaultTrimStart,
			Usage: "entries to drop from the start of the exported range",
		},
		&cli.IntFlag{
			Name:  outputFlagTrimEnd,
			Value: export.DefaultTrimEnd,
			Usage: "entries to drop from the end of the exported range",
		},
	}
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	r := &runner{logger: logging.NewBlankLogger("adaptkalman")}
	return &cli.App{
		Name:            "adaptkalman",
		Usage:           "estimate distance travelled from wheel velocity and acceleration",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    generalFlagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: r.before,
		Commands: []*cli.Command{
			{
				Name:   "simulate",
				Usage:  "run the filter over a simulated drive",
				Flags:  concat(filterFlags(), simFlags(), outputFlags("sim")),
				Action: r.simulateAction,
			},
			{
				Name:  "replay",
				Usage: "run the filter over a recorded log",
				Flags: concat(filterFlags(), []cli.Flag{
					&cli.PathFlag{
						Name:  replayFlagLog,
						Usage: "read samples from `FILE`",
					},
				}, outputFlags("real")),
				Action: r.replayAction,
			},
			{
				Name:  "sweep",
				Usage: "compare several filter configurations over the same input",
				Flags: concat(filterFlags(), simFlags(), []cli.Flag{
					&cli.PathFlag{
						Name:  replayFlagLog,
						Usage: "read samples from `FILE` instead of simulating",
					},
					&cli.Float64SliceFlag{
						Name:  sweepFlagAlphas,
						Usage: "velocity scale factors to try",
					},
					&cli.Float64SliceFlag{
						Name:  sweepFlagBetas,
						Usage: "acceleration scale factors to try",
					},
					&cli.StringSliceFlag{
						Name:  sweepFlagKernels,
						Usage: "window kernels to compare, linear for the linear filter",
					},
					&cli.IntFlag{
						Name:  sweepFlagParallel,
						Usage: "maximum concurrent runs, 0 for no limit",
					},
					&cli.PathFlag{
						Name:  outputFlagPlot,
						Usage: "render every run into a PNG at `FILE`",
					},
				}),
				Action: r.sweepAction,
			},
		},
	}
}
