// Package sensorlog reads recorded, already time aligned velocity and acceleration channels into
// estimator samples.
//
// A log is delimited text. The first line starting with '#' names the columns, e.g.
//
//	# t u0 a psi_dot
//
// and every following non-comment line holds one row, separated by whitespace or commas. The
// velocity column is "u0" or "v". Acceleration is either a single forward "a" column or the three
// IMU axes "ax ay az", which are projected onto the configured forward axis. The yaw rate column
// ("psi_dot", "yaw" or "wz") is optional.
package sensorlog

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/adaptkalman/control"
	"go.viam.com/adaptkalman/estimator"
	"go.viam.com/adaptkalman/logging"
)

// Config configures a log read.
type Config struct {
	Path string `json:"path"`
	// ForwardAxis is the robot's forward direction in the IMU frame. Defaults to +x.
	ForwardAxis []float64 `json:"forward_axis,omitempty"`
	// StartTime and EndTime restrict the samples returned; a zero EndTime means no limit.
	StartTime float64 `json:"start_time,omitempty"`
	EndTime   float64 `json:"end_time,omitempty"`
}

// Validate checks the config.
func (cfg *Config) Validate() error {
	if cfg.Path == "" {
		return errors.New("log path is required")
	}
	if _, err := cfg.forward(); err != nil {
		return err
	}
	if cfg.EndTime != 0 && cfg.EndTime < cfg.StartTime {
		return errors.Errorf("end_time %v is before start_time %v", cfg.EndTime, cfg.StartTime)
	}
	return nil
}

func (cfg *Config) forward() (r3.Vector, error) {
	if cfg.ForwardAxis == nil {
		return r3.Vector{X: 1}, nil
	}
	if len(cfg.ForwardAxis) != 3 {
		return r3.Vector{}, errors.Errorf("forward_axis needs 3 components, got %d", len(cfg.ForwardAxis))
	}
	v := r3.Vector{X: cfg.ForwardAxis[0], Y: cfg.ForwardAxis[1], Z: cfg.ForwardAxis[2]}
	if v.Norm() == 0 {
		return r3.Vector{}, errors.New("forward_axis must not be zero")
	}
	return v.Normalize(), nil
}

// Read opens and reads the log named by cfg.Path.
func Read(ctx context.Context, cfg Config, logger logging.Logger) ([]estimator.Sample, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	//nolint:gosec
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sensor log")
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warnw("closing sensor log", "path", cfg.Path, "error", err)
		}
	}()

	samples, err := ReadSamples(ctx, f, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", cfg.Path)
	}
	logger.Infow("read sensor log", "path", cfg.Path, "samples", len(samples))
	return samples, nil
}

type columns struct {
	t, velocity, accel, yaw int
	ax, ay, az              int
	n                       int
}

func parseHeader(line string) (columns, error) {
	cols := columns{t: -1, velocity: -1, accel: -1, yaw: -1, ax: -1, ay: -1, az: -1}
	names := fields(strings.TrimPrefix(strings.TrimSpace(line), "#"))
	cols.n = len(names)
	for i, name := range names {
		switch strings.ToLower(name) {
		case "t", "time":
			cols.t = i
		case "u0", "v", "velocity":
			cols.velocity = i
		case "a", "accel", "acceleration":
			cols.accel = i
		case "ax":
			cols.ax = i
		case "ay":
			cols.ay = i
		case "az":
			cols.az = i
		case "psi_dot", "yaw", "wz":
			cols.yaw = i
		}
	}
	switch {
	case cols.t < 0:
		return cols, errors.New("header has no time column")
	case cols.velocity < 0:
		return cols, errors.New("header has no velocity column")
	case cols.accel < 0 && (cols.ax < 0 || cols.ay < 0 || cols.az < 0):
		return cols, errors.New("header needs an acceleration column or all of ax, ay, az")
	}
	return cols, nil
}

// ReadSamples parses a log from r. Rows outside [cfg.StartTime, cfg.EndTime] are dropped. Ragged or
// non-numeric rows and non increasing timestamps are returned as *control.InvalidSampleError.
func ReadSamples(ctx context.Context, r io.Reader, cfg Config) ([]estimator.Sample, error) {
	forward, err := cfg.forward()
	if err != nil {
		return nil, err
	}
	endTime := cfg.EndTime
	if endTime == 0 {
		endTime = math.Inf(1)
	}

	var (
		cols      columns
		haveCols  bool
		samples   []estimator.Sample
		row       int
		lastStamp = math.Inf(-1)
	)
	scanner := bufio.NewScanner(r)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if !haveCols {
				if cols, err = parseHeader(line); err != nil {
					return nil, errors.Wrapf(err, "line %d", lineNum)
				}
				haveCols = true
			}
			continue
		}
		if !haveCols {
			return nil, errors.Errorf("line %d: data before header", lineNum)
		}

		values, err := parseRow(line, cols.n)
		if err != nil {
			return nil, control.NewInvalidSampleError(row, "line %d: %v", lineNum, err)
		}
		s := estimator.Sample{T: values[cols.t], Velocity: values[cols.velocity]}
		if cols.accel >= 0 {
			s.Acceleration = values[cols.accel]
		} else {
			imu := r3.Vector{X: values[cols.ax], Y: values[cols.ay], Z: values[cols.az]}
			s.Acceleration = imu.Dot(forward)
		}
		if cols.yaw >= 0 {
			s.YawRate = values[cols.yaw]
		}
		if !(s.T > lastStamp) {
			return nil, control.NewInvalidSampleError(row, "line %d: timestamp %v does not follow %v", lineNum, s.T, lastStamp)
		}
		lastStamp = s.T
		row++
		if s.T < cfg.StartTime || s.T > endTime {
			continue
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !haveCols {
		return nil, errors.New("log has no header")
	}
	return samples, nil
}

func parseRow(line string, n int) ([]float64, error) {
	parts := fields(line)
	if len(parts) != n {
		return nil, errors.Errorf("expected %d values, got %d", n, len(parts))
	}
	values := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Errorf("non-finite value %q", p)
		}
		values[i] = v
	}
	return values, nil
}

func fields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}
