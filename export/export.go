// Package export writes run output as two-column text files, one per channel.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/adaptkalman/estimator"
	"go.viam.com/adaptkalman/logging"
)

// WriteColumn writes a "# t <header>" line followed by one space delimited row per entry.
func WriteColumn(w io.Writer, header string, t, values []float64) error {
	if len(t) != len(values) {
		return errors.Errorf("column %q has %d values for %d timestamps", header, len(values), len(t))
	}
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "# t %s\n", header); err != nil {
		return err
	}
	buf := make([]byte, 0, 64)
	for i := range t {
		buf = strconv.AppendFloat(buf[:0], t[i], 'e', 18, 64)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, values[i], 'e', 18, 64)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Exporter writes the channels of a series into Dir. File names are <Prefix>_input_vel.csv,
// <Prefix>_input_accel.csv and <Prefix>_robot_{dist,vel,ratio}_<Window>.csv.
type Exporter struct {
	Dir    string
	Prefix string
	Window string
	Logger logging.Logger
}

type channel struct {
	file   string
	header string
	column string
}

func (e *Exporter) channels() []channel {
	return []channel{
		{fmt.Sprintf("%s_input_vel.csv", e.Prefix), "u0", estimator.ColumnVelocity},
		{fmt.Sprintf("%s_input_accel.csv", e.Prefix), "a", estimator.ColumnAcceleration},
		{fmt.Sprintf("%s_robot_dist_%s.csv", e.Prefix, e.Window), "y", estimator.ColumnPosition},
		{fmt.Sprintf("%s_robot_vel_%s.csv", e.Prefix, e.Window), "v", estimator.ColumnVelocityEst},
		{fmt.Sprintf("%s_robot_ratio_%s.csv", e.Prefix, e.Window), "r", estimator.ColumnRatio},
	}
}

// Export writes entries [begin, end) of series with time rebased to series.T[begin]. It returns
// the paths written.
func (e *Exporter) Export(series *estimator.SampleSeries, begin, end int) ([]string, error) {
	if begin >= end {
		return nil, errors.Errorf("nothing to export in [%d, %d)", begin, end)
	}
	sliced, err := series.Slice(begin, end)
	if err != nil {
		return nil, err
	}
	rebased, err := sliced.Rebase(0)
	if err != nil {
		return nil, err
	}
	if e.Dir != "" {
		if err := os.MkdirAll(e.Dir, 0o750); err != nil {
			return nil, errors.Wrap(err, "creating export directory")
		}
	}

	var paths []string
	for _, ch := range e.channels() {
		values, err := rebased.Column(ch.column)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(e.Dir, ch.file)
		if err := writeFile(path, ch.header, rebased.T, values); err != nil {
			return paths, errors.Wrapf(err, "exporting %s", path)
		}
		paths = append(paths, path)
	}
	if e.Logger != nil {
		e.Logger.Infow("exported series", "dir", e.Dir, "prefix", e.Prefix, "entries", rebased.Len())
	}
	return paths, nil
}

func writeFile(path, header string, t, values []float64) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WriteColumn(f, header, t, values)
}
