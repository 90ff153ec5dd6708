package cli

import (
	"os"

	"go.uber.org/multierr"

	"go.viam.com/adaptkalman/experiment"
	"go.viam.com/adaptkalman/plotting"
)

func renderCompareFile(path string, report *experiment.Report) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return plotting.RenderCompare(f, report.Series(), plotting.Options{})
}
