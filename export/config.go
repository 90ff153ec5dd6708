package export

import (
	"math"

	"github.com/pkg/errors"

	"go.viam.com/adaptkalman/estimator"
)

// Entries dropped from either end of an export unless configured otherwise. They cut the filter's
// warm-up transient and the stop at the end of a recording.
const (
	DefaultTrimStart = 100
	DefaultTrimEnd   = 50
)

// DefaultConfig returns an export to dir with the default trims.
func DefaultConfig(dir string) *Config {
	return &Config{Dir: dir, TrimStart: DefaultTrimStart, TrimEnd: DefaultTrimEnd}
}

// Config selects where and which part of a series is exported.
type Config struct {
	Dir    string `json:"dir"`
	Prefix string `json:"prefix,omitempty"`
	// SliceStart and SliceEnd restrict the export to a time range; a zero SliceEnd means no limit.
	SliceStart float64 `json:"slice_start,omitempty"`
	SliceEnd   float64 `json:"slice_end,omitempty"`
	// TrimStart and TrimEnd drop entries from either end of the selected range.
	TrimStart int `json:"trim_start,omitempty"`
	TrimEnd   int `json:"trim_end,omitempty"`
}

// Validate checks the config.
func (cfg *Config) Validate() error {
	if cfg.Dir == "" {
		return errors.New("export dir is required")
	}
	if cfg.TrimStart < 0 || cfg.TrimEnd < 0 {
		return errors.New("trim counts must not be negative")
	}
	if cfg.SliceEnd != 0 && cfg.SliceEnd < cfg.SliceStart {
		return errors.Errorf("slice_end %v is before slice_start %v", cfg.SliceEnd, cfg.SliceStart)
	}
	return nil
}

// Range returns the half-open index range of series selected by cfg.
func (cfg *Config) Range(series *estimator.SampleSeries) (int, int, error) {
	end := cfg.SliceEnd
	if end == 0 {
		end = math.Inf(1)
	}
	begin, stop, err := series.Bounds(cfg.SliceStart, end)
	if err != nil {
		return 0, 0, err
	}
	begin += cfg.TrimStart
	stop -= cfg.TrimEnd
	if begin >= stop {
		return 0, 0, errors.Errorf("trimming %d+%d entries leaves nothing to export", cfg.TrimStart, cfg.TrimEnd)
	}
	return begin, stop, nil
}
