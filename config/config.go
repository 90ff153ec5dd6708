// Package config defines the on-disk configuration of an estimation run.
package config

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/adaptkalman/control"
	"go.viam.com/adaptkalman/experiment"
	"go.viam.com/adaptkalman/export"
	"go.viam.com/adaptkalman/sensorlog"
	"go.viam.com/adaptkalman/sim"
)

// Config is a complete run: one filter, one input source and optional outputs.
type Config struct {
	ConfigFilePath string `json:"-"`

	Filter control.Config `json:"filter"`

	// At most one of Simulation and Log is set. With neither, the default simulation is used.
	Simulation *sim.Config       `json:"simulation,omitempty"`
	Log        *sensorlog.Config `json:"log,omitempty"`

	Export *export.Config          `json:"export,omitempty"`
	Sweep  *experiment.SweepConfig `json:"sweep,omitempty"`
	// Plot is the path of a PNG to render the run into.
	Plot string `json:"plot,omitempty"`
}

// Default returns the default simulated linear run.
func Default() *Config {
	return &Config{Filter: control.DefaultConfig()}
}

// Ensure validates every section of the config.
func (c *Config) Ensure() error {
	if err := c.Filter.Validate(); err != nil {
		return utils.NewConfigValidationError("filter", err)
	}
	if c.Simulation != nil && c.Log != nil {
		return utils.NewConfigValidationError("", errors.New("only one of simulation and log may be set"))
	}
	if c.Simulation != nil {
		if err := c.Simulation.Validate(); err != nil {
			return utils.NewConfigValidationError("simulation", err)
		}
	}
	if c.Log != nil {
		if c.Log.Path == "" {
			return utils.NewConfigValidationFieldRequiredError("log", "path")
		}
		if err := c.Log.Validate(); err != nil {
			return utils.NewConfigValidationError("log", err)
		}
	}
	if c.Export != nil {
		if c.Export.Dir == "" {
			return utils.NewConfigValidationFieldRequiredError("export", "dir")
		}
		if err := c.Export.Validate(); err != nil {
			return utils.NewConfigValidationError("export", err)
		}
	}
	if c.Sweep != nil {
		if err := c.Sweep.Validate(); err != nil {
			return utils.NewConfigValidationError("sweep", err)
		}
	}
	return nil
}

// Source names the input of the run: "sim" or "real".
func (c *Config) Source() string {
	if c.Log != nil {
		return "real"
	}
	return "sim"
}
