package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexfrt/smartgridsim/meter"
	"github.com/alexfrt/smartgridsim/runctl"
	"github.com/alexfrt/smartgridsim/sim"
)

// BudgetConfig is the budget section of a scenario file.
type BudgetConfig struct {
	MaxSimTime  sim.VTimeInSec `yaml:"max_sim_time"`
	MaxRealTime time.Duration  `yaml:"max_real_time"`
}

// Config is a scenario file.
type Config struct {
	Budget       BudgetConfig  `yaml:"budget"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Workload     meter.Config  `yaml:"workload"`
}

// DefaultConfig bounds one simulated day of the default workload by one hour
// of real time.
func DefaultConfig() Config {
	return Config{
		Budget: BudgetConfig{
			MaxSimTime:  86400,
			MaxRealTime: time.Hour,
		},
		PollInterval: runctl.DefaultPollInterval,
		Workload:     meter.DefaultConfig(),
	}
}

// RunBudget converts the budget section.
func (c Config) RunBudget() runctl.Budget {
	return runctl.Budget{
		MaxSimTime:  c.Budget.MaxSimTime,
		MaxRealTime: c.Budget.MaxRealTime,
	}
}

// Validate checks every section of the scenario.
func (c Config) Validate() error {
	if c.PollInterval < 0 {
		return fmt.Errorf("%w: %v", runctl.ErrInvalidPollInterval, c.PollInterval)
	}

	return errors.Join(c.RunBudget().Validate(), c.Workload.Validate())
}

// ParseConfig decodes a scenario over the defaults. Unknown keys are
// rejected.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decoding scenario: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfig reads a scenario file.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	cfg, err := ParseConfig(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}
