// Package meter provides a smart-meter traffic workload for the simulation
// engine: meters send fixed-size readings at a fixed interval to a head-end
// over a link with latency, jitter and loss.
package meter

import (
	"errors"
	"fmt"

	"github.com/alexfrt/smartgridsim/sim"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid meter config")

// Config describes the workload.
type Config struct {
	Meters      int            `yaml:"meters"`
	Interval    sim.VTimeInSec `yaml:"interval"`
	PacketSize  uint64         `yaml:"packet_size"`
	MaxPackets  uint64         `yaml:"max_packets"`
	StartTime   sim.VTimeInSec `yaml:"start_time"`
	StopTime    sim.VTimeInSec `yaml:"stop_time"`
	LinkLatency sim.VTimeInSec `yaml:"link_latency"`
	LinkJitter  sim.VTimeInSec `yaml:"link_jitter"`
	LossRate    float64        `yaml:"loss_rate"`
	Seed        int64          `yaml:"seed"`
}

// DefaultConfig returns one meter sending a 1500-byte reading every second
// from t=1s for one simulated day.
func DefaultConfig() Config {
	return Config{
		Meters:      1,
		Interval:    1,
		PacketSize:  1500,
		MaxPackets:  999999,
		StartTime:   1,
		StopTime:    86400,
		LinkLatency: 0.002,
		Seed:        1,
	}
}

// Validate checks that the workload can be built.
func (c Config) Validate() error {
	switch {
	case c.Meters <= 0:
		return fmt.Errorf("%w: meters must be positive, got %d", ErrInvalidConfig, c.Meters)
	case c.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	case c.StartTime < 0 || c.StopTime <= c.StartTime:
		return fmt.Errorf("%w: need 0 <= start_time < stop_time", ErrInvalidConfig)
	case c.LinkLatency < 0 || c.LinkJitter < 0:
		return fmt.Errorf("%w: link latency and jitter must not be negative", ErrInvalidConfig)
	case c.LossRate < 0 || c.LossRate > 1:
		return fmt.Errorf("%w: loss_rate must be within [0, 1]", ErrInvalidConfig)
	}

	return nil
}
