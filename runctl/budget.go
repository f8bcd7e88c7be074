package runctl

import (
	"errors"
	"fmt"
	"time"

	"github.com/alexfrt/smartgridsim/sim"
)

// ErrInvalidBudget is returned when a budget has a non-positive field.
var ErrInvalidBudget = errors.New("invalid run budget")

// Budget bounds a simulation run in both the simulated and the real time
// domain. The run stops as soon as either bound is reached.
type Budget struct {
	MaxSimTime  sim.VTimeInSec
	MaxRealTime time.Duration
}

// Validate returns an error wrapping ErrInvalidBudget if any of the bounds is
// not strictly positive.
func (b Budget) Validate() error {
	if b.MaxSimTime <= 0 {
		return fmt.Errorf("%w: max simulated time %.3fs is not positive",
			ErrInvalidBudget, float64(b.MaxSimTime))
	}

	if b.MaxRealTime <= 0 {
		return fmt.Errorf("%w: max real time %s is not positive",
			ErrInvalidBudget, b.MaxRealTime)
	}

	return nil
}
