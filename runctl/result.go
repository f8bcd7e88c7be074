package runctl

import (
	"time"

	"github.com/alexfrt/smartgridsim/sim"
)

// StopReason tells why a bounded run ended.
type StopReason int

const (
	// StopReasonNone means the engine returned before any budget was hit,
	// usually because its event queue was exhausted.
	StopReasonNone StopReason = iota
	// StopReasonSimBudget means the simulated-time budget was reached.
	StopReasonSimBudget
	// StopReasonRealBudget means the real-time budget was reached.
	StopReasonRealBudget
	// StopReasonCancelled means the context passed to Execute was done.
	StopReasonCancelled
	// StopReasonWatchdogFailure means the watchdog failed while polling and
	// stopped the engine on its way out.
	StopReasonWatchdogFailure
)

func (r StopReason) String() string {
	switch r {
	case StopReasonNone:
		return "none"
	case StopReasonSimBudget:
		return "sim_budget"
	case StopReasonRealBudget:
		return "real_budget"
	case StopReasonCancelled:
		return "cancelled"
	case StopReasonWatchdogFailure:
		return "watchdog_failure"
	default:
		return "unknown"
	}
}

// Result summarizes a bounded run.
type Result struct {
	FinalSimTime  sim.VTimeInSec
	StopReason    StopReason
	RealElapsed   time.Duration
	Polls         int
	StopRequested bool
}
