package runctl

import (
	"fmt"
	"time"

	"github.com/alexfrt/smartgridsim/sim"
	"github.com/sirupsen/logrus"
)

// Progress is a snapshot taken by the watchdog at one poll.
type Progress struct {
	Poll        int
	SimElapsed  sim.VTimeInSec
	SimBudget   sim.VTimeInSec
	RealElapsed time.Duration
	RealBudget  time.Duration
}

// SimFraction returns the consumed share of the simulated-time budget.
func (p Progress) SimFraction() float64 {
	if p.SimBudget <= 0 {
		return 0
	}

	return float64(p.SimElapsed / p.SimBudget)
}

// RealFraction returns the consumed share of the real-time budget.
func (p Progress) RealFraction() float64 {
	if p.RealBudget <= 0 {
		return 0
	}

	return float64(p.RealElapsed) / float64(p.RealBudget)
}

func (p Progress) String() string {
	return fmt.Sprintf(
		"simulated %.3fs / %.3fs (%.1f%%), real %s / %s (%.1f%%)",
		float64(p.SimElapsed), float64(p.SimBudget), 100*p.SimFraction(),
		p.RealElapsed.Round(time.Millisecond), p.RealBudget,
		100*p.RealFraction(),
	)
}

// A ProgressSink receives one Progress per watchdog poll. Reports are
// delivered from the watchdog goroutine, in poll order.
type ProgressSink interface {
	ReportProgress(p Progress)
}

// ProgressSinkFunc adapts a function to a ProgressSink.
type ProgressSinkFunc func(p Progress)

// ReportProgress calls f(p).
func (f ProgressSinkFunc) ReportProgress(p Progress) {
	f(p)
}

type multiSink []ProgressSink

func (m multiSink) ReportProgress(p Progress) {
	for _, s := range m {
		s.ReportProgress(p)
	}
}

// MultiSink forwards every report to all the given sinks, in order. Nil sinks
// are skipped.
func MultiSink(sinks ...ProgressSink) ProgressSink {
	m := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}

	return m
}

type logSink struct {
	logger logrus.FieldLogger
}

// NewLogSink returns a sink that writes one info line per poll.
func NewLogSink(logger logrus.FieldLogger) ProgressSink {
	return logSink{logger: logger}
}

func (s logSink) ReportProgress(p Progress) {
	s.logger.WithFields(logrus.Fields{
		"poll":         p.Poll,
		"sim_elapsed":  float64(p.SimElapsed),
		"sim_budget":   float64(p.SimBudget),
		"real_elapsed": p.RealElapsed.Round(time.Millisecond).String(),
		"real_budget":  p.RealBudget.String(),
	}).Info(p.String())
}
