package runctl

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alexfrt/smartgridsim/wallclock"
	"github.com/sirupsen/logrus"
)

// ErrWatchdogFailure is returned when the watchdog could not keep polling the
// engine and the engine itself finished without error.
var ErrWatchdogFailure = errors.New("watchdog failure")

// WatchdogState is the state of a watchdog.
type WatchdogState int32

const (
	// WatchdogPolling is the state in which the watchdog waits and polls.
	WatchdogPolling WatchdogState = iota
	// WatchdogStopping is entered once a stop condition has been observed.
	WatchdogStopping
	// WatchdogTerminated is final. A terminated watchdog is never restarted.
	WatchdogTerminated
)

func (s WatchdogState) String() string {
	switch s {
	case WatchdogPolling:
		return "polling"
	case WatchdogStopping:
		return "stopping"
	case WatchdogTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// watchdog polls one engine for one run. Everything except stopRequested and
// state is owned by the watchdog goroutine until terminated is closed.
type watchdog struct {
	ctx      context.Context
	engine   Engine
	budget   Budget
	interval time.Duration
	clock    wallclock.Clock
	sink     ProgressSink
	metrics  *Metrics
	logger   logrus.FieldLogger

	start       time.Time
	runReturned chan struct{}
	terminated  chan struct{}

	state         atomic.Int32
	stopRequested atomic.Bool

	polls  int
	reason StopReason
	err    error
}

func (w *watchdog) State() WatchdogState {
	return WatchdogState(w.state.Load())
}

func (w *watchdog) loop() {
	defer close(w.terminated)
	defer w.state.Store(int32(WatchdogTerminated))
	defer w.recoverFailure()

	for {
		select {
		case <-w.runReturned:
			return
		case <-w.ctx.Done():
			w.stop(StopReasonCancelled)
			return
		case <-w.clock.After(w.interval):
		}

		if w.poll() {
			return
		}
	}
}

// poll takes one snapshot and reports whether the run must stop. The
// simulated-time budget is checked before the real-time one.
func (w *watchdog) poll() bool {
	simNow := w.engine.Now()
	wallNow := w.clock.Now()

	w.polls++
	p := Progress{
		Poll:        w.polls,
		SimElapsed:  simNow,
		SimBudget:   w.budget.MaxSimTime,
		RealElapsed: wallNow.Sub(w.start),
		RealBudget:  w.budget.MaxRealTime,
	}

	w.metrics.observePoll(p)
	if w.sink != nil {
		w.sink.ReportProgress(p)
	}

	switch {
	case p.SimElapsed >= p.SimBudget:
		w.stop(StopReasonSimBudget)
	case p.RealElapsed >= p.RealBudget:
		w.stop(StopReasonRealBudget)
	default:
		return false
	}

	return true
}

func (w *watchdog) stop(reason StopReason) {
	w.state.Store(int32(WatchdogStopping))
	w.reason = reason

	if !w.stopRequested.CompareAndSwap(false, true) {
		return
	}

	w.logger.WithField("reason", reason.String()).
		Info("requesting engine stop")
	w.engine.RequestStop()
}

func (w *watchdog) recoverFailure() {
	r := recover()
	if r == nil {
		return
	}

	w.err = fmt.Errorf("%w: %v", ErrWatchdogFailure, r)
	w.logger.WithError(w.err).Error("watchdog failed, stopping engine")

	defer func() {
		if r := recover(); r != nil {
			w.logger.WithField("panic", r).Error("engine stop request failed")
		}
	}()

	w.stop(StopReasonWatchdogFailure)
}

// join tells the watchdog that Run has returned and waits for it to exit.
func (w *watchdog) join() {
	close(w.runReturned)
	<-w.terminated
}
