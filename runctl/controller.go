package runctl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexfrt/smartgridsim/sim"
	"github.com/alexfrt/smartgridsim/wallclock"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is the watchdog cadence used when none is configured.
const DefaultPollInterval = time.Second

// ErrInvalidPollInterval is returned when the poll interval is negative.
var ErrInvalidPollInterval = errors.New("invalid poll interval")

// Builder builds Controllers.
type Builder struct {
	pollInterval time.Duration
	clock        wallclock.Clock
	sink         ProgressSink
	logger       logrus.FieldLogger
	metrics      *Metrics
}

// MakeBuilder creates a Builder with the default poll interval, the system
// clock, and the standard logrus logger.
func MakeBuilder() Builder {
	return Builder{
		pollInterval: DefaultPollInterval,
		clock:        wallclock.System(),
		logger:       logrus.StandardLogger(),
	}
}

// WithPollInterval sets how often the watchdog polls. Zero keeps the default.
func (b Builder) WithPollInterval(d time.Duration) Builder {
	if d == 0 {
		d = DefaultPollInterval
	}

	b.pollInterval = d

	return b
}

// WithClock sets the real-time source.
func (b Builder) WithClock(c wallclock.Clock) Builder {
	b.clock = c
	return b
}

// WithProgressSink sets where progress reports go.
func (b Builder) WithProgressSink(s ProgressSink) Builder {
	b.sink = s
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l logrus.FieldLogger) Builder {
	b.logger = l
	return b
}

// WithMetrics sets the Prometheus metrics to update.
func (b Builder) WithMetrics(m *Metrics) Builder {
	b.metrics = m
	return b
}

// Build creates the Controller.
func (b Builder) Build() *Controller {
	return &Controller{
		pollInterval: b.pollInterval,
		clock:        b.clock,
		sink:         b.sink,
		logger:       b.logger,
		metrics:      b.metrics,
	}
}

// A Controller runs engines under a Budget. A Controller can be reused for
// many runs, one at a time or concurrently; each run gets its own watchdog.
type Controller struct {
	pollInterval time.Duration
	clock        wallclock.Clock
	sink         ProgressSink
	logger       logrus.FieldLogger
	metrics      *Metrics
}

// ExecuteBounded runs the engine until its queue is exhausted or until one of
// the budgets is reached, and returns the final simulated time. A zero
// pollInterval selects DefaultPollInterval. The sink may be nil.
func ExecuteBounded(
	engine Engine,
	budget Budget,
	pollInterval time.Duration,
	sink ProgressSink,
) (sim.VTimeInSec, error) {
	c := MakeBuilder().
		WithPollInterval(pollInterval).
		WithProgressSink(sink).
		Build()

	res, err := c.Execute(context.Background(), engine, budget)

	return res.FinalSimTime, err
}

// Execute runs the engine on the calling goroutine while a watchdog enforces
// the budget. It returns after both the engine and the watchdog have finished.
//
// An error returned by the engine is returned unchanged. Otherwise, a
// watchdog failure or the cause of a context cancellation is returned.
func (c *Controller) Execute(
	ctx context.Context,
	engine Engine,
	budget Budget,
) (Result, error) {
	if err := budget.Validate(); err != nil {
		return Result{}, err
	}

	if c.pollInterval < 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidPollInterval, c.pollInterval)
	}

	w := &watchdog{
		ctx:         ctx,
		engine:      engine,
		budget:      budget,
		interval:    c.pollInterval,
		clock:       c.clock,
		sink:        c.sink,
		metrics:     c.metrics,
		logger:      c.logger,
		start:       c.clock.Now(),
		runReturned: make(chan struct{}),
		terminated:  make(chan struct{}),
	}

	c.logger.WithFields(logrus.Fields{
		"max_sim_time":  float64(budget.MaxSimTime),
		"max_real_time": budget.MaxRealTime.String(),
		"poll_interval": c.pollInterval.String(),
	}).Debug("starting bounded run")

	go w.loop()
	runErr := runAndJoin(engine, w)

	res := Result{
		FinalSimTime:  engine.Now(),
		StopReason:    w.reason,
		RealElapsed:   c.clock.Now().Sub(w.start),
		Polls:         w.polls,
		StopRequested: w.stopRequested.Load(),
	}
	c.metrics.observeStop(res)

	c.logger.WithFields(logrus.Fields{
		"final_sim_time": float64(res.FinalSimTime),
		"real_elapsed":   res.RealElapsed.Round(time.Millisecond).String(),
		"reason":         res.StopReason.String(),
		"polls":          res.Polls,
	}).Info("bounded run finished")

	switch {
	case runErr != nil:
		return res, runErr
	case w.err != nil:
		return res, w.err
	case res.StopReason == StopReasonCancelled:
		return res, context.Cause(ctx)
	}

	return res, nil
}

// runAndJoin joins the watchdog even if Run panics.
func runAndJoin(engine Engine, w *watchdog) error {
	defer w.join()

	return engine.Run()
}
