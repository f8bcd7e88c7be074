package runctl

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/alexfrt/smartgridsim/sim"
)

// fakeEngine advances its simulated clock by step every tick of real time
// until it is stopped or reaches horizon.
type fakeEngine struct {
	step    sim.VTimeInSec
	tick    time.Duration
	horizon sim.VTimeInSec
	runErr  error

	lock      sync.RWMutex
	now       sim.VTimeInSec
	stopOnce  sync.Once
	stopped   chan struct{}
	stopCalls atomic.Int32
}

func newFakeEngine(step sim.VTimeInSec, tick time.Duration) *fakeEngine {
	return &fakeEngine{
		step:    step,
		tick:    tick,
		stopped: make(chan struct{}),
	}
}

func (e *fakeEngine) Now() sim.VTimeInSec {
	e.lock.RLock()
	defer e.lock.RUnlock()

	return e.now
}

func (e *fakeEngine) Run() error {
	for {
		select {
		case <-e.stopped:
			return e.runErr
		case <-time.After(e.tick):
		}

		e.lock.Lock()
		e.now += e.step
		reached := e.horizon > 0 && e.now >= e.horizon
		e.lock.Unlock()

		if reached {
			return e.runErr
		}
	}
}

func (e *fakeEngine) RequestStop() {
	e.stopCalls.Add(1)
	e.stopOnce.Do(func() { close(e.stopped) })
}

// panickyEngine fails every Now call made while it runs.
type panickyEngine struct {
	running  atomic.Bool
	stopped  chan struct{}
	stopOnce sync.Once
}

func (e *panickyEngine) Now() sim.VTimeInSec {
	if e.running.Load() {
		panic("clock unavailable")
	}

	return 0
}

func (e *panickyEngine) Run() error {
	e.running.Store(true)
	<-e.stopped
	e.running.Store(false)

	return nil
}

func (e *panickyEngine) RequestStop() {
	e.stopOnce.Do(func() { close(e.stopped) })
}
