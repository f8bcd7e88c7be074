package sim

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event) error
}

// An Engine is a unit that keeps the discrete event simulation run.
//
// Now and RequestStop are safe to call from any goroutine while Run is
// executing on another one.
type Engine interface {
	Hookable
	EventScheduler

	// Run processes the events until the queue is empty or until a stop is
	// requested.
	Run() error

	// RequestStop asks the running Run call to return after the event that
	// is being handled finishes.
	RequestStop()
}
