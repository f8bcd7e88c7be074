package runctl

import "github.com/alexfrt/smartgridsim/sim"

//go:generate mockgen -destination "mock_runctl_test.go" -package $GOPACKAGE -write_package_comment=false github.com/alexfrt/smartgridsim/runctl Engine,ProgressSink

// Engine is the simulation engine supervised by the controller.
//
// Now must be safe to call while Run executes on another goroutine.
// RequestStop must be safe to call from any goroutine; Run returns once the
// engine can stop, not necessarily immediately.
type Engine interface {
	Now() sim.VTimeInSec
	Run() error
	RequestStop()
}
