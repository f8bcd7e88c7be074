// Package runctl runs a discrete-event simulation engine under two budgets: a
// cap on the simulated time and a cap on the real time the run may take.
//
// A watchdog goroutine polls the engine's simulated time and the host's
// monotonic clock at a fixed interval while the engine runs on the calling
// goroutine. As soon as either budget is exhausted, the watchdog asks the
// engine to stop. The call returns only after the engine has returned and the
// watchdog has exited.
//
//	final, err := runctl.ExecuteBounded(engine, runctl.Budget{
//		MaxSimTime:  86400,
//		MaxRealTime: 30 * time.Second,
//	}, time.Second, runctl.NewLogSink(logrus.StandardLogger()))
package runctl
