package runctl

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus metrics updated by a Controller. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Polls       prometheus.Counter
	Stops       *prometheus.CounterVec
	SimTime     prometheus.Gauge
	RealElapsed prometheus.Gauge
}

// NewMetrics registers the controller metrics against the given registerer,
// defaulting to the global Prometheus registry when nil. Metrics already
// registered by another Controller are shared.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	polls, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gridsim_watchdog_polls_total",
		Help: "Total number of watchdog polls.",
	}), "gridsim_watchdog_polls_total")
	if err != nil {
		return nil, err
	}

	stops, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gridsim_run_stops_total",
		Help: "Total number of finished bounded runs, labeled by stop reason.",
	}, []string{"reason"}), "gridsim_run_stops_total")
	if err != nil {
		return nil, err
	}

	simTime, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridsim_sim_time_seconds",
		Help: "Simulated time observed at the last poll.",
	}), "gridsim_sim_time_seconds")
	if err != nil {
		return nil, err
	}

	realElapsed, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gridsim_real_elapsed_seconds",
		Help: "Real time elapsed since the run started, at the last poll.",
	}), "gridsim_real_elapsed_seconds")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Polls:       polls,
		Stops:       stops,
		SimTime:     simTime,
		RealElapsed: realElapsed,
	}, nil
}

func (m *Metrics) observePoll(p Progress) {
	if m == nil {
		return
	}

	m.Polls.Inc()
	m.SimTime.Set(float64(p.SimElapsed))
	m.RealElapsed.Set(p.RealElapsed.Seconds())
}

func (m *Metrics) observeStop(r Result) {
	if m == nil {
		return
	}

	m.Stops.WithLabelValues(r.StopReason.String()).Inc()
	m.SimTime.Set(float64(r.FinalSimTime))
	m.RealElapsed.Set(r.RealElapsed.Seconds())
}

func register[T prometheus.Collector](
	reg prometheus.Registerer,
	c T,
	name string,
) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}

		return c, fmt.Errorf("collector %s already registered with incompatible type", name)
	}

	return c, err
}
