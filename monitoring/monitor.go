// Package monitoring turns a bounded simulation run into an HTTP server that
// reports its progress and lets an operator stop it early.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/alexfrt/smartgridsim/runctl"
	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"
)

// ErrStopRequested is the cancellation cause of contexts created by Context
// when an operator asks the run to stop.
var ErrStopRequested = errors.New("stop requested through the monitor")

// Monitor serves the state of a bounded run over HTTP. It is a
// runctl.ProgressSink, so it can be plugged into a Controller directly.
type Monitor struct {
	engine     runctl.Engine
	gatherer   prometheus.Gatherer
	portNumber int
	logger     logrus.FieldLogger

	statusLock sync.Mutex
	status     map[string]any

	progressLock sync.Mutex
	latest       runctl.Progress
	reports      int
	simBar       *ProgressBar
	realBar      *ProgressBar

	stopOnce sync.Once
	stopCh   chan struct{}

	server *http.Server
	url    string
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		gatherer: prometheus.DefaultGatherer,
		logger:   logrus.StandardLogger(),
		status:   make(map[string]any),
		stopCh:   make(chan struct{}),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 && portNumber != 0 {
		m.logger.Warnf("Port number %d is assigned to the monitoring server, "+
			"which is not allowed. Using a random port instead.", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithGatherer sets the Prometheus gatherer served on /metrics.
func (m *Monitor) WithGatherer(g prometheus.Gatherer) *Monitor {
	m.gatherer = g
	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(l logrus.FieldLogger) *Monitor {
	m.logger = l
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e runctl.Engine) {
	m.engine = e
}

// RegisterStatus adds a value to the /api/status dump. Values must not be
// mutated while the run is going on.
func (m *Monitor) RegisterStatus(name string, v any) {
	m.statusLock.Lock()
	defer m.statusLock.Unlock()

	m.status[name] = v
}

// StartRun resets the progress bars for a run with the given budget.
func (m *Monitor) StartRun(budget runctl.Budget) {
	m.progressLock.Lock()
	defer m.progressLock.Unlock()

	now := time.Now()
	m.simBar = &ProgressBar{
		ID:        xid.New().String(),
		Name:      "Simulated time",
		Unit:      "s",
		StartTime: now,
		Total:     float64(budget.MaxSimTime),
	}
	m.realBar = &ProgressBar{
		ID:        xid.New().String(),
		Name:      "Real time",
		Unit:      "s",
		StartTime: now,
		Total:     budget.MaxRealTime.Seconds(),
	}
	m.latest = runctl.Progress{
		SimBudget:  budget.MaxSimTime,
		RealBudget: budget.MaxRealTime,
	}
	m.reports = 0
}

// ReportProgress records the latest poll of the watchdog.
func (m *Monitor) ReportProgress(p runctl.Progress) {
	m.progressLock.Lock()
	defer m.progressLock.Unlock()

	m.latest = p
	m.reports++

	if m.simBar != nil {
		m.simBar.Update(float64(p.SimElapsed))
		m.realBar.Update(p.RealElapsed.Seconds())
	}
}

// Latest returns the last reported progress and the number of reports.
func (m *Monitor) Latest() (runctl.Progress, int) {
	m.progressLock.Lock()
	defer m.progressLock.Unlock()

	return m.latest, m.reports
}

// RequestStop asks the run to stop. Only the first call has an effect.
func (m *Monitor) RequestStop() {
	m.stopOnce.Do(func() {
		m.logger.Info("stop requested through the monitor")
		close(m.stopCh)
	})
}

// Context returns a context that is cancelled with ErrStopRequested when a
// stop is requested through the monitor. The returned cancel function must be
// called to release the context.
func (m *Monitor) Context(
	parent context.Context,
) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)

	go func() {
		select {
		case <-m.stopCh:
			cancel(ErrStopRequested)
		case <-ctx.Done():
		}
	}()

	return ctx, func() { cancel(context.Canceled) }
}

// Router returns the HTTP routes of the monitor.
func (m *Monitor) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/now", m.now).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", m.listProgress).Methods(http.MethodGet)
	r.HandleFunc("/api/stop", m.stop).Methods(http.MethodPost)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)
	r.HandleFunc("/api/status", m.dumpStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("listening for the monitor: %w", err)
	}

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.logger.Infof("Monitoring simulation with %s", m.url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.WithError(err).Error("monitoring server stopped")
		}
	}()

	return m.url, nil
}

// OpenInBrowser opens the monitor in the default browser.
func (m *Monitor) OpenInBrowser() error {
	if m.url == "" {
		return errors.New("monitoring server is not started")
	}

	browser.Stdout = os.Stderr

	return browser.OpenURL(m.url)
}

// Close stops the server.
func (m *Monitor) Close() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	if m.engine == nil {
		http.Error(w, "no engine registered", http.StatusServiceUnavailable)
		return
	}

	fmt.Fprintf(w, "{\"now\":%.10f}", float64(m.engine.Now()))
}

type progressRsp struct {
	Poll        int                   `json:"poll"`
	SimElapsed  float64               `json:"sim_elapsed"`
	SimBudget   float64               `json:"sim_budget"`
	RealElapsed float64               `json:"real_elapsed"`
	RealBudget  float64               `json:"real_budget"`
	Bars        []progressBarSnapshot `json:"bars"`
}

func (m *Monitor) progressSnapshot() progressRsp {
	m.progressLock.Lock()
	defer m.progressLock.Unlock()

	rsp := progressRsp{
		Poll:        m.latest.Poll,
		SimElapsed:  float64(m.latest.SimElapsed),
		SimBudget:   float64(m.latest.SimBudget),
		RealElapsed: m.latest.RealElapsed.Seconds(),
		RealBudget:  m.latest.RealBudget.Seconds(),
		Bars:        []progressBarSnapshot{},
	}

	if m.simBar != nil {
		rsp.Bars = append(rsp.Bars, m.simBar.snapshot(), m.realBar.snapshot())
	}

	return rsp
}

func (m *Monitor) listProgress(w http.ResponseWriter, _ *http.Request) {
	m.writeJSON(w, m.progressSnapshot())
}

func (m *Monitor) stop(w http.ResponseWriter, _ *http.Request) {
	m.RequestStop()
	w.WriteHeader(http.StatusAccepted)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.fail(w, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.fail(w, err)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		m.fail(w, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("seconds"); s != "" {
		seconds, err := strconv.ParseFloat(s, 64)
		if err != nil || seconds <= 0 {
			http.Error(w, "invalid seconds", http.StatusBadRequest)
			return
		}

		duration = time.Duration(seconds * float64(time.Second))
	}

	buf := bytes.NewBuffer(nil)
	if err := pprof.StartCPUProfile(buf); err != nil {
		m.fail(w, err)
		return
	}

	time.Sleep(duration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.fail(w, err)
		return
	}

	m.writeJSON(w, prof)
}

type statusRsp struct {
	Progress progressRsp
	Status   map[string]any
}

func (m *Monitor) dumpStatus(w http.ResponseWriter, _ *http.Request) {
	m.statusLock.Lock()
	status := make(map[string]any, len(m.status))
	for k, v := range m.status {
		status[k] = v
	}
	m.statusLock.Unlock()

	root := &statusRsp{
		Progress: m.progressSnapshot(),
		Status:   status,
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(root)
	serializer.SetMaxDepth(3)

	if err := serializer.Serialize(w); err != nil {
		m.logger.WithError(err).Error("cannot serialize status")
	}
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	if err != nil {
		m.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if _, err := w.Write(bytes); err != nil {
		m.logger.WithError(err).Warn("cannot write monitor response")
	}
}

func (m *Monitor) fail(w http.ResponseWriter, err error) {
	m.logger.WithError(err).Error("monitor request failed")
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
