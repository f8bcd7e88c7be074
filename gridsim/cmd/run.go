package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alexfrt/smartgridsim/datarecording"
	"github.com/alexfrt/smartgridsim/flowstats"
	"github.com/alexfrt/smartgridsim/meter"
	"github.com/alexfrt/smartgridsim/monitoring"
	"github.com/alexfrt/smartgridsim/runctl"
	"github.com/alexfrt/smartgridsim/sim"
)

type runOptions struct {
	configPath  string
	outDir      string
	recordPath  string
	monitor     bool
	monitorPort int
	openBrowser bool
	logEvents   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one bounded trial of a scenario.",
	Long: "`run --config scenario.yaml` runs the scenario until its queue is " +
		"empty or a budget is hit, and writes FlowMon.xml into --out.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := runOptions{
			configPath:  stringSetting(cmd, "config", "GRIDSIM_CONFIG"),
			outDir:      stringSetting(cmd, "out", "GRIDSIM_OUT"),
			recordPath:  stringSetting(cmd, "record", "GRIDSIM_RECORD"),
			monitor:     cmd.Flags().Changed("monitor-port"),
			openBrowser: cmd.Flags().Changed("open-browser"),
		}
		opts.monitorPort, _ = cmd.Flags().GetInt("monitor-port")
		opts.logEvents, _ = cmd.Flags().GetBool("log-events")

		return runTrial(cmd.Context(), opts, logrus.StandardLogger())
	},
}

func init() {
	runCmd.Flags().String("config", "scenario.yaml", "Scenario file.")
	runCmd.Flags().String("out", ".", "Directory receiving FlowMon.xml.")
	runCmd.Flags().String("record", "",
		"Record the run into this SQLite database (without the .sqlite3 suffix).")
	runCmd.Flags().Int("monitor-port", 0,
		"Serve the monitor on this port. Ports below 1000 select a random port.")
	runCmd.Flags().Bool("open-browser", false,
		"Open the monitor in the default browser. Implies --monitor-port.")

	runCmd.Flags().Bool("log-events", false,
		"Log every handled event at debug level.")

	rootCmd.AddCommand(runCmd)
}

func runTrial(
	ctx context.Context,
	opts runOptions,
	logger logrus.FieldLogger,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	engine := sim.NewSerialEngine()
	events := sim.NewEventCounter()
	engine.AcceptHook(events)

	if opts.logEvents {
		engine.AcceptHook(sim.NewEventLogger(logger))
	}

	scenario, err := meter.Build(engine, cfg.Workload)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()

	metrics, err := runctl.NewMetrics(registry)
	if err != nil {
		return err
	}

	budget := cfg.RunBudget()
	sinks := []runctl.ProgressSink{runctl.NewLogSink(logger)}

	if opts.monitor || opts.openBrowser {
		m, stopCtx, cancel, err := startMonitor(ctx, opts, cfg, engine, registry, logger)
		if err != nil {
			return err
		}
		defer cancel()
		defer m.Close()

		ctx = stopCtx
		sinks = append(sinks, m)
	}

	var runs *datarecording.RunRecorder

	if opts.recordPath != "" {
		recorder, err := datarecording.New(opts.recordPath)
		if err != nil {
			return err
		}
		defer recorder.Close()

		runs, err = datarecording.NewRunRecorder(recorder)
		if err != nil {
			return err
		}

		sinks = append(sinks, runs)
	}

	controller := runctl.MakeBuilder().
		WithPollInterval(cfg.PollInterval).
		WithProgressSink(runctl.MultiSink(sinks...)).
		WithLogger(logger).
		WithMetrics(metrics).
		Build()

	result, runErr := controller.Execute(ctx, engine, budget)

	if runs != nil {
		if err := runs.RecordResult(budget, result, runErr); err != nil {
			logger.WithError(err).Error("failed to record the run")
		}
	}

	if errors.Is(runErr, monitoring.ErrStopRequested) {
		logger.Warn("run stopped from the monitor")
		runErr = nil
	}

	if runErr != nil {
		return runErr
	}

	flows := scenario.FlowStats()
	if err := writeFlowMon(opts.outDir, flows); err != nil {
		return err
	}

	trial := flowstats.ComputeTrial(flows)
	logger.WithFields(logrus.Fields{
		"final_sim_time": result.FinalSimTime,
		"stop_reason":    result.StopReason.String(),
		"real_elapsed":   result.RealElapsed,
		"events":         events.Count(),
		"loss_pct":       trial.Loss,
		"delay_ms":       trial.Delay,
		"jitter_ms":      trial.Jitter,
	}).Info("trial finished")

	return nil
}

func startMonitor(
	ctx context.Context,
	opts runOptions,
	cfg Config,
	engine runctl.Engine,
	gatherer prometheus.Gatherer,
	logger logrus.FieldLogger,
) (*monitoring.Monitor, context.Context, context.CancelFunc, error) {
	m := monitoring.NewMonitor().
		WithPortNumber(opts.monitorPort).
		WithGatherer(gatherer).
		WithLogger(logger)
	m.RegisterEngine(engine)
	m.RegisterStatus("config", cfg)
	m.StartRun(cfg.RunBudget())

	if _, err := m.StartServer(); err != nil {
		return nil, nil, nil, err
	}

	if opts.openBrowser {
		if err := m.OpenInBrowser(); err != nil {
			logger.WithError(err).Warn("cannot open the monitor in a browser")
		}
	}

	stopCtx, cancel := m.Context(ctx)

	return m, stopCtx, cancel, nil
}

func writeFlowMon(dir string, flows []flowstats.Flow) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, flowstats.FlowMonFile))
	if err != nil {
		return err
	}

	if err := flowstats.Encode(f, flows); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
