package datarecording

import (
	"context"
	"errors"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/alexfrt/smartgridsim/runctl"
)

// Table names used by RunRecorder.
const (
	RunsTable     = "runs"
	ProgressTable = "progress"
)

// RunEntry is one row of the runs table.
type RunEntry struct {
	RunID         string
	MaxSimTime    float64
	MaxRealTime   float64
	FinalSimTime  float64
	RealElapsed   float64
	Polls         int
	StopReason    string
	StopRequested bool
	Error         string
}

// ProgressEntry is one row of the progress table.
type ProgressEntry struct {
	RunID       string
	Poll        int
	SimElapsed  float64
	SimBudget   float64
	RealElapsed float64
	RealBudget  float64
}

// RunRecorder records the progress samples and the outcome of one bounded
// run. It can be used as a runctl.ProgressSink.
type RunRecorder struct {
	recorder DataRecorder
	runID    string
	logger   logrus.FieldLogger
}

// NewRunRecorder creates the run tables in recorder.
func NewRunRecorder(recorder DataRecorder) (*RunRecorder, error) {
	if err := recorder.CreateTable(RunsTable, RunEntry{}); err != nil {
		return nil, err
	}

	if err := recorder.CreateTable(ProgressTable, ProgressEntry{}); err != nil {
		return nil, err
	}

	runID := xid.New().String()

	return &RunRecorder{
		recorder: recorder,
		runID:    runID,
		logger:   logrus.WithField("run_id", runID),
	}, nil
}

// RunID returns the identifier written in every row of this run.
func (r *RunRecorder) RunID() string {
	return r.runID
}

// ReportProgress buffers one progress row. Failures are logged since the
// watchdog cannot act on them.
func (r *RunRecorder) ReportProgress(p runctl.Progress) {
	err := r.recorder.InsertData(ProgressTable, ProgressEntry{
		RunID:       r.runID,
		Poll:        p.Poll,
		SimElapsed:  float64(p.SimElapsed),
		SimBudget:   float64(p.SimBudget),
		RealElapsed: p.RealElapsed.Seconds(),
		RealBudget:  p.RealBudget.Seconds(),
	})
	if err != nil {
		r.logger.WithError(err).Warn("failed to record progress")
	}
}

// RecordResult writes the outcome of the run and flushes the recorder.
func (r *RunRecorder) RecordResult(
	budget runctl.Budget,
	result runctl.Result,
	runErr error,
) error {
	entry := RunEntry{
		RunID:         r.runID,
		MaxSimTime:    float64(budget.MaxSimTime),
		MaxRealTime:   budget.MaxRealTime.Seconds(),
		FinalSimTime:  float64(result.FinalSimTime),
		RealElapsed:   result.RealElapsed.Seconds(),
		Polls:         result.Polls,
		StopReason:    result.StopReason.String(),
		StopRequested: result.StopRequested,
	}

	if runErr != nil {
		entry.Error = runErr.Error()
	}

	return errors.Join(
		r.recorder.InsertData(RunsTable, entry),
		r.recorder.Flush(),
	)
}

// ListRuns reads back all the recorded runs, oldest first.
func ListRuns(ctx context.Context, reader DataReader) ([]RunEntry, error) {
	reader.MapTable(RunsTable, RunEntry{})

	results, _, err := reader.Query(ctx, RunsTable, QueryParams{
		OrderBy: "rowid",
	})
	if err != nil {
		return nil, err
	}

	runs := make([]RunEntry, 0, len(results))
	for _, res := range results {
		runs = append(runs, *res.(*RunEntry))
	}

	return runs, nil
}
