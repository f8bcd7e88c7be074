package flowstats

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// FlowMonFile is the name of the statistics file inside a trial directory.
const FlowMonFile = "FlowMon.xml"

// Trial holds the averages of one simulation trial. Loss is in percent,
// delay and jitter are in milliseconds per received packet. A value is NaN
// when no flow qualifies for it.
type Trial struct {
	Name   string
	Loss   float64
	Delay  float64
	Jitter float64
}

// ComputeTrial averages the flows of one trial. Flows that sent nothing are
// left out of the loss average, and flows that received at most one packet
// are left out of the delay and jitter averages.
func ComputeTrial(flows []Flow) Trial {
	var loss, delay, jitter []float64

	for _, f := range flows {
		if f.TxPackets > 0 {
			loss = append(loss,
				100.0*float64(f.LostPackets)/float64(f.TxPackets))
		}

		if f.RxPackets > 1 {
			rx := float64(f.RxPackets)
			delay = append(delay, f.DelaySum.Milliseconds()/rx)
			jitter = append(jitter, f.JitterSum.Milliseconds()/rx)
		}
	}

	return Trial{
		Loss:   mean(loss),
		Delay:  mean(delay),
		Jitter: mean(jitter),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}

	return stat.Mean(xs, nil)
}

// LoadTrial reads the statistics file of one trial directory.
func LoadTrial(dir string) (Trial, error) {
	f, err := os.Open(filepath.Join(dir, FlowMonFile))
	if err != nil {
		return Trial{}, err
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return Trial{}, fmt.Errorf("%s: %w", dir, err)
	}

	t := ComputeTrial(doc.Flows)
	t.Name = filepath.Base(dir)

	return t, nil
}

// LoadTrials reads every "trial*" subdirectory of dir, in name order.
func LoadTrials(dir string) ([]Trial, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	var trials []Trial
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "trial") {
			continue
		}

		t, err := LoadTrial(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}

		trials = append(trials, t)
	}

	return trials, nil
}

// Summary describes a series with population statistics.
type Summary struct {
	Mean     float64
	StdDev   float64
	Variance float64
}

// Summarize computes the mean, standard deviation and variance of a series.
func Summarize(series []float64) Summary {
	if len(series) == 0 {
		return Summary{Mean: math.NaN(), StdDev: math.NaN(), Variance: math.NaN()}
	}

	m, v := stat.PopMeanVariance(series, nil)

	return Summary{Mean: m, StdDev: math.Sqrt(v), Variance: v}
}

// Format renders the summary as one aligned report line.
func (s Summary) Format(name string) string {
	return fmt.Sprintf("%-15s - Mean: %-7.2f - StdDev: %-6.2f - Variance: %-8.2f",
		name, s.Mean, s.StdDev, s.Variance)
}

// Report summarizes the three metrics across trials.
type Report struct {
	Trials int
	Loss   Summary
	Delay  Summary
	Jitter Summary
}

// SummarizeTrials builds the cross-trial report.
func SummarizeTrials(trials []Trial) Report {
	loss := make([]float64, 0, len(trials))
	delay := make([]float64, 0, len(trials))
	jitter := make([]float64, 0, len(trials))

	for _, t := range trials {
		loss = append(loss, t.Loss)
		delay = append(delay, t.Delay)
		jitter = append(jitter, t.Jitter)
	}

	return Report{
		Trials: len(trials),
		Loss:   Summarize(loss),
		Delay:  Summarize(delay),
		Jitter: Summarize(jitter),
	}
}

// WriteTo prints one line per metric.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	var total int64

	for _, line := range []string{
		r.Loss.Format("loss"),
		r.Delay.Format("delay"),
		r.Jitter.Format("jitter"),
	} {
		n, err := fmt.Fprintln(w, line)
		total += int64(n)

		if err != nil {
			return total, err
		}
	}

	return total, nil
}
