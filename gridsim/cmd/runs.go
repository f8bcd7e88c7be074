package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alexfrt/smartgridsim/datarecording"
)

var runsCmd = &cobra.Command{
	Use:   "runs recording",
	Short: "List the runs stored in a recording database.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		runs, err := datarecording.ListRuns(cmd.Context(), reader)
		if err != nil {
			return err
		}

		return printRuns(cmd.OutOrStdout(), runs)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func printRuns(w io.Writer, runs []datarecording.RunEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "RUN\tSIM TIME\tREAL (s)\tPOLLS\tREASON\tERROR")

	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%.3f/%.3f\t%.3f/%.3f\t%d\t%s\t%s\n",
			r.RunID,
			r.FinalSimTime, r.MaxSimTime,
			r.RealElapsed, r.MaxRealTime,
			r.Polls, r.StopReason, r.Error)
	}

	return tw.Flush()
}
