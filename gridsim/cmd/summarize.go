package cmd

import (
	"github.com/spf13/cobra"

	"github.com/alexfrt/smartgridsim/flowstats"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [outputs-dir]",
	Short: "Summarize loss, delay and jitter across trials.",
	Long: "`summarize outputs` reads outputs/trial*/FlowMon.xml and prints " +
		"the mean, standard deviation and variance of each metric.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}

		trials, err := flowstats.LoadTrials(dir)
		if err != nil {
			return err
		}

		_, err = flowstats.SummarizeTrials(trials).WriteTo(cmd.OutOrStdout())

		return err
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}
