// Package cmd provides the command-line interface for gridsim.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// envFile holds GRIDSIM_* defaults. It is optional.
const envFile = ".env"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gridsim",
	Short: "gridsim runs bounded smart-grid traffic simulations.",
	Long: `gridsim runs smart-meter traffic simulations under a simulated-time ` +
		`and a real-time budget, and summarizes the flow statistics of ` +
		`repeated trials.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogging(
			stringSetting(cmd, "log-level", "GRIDSIM_LOG_LEVEL"),
			stringSetting(cmd, "log-format", "GRIDSIM_LOG_FORMAT"),
		)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info",
		"Log level (trace, debug, info, warn, error).")
	rootCmd.PersistentFlags().String("log-format", "text",
		"Log format (text or json).")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := loadEnv(envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

// loadEnv loads variables from path without overriding the environment.
func loadEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

// stringSetting returns the flag value if it was set on the command line, the
// environment variable if it is set, and the flag default otherwise.
func stringSetting(cmd *cobra.Command, flag, env string) string {
	f := cmd.Flags().Lookup(flag)
	if f.Changed {
		return f.Value.String()
	}

	if v, ok := os.LookupEnv(env); ok {
		return v
	}

	return f.Value.String()
}

func setupLogging(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	logrus.SetLevel(lvl)

	switch format {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	return nil
}
