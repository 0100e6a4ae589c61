package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/adbwire/internal/config"
)

var version = "dev"

// cfg is the loaded config file, available to subcommands after the root
// pre-run hook.
var cfg config.Config //nolint:gochecknoglobals // populated once per process

func main() {
	os.Exit(run())
}

func run() int {
	var (
		verbose     bool
		logFile     string
		showVersion bool
	)

	rootCmd := &cobra.Command{
		Use:           "adbwire",
		Short:         "Decode, build and tap Android Debug Bridge transport frames",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				// Config is optional; a broken file should not block the tool.
				fmt.Fprintf(os.Stderr, "adbwire: ignoring config: %v\n", err)
			}
			cfg = loaded
			return setupLogging(verbose, logFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "adbwire %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to FILE")

	rootCmd.AddCommand(decodeCmd, encodeCmd, tapCmd, docsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "adbwire: %v\n", err)
		return 1
	}
	return 0
}

// setupLogging installs the default slog logger. The level comes from
// --verbose, then [log] level in the config file, then Info.
func setupLogging(verbose bool, logFile string) error {
	logLevel := slog.LevelInfo
	if cfg.Log.Level != nil {
		if err := logLevel.UnmarshalText([]byte(*cfg.Log.Level)); err != nil {
			return fmt.Errorf("config log level: %w", err)
		}
	}
	if verbose {
		logLevel = slog.LevelDebug
	}

	var logHandler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	if logFile != "" {
		lf, err := os.Create(logFile)
		if err != nil {
			return fmt.Errorf("create log file: %w", err)
		}
		logHandler = newMultiHandler(
			logHandler,
			slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}
	slog.SetDefault(slog.New(logHandler))
	return nil
}
