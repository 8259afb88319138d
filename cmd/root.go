// Package cmd wires the pushcore command line.
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tphakala/pushcore/cmd/schemes"
	"github.com/tphakala/pushcore/cmd/send"
	"github.com/tphakala/pushcore/internal/conf"
	"github.com/tphakala/pushcore/internal/logging"
	"github.com/tphakala/pushcore/internal/telemetry"
)

// App holds what the root command sets up before a subcommand runs.
type App struct {
	Settings *conf.Settings
	Version  string

	closeLog func() error
}

// RootCommand creates and returns the root command
func RootCommand(app *App) *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:           "pushcore",
		Short:         "Send one notification to many services",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: pushcore.yaml in ., ~/.config/pushcore or /etc/pushcore)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		send.Command(app.Settings),
		schemes.Command(),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
			if err := loaded.Validate(); err != nil {
				return err
			}
		}
		*app.Settings = *loaded

		logger, err := app.initLogging()
		if err != nil {
			return err
		}
		return telemetry.InitSentry(app.Settings, app.Version, logger)
	}

	return rootCmd
}

// initLogging installs the process logger. A configured log file replaces
// stderr output.
func (a *App) initLogging() (*slog.Logger, error) {
	s := a.Settings
	if s.Log.File == "" {
		return logging.Init(s.LogLevel(), s.Log.Format == "json"), nil
	}

	logger, closeFn, err := logging.NewFileLogger(s.Log.File, "pushcore", s.LogLevel(), logging.DefaultFileConfig())
	if err != nil {
		return nil, err
	}
	a.closeLog = closeFn
	slog.SetDefault(logger)
	return logger, nil
}

// Close flushes telemetry and closes the log file.
func (a *App) Close() error {
	telemetry.Flush()
	if a.closeLog != nil {
		return a.closeLog()
	}
	return nil
}

// Execute runs the command line against args and returns the process exit
// code.
func Execute(ctx context.Context, version string, args []string) int {
	app := &App{Settings: &conf.Settings{}, Version: version}
	defer func() { _ = app.Close() }()

	root := RootCommand(app)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("Error:", err)
		return 1
	}
	return 0
}
