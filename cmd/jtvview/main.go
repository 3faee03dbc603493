// Command jtvview reads JTV TV program guides (.ndx/.pdt pairs) and shows,
// serves or exports their schedule grouped by day.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jtvview/internal/config"
	"jtvview/internal/jtv"
	appLog "jtvview/internal/log"
)

var version = "dev"

// app carries state shared by all subcommands once the root command has
// loaded the configuration.
type app struct {
	configPath string
	logLevel   string
	offset     int

	cfg *config.Config
	// loc is where days are split and times are printed.
	loc *time.Location
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&app{loc: time.Local})
}

func buildRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "jtvview",
		Short:         "Viewer for JTV TV program guides",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath(), "path to config file")
	rootCmd.PersistentFlags().StringVarP(&a.logLevel, "log-level", "l", "", "log level: debug, info, error (overrides config)")
	rootCmd.PersistentFlags().IntVar(&a.offset, "offset", 0, "source time zone offset in seconds east of UTC (overrides config)")

	rootCmd.AddCommand(
		newShowCmd(a),
		newExportCmd(a),
		newArchiveCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newCaptureCmd(a),
		newTimezoneCmd(a),
	)

	return rootCmd
}

// errReported marks a failure whose details were already printed.
var errReported = errors.New("one or more guides failed")

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if cmd.Flags().Changed("offset") {
		if err := jtv.ValidateOffset(a.offset); err != nil {
			return err
		}
		cfg.SetOffset(a.offset)
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	a.cfg = cfg
	appLog.Debug("effective config",
		"config_path", a.configPath,
		"listen", cfg.Listen,
		"timezone_offset", cfg.Offset(),
		"refresh", cfg.RefreshCron,
		"archive_path", cfg.ArchivePath,
	)
	return nil
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
