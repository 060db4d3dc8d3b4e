package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dudk/livestack"
	"github.com/dudk/livestack/config"
	"github.com/dudk/livestack/log"
	"github.com/dudk/livestack/scan"
	"github.com/dudk/livestack/session"
	"github.com/dudk/livestack/stack"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a live stacking session",
		Long: `Run starts a new session and stacks frames until interrupted.

Examples:
  # Use configuration from $XDG_CONFIG_HOME/livestack/config.yaml
  livestack run

  # Override folders
  livestack run --scan ~/Pictures/scan --work ~/livestack

Configuration file example:
  scan_folder: /home/user/Pictures/scan
  work_folder: /home/user/livestack
  image_save_format: tiff
  stacking_mode: mean
  align_before_stacking: false
  save_every_image: false
  scan_interval: 500ms`,
		Args: cobra.NoArgs,
		RunE: runRunCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: livestack/config.yaml in XDG config directories)")
	cmd.Flags().StringP("scan", "s", "", "Scan folder, overrides configuration")
	cmd.Flags().StringP("work", "w", "", "Work folder, overrides configuration")
	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	logger := log.GetLogger()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	c, err := newController(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	toggle := make(chan os.Signal, 1)
	if len(toggleSignals) > 0 {
		signal.Notify(toggle, toggleSignals...)
		defer signal.Stop(toggle)
	}
	return serve(ctx, c, toggle, logger)
}

// buildConfig loads configuration file and applies flag overrides.
// Defaults are used if no file was found and no path was given.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if found := config.Find(path); found != "" {
		var err error
		if cfg, err = config.Load(found); err != nil {
			return nil, err
		}
	} else if path != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
	}

	if scanFolder, _ := cmd.Flags().GetString("scan"); scanFolder != "" {
		cfg.ScanFolder = scanFolder
	}
	if workFolder, _ := cmd.Flags().GetString("work"); workFolder != "" {
		cfg.WorkFolder = workFolder
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// newController creates controller with folder scanner and runtime
// settings taken from configuration.
func newController(cfg *config.Config, logger log.Logger) (*livestack.Controller, error) {
	mode, err := stack.ParseMode(cfg.StackingMode)
	if err != nil {
		return nil, err
	}
	scanner := scan.NewFolder(cfg.ScanFolderPath(),
		scan.WithLogger(logger),
		scan.WithInterval(cfg.ScanInterval),
	)
	c := livestack.New(cfg, scanner, livestack.WithLogger(logger))
	rt := c.Runtime()
	rt.SetStackingMode(mode)
	rt.SetAlignBeforeStacking(cfg.AlignBeforeStacking)
	rt.SetSaveEveryImage(cfg.SaveEveryImage)
	rt.SetWebServerActive(cfg.WebServer)
	return c, nil
}

// serve starts the session and blocks until ctx is done. Every toggle
// signal pauses running session or resumes paused one.
func serve(ctx context.Context, c *livestack.Controller, toggle <-chan os.Signal, logger log.Logger) error {
	if err := c.StartSession(); err != nil {
		_ = c.Shutdown()
		return err
	}
	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down...")
			return c.Shutdown()
		case <-toggle:
			var err error
			if c.Runtime().Session() == session.Running {
				err = c.PauseSession()
			} else {
				err = c.StartSession()
			}
			if err != nil {
				logger.Error(fmt.Sprintf("Session toggle failed: %v", err))
			}
		}
	}
}
