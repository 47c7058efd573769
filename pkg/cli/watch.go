package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sqlite-burrito/burrito/internal/watch"
	"github.com/sqlite-burrito/burrito/pkg/config"
	"github.com/sqlite-burrito/burrito/pkg/logger"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	var notify bool

	cmd := &cobra.Command{
		Use:   "watch <preset> <shared>",
		Short: "Re-run the CI pipeline when sources change",
		Long: `Run the CI pipeline once, then again every time CMakeLists.txt or a
watched source directory changes. Changes are debounced and only one
pipeline runs at a time. Configuration file edits apply to the next run.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), args[0], args[1], notify)
		},
	}

	cmd.Flags().BoolVar(&notify, "notify", false, "send a desktop notification after every run")

	return cmd
}

func (c *CLI) runWatch(ctx context.Context, preset, shared string, notify bool) error {
	if _, err := c.buildConfiguration(preset, shared); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.manager.Watch(func(updated *config.Config, err error) {
		if err != nil {
			c.logger.Warn("Ignoring invalid configuration change", logger.WithField("error", err))
			return
		}
		c.setSettings(updated)
		c.logger.Info("Configuration reloaded", logger.WithField("file", c.manager.ConfigFileUsed()))
	})

	pipeline := func(ctx context.Context) error {
		// rebuilt per run so reloaded settings take effect
		cfg, err := c.buildConfiguration(preset, shared)
		if err != nil {
			return err
		}
		_, err = c.newOrchestrator(notify, true).Run(ctx, cfg)
		return err
	}

	s := c.settings()
	buildRoot := s.BuildRoot
	if !filepath.IsAbs(buildRoot) {
		buildRoot = filepath.Join(s.SourceDir, buildRoot)
	}
	w, err := watch.New(watch.Options{
		Root:       s.SourceDir,
		Paths:      s.Watch.Paths,
		Exclude:    append([]string{buildRoot}, s.Watch.Exclude...),
		Debounce:   s.Watch.Debounce,
		RunOnStart: true,
	}, pipeline, c.logger)
	if err != nil {
		return err
	}

	c.printInfo("Watching for changes, press Ctrl+C to stop")
	if err := w.Run(ctx); err != nil {
		return err
	}
	c.printInfo("Stopped watching")
	return nil
}
