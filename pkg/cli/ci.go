package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlite-burrito/burrito/pkg/notifier"
	"github.com/sqlite-burrito/burrito/pkg/orchestrator"
	"github.com/sqlite-burrito/burrito/pkg/types"
)

type ciOptions struct {
	dryRun  bool
	notify  bool
	noState bool
}

func (c *CLI) newCICmd() *cobra.Command {
	var opts ciOptions

	cmd := &cobra.Command{
		Use:   "ci <preset> <shared>",
		Short: "Install, configure, build and test one configuration",
		Long: `Run the CI pipeline for a build preset (Debug, Release, ...) and a
shared flag (true/false, on/off, 1/0):

  conan install -> cmake --preset -> cmake --build -> ctest

Every command is echoed before it runs. The first failing command stops the
pipeline and its exit code becomes burrito's exit code.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCI(cmd.Context(), args[0], args[1], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the commands without running them")
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "send a desktop notification with the outcome")
	cmd.Flags().BoolVar(&opts.noState, "no-state", false, "do not record the run in <build_dir>/.burrito/state.json")

	return cmd
}

func (c *CLI) buildConfiguration(preset, shared string) (types.BuildConfiguration, error) {
	sh, err := types.ParseBool(shared)
	if err != nil {
		return types.BuildConfiguration{}, err
	}
	return types.NewBuildConfiguration(preset, sh, c.settings().CppStd)
}

func (c *CLI) newOrchestrator(notify, recordState bool) *orchestrator.Orchestrator {
	s := c.settings()

	var n notifier.Notifier
	if notify || s.Notifications.Enabled {
		n = notifier.New(notifier.Config{
			Enabled:      true,
			SuccessSound: s.Notifications.SuccessSound,
			FailureSound: s.Notifications.FailureSound,
		}, c.logger)
	}

	return orchestrator.New(orchestrator.Config{
		Tools:       s.Tools,
		SourceDir:   s.SourceDir,
		BuildRoot:   s.BuildRoot,
		RecordState: recordState,
	}, c.processRunner(), c.logger, n)
}

func (c *CLI) runCI(ctx context.Context, preset, shared string, opts ciOptions) error {
	cfg, err := c.buildConfiguration(preset, shared)
	if err != nil {
		return err
	}
	o := c.newOrchestrator(opts.notify, !opts.noState)

	if opts.dryRun {
		plan := o.Plan(cfg)
		c.printInfo(fmt.Sprintf("Build directory: %s", plan.BuildDir))
		c.printInfo(fmt.Sprintf("Toolchain file:  %s", plan.Toolchain))
		for _, step := range plan.Steps {
			fmt.Fprintf(c.output, "--- would run: %s ---\n", step.Command.String())
		}
		return nil
	}

	if _, err := o.Run(ctx, cfg); err != nil {
		return err
	}
	c.printSuccess(fmt.Sprintf("%s build (shared=%s) passed", cfg.Preset, types.FormatBool(cfg.Shared)))
	return nil
}
