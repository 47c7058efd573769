package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sqlite-burrito/burrito/internal/state"
	"github.com/sqlite-burrito/burrito/pkg/types"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <preset>",
		Short: "Show the last CI run of a build preset",
		Long:  `Display the last recorded ci or watch run in build/<preset>, with per-step status, duration and exit code.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(args[0])
		},
	}
}

func (c *CLI) runStatus(preset string) error {
	cfg, err := types.NewBuildConfiguration(preset, false, c.settings().CppStd)
	if err != nil {
		return err
	}
	s := c.settings()
	sm := state.NewManager(cfg.BuildDir(s.SourceDir, s.BuildRoot), c.logger)

	f, err := sm.Load()
	if err != nil {
		return err
	}
	if f.LastRun == nil {
		c.printInfo(fmt.Sprintf("No runs recorded in %s", sm.Path()))
		return nil
	}

	run := f.LastRun
	if locked, _ := sm.IsLocked(); locked {
		c.printWarning(fmt.Sprintf("A pipeline is running (pid %d)", run.ProcessID))
	}

	tw := newTableWriter()
	tw.SetTitle(fmt.Sprintf("%s shared=%s run %s", run.Preset, types.FormatBool(run.Shared), shortRevision(run.RunID)))
	tw.AppendHeader(table.Row{"Step", "Status", "Duration", "Exit code", "Command"})
	for _, st := range run.Stages {
		code := "-"
		if st.Status == types.StageStatusFailed {
			code = fmt.Sprint(st.ExitCode)
		}
		tw.AppendRow(table.Row{st.Name, statusText(st.Status), formatDuration(st.Duration, st.Status), code, st.Command})
	}
	tw.AppendFooter(table.Row{"Run", statusText(run.Status), formatDuration(run.Duration(), run.Status), run.ExitCode, ""})
	fmt.Fprintln(c.output, tw.Render())

	c.printInfo(fmt.Sprintf("%d runs, %d failed", f.RunCount, f.FailureCount))
	return nil
}
