package cli

import (
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/sqlite-burrito/burrito/pkg/types"
)

// newTableWriter returns a table.Writer with the burrito style
func newTableWriter() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Color.Header = text.Colors{text.FgCyan, text.Bold}
	tw.Style().Color.Footer = text.Colors{text.FgCyan, text.Bold}
	return tw
}

func statusText(s types.StageStatus) string {
	switch s {
	case types.StageStatusSucceeded:
		return color.GreenString(string(s))
	case types.StageStatusFailed:
		return color.RedString(string(s))
	case types.StageStatusRunning:
		return color.YellowString(string(s))
	default:
		return color.WhiteString(string(s))
	}
}

func formatDuration(d time.Duration, s types.StageStatus) string {
	if s == types.StageStatusSkipped || s == types.StageStatusPending {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
