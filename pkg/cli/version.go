package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of burrito",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.output, "burrito v%s (%s, %s/%s)\n", c.config.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
