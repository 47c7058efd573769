package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlite-burrito/burrito/pkg/recipe"
)

func (c *CLI) newExportCmd() *cobra.Command {
	var recipeFile string
	var list bool

	cmd := &cobra.Command{
		Use:   "export <destination>",
		Short: "Copy the sources selected by exports_sources",
		Long: `Copy the files matched by the recipe's exports_sources patterns from the
source directory into destination, keeping their relative layout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := recipe.Load(c.recipePath(recipeFile))
			if err != nil {
				return err
			}

			dst := c.resolvePath(args[0])
			exported, err := r.ExportSources(c.settings().SourceDir, dst)
			if err != nil {
				return err
			}
			if list {
				for _, f := range exported {
					fmt.Fprintln(c.output, f)
				}
			}
			c.printSuccess(fmt.Sprintf("Exported %d files to %s", len(exported), dst))
			return nil
		},
	}

	cmd.Flags().StringVar(&recipeFile, "recipe", "", "recipe file (default: configured recipe)")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "print every exported path")
	return cmd
}
