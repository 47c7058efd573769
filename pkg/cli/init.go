package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sqlite-burrito/burrito/pkg/config"
	"github.com/sqlite-burrito/burrito/pkg/recipe"
)

func (c *CLI) newInitCmd() *cobra.Command {
	var force bool
	var withConfig bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default recipe and configuration",
		Long: `Write burrito.yaml describing the sqlite-burrito library into the source
directory. With --config-file, also write burrito.config.yaml holding every
configuration default.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(force, withConfig)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing files")
	cmd.Flags().BoolVar(&withConfig, "config-file", false, "also write burrito.config.yaml")

	return cmd
}

func (c *CLI) runInit(force, withConfig bool) error {
	src := c.settings().SourceDir

	if _, err := os.Stat(filepath.Join(src, "CMakeLists.txt")); errors.Is(err, os.ErrNotExist) {
		c.printWarning("No CMakeLists.txt in the source directory; version resolution will fail until one exists")
	}

	recipePath := c.recipePath("")
	if err := checkWritable(recipePath, force); err != nil {
		return err
	}
	data, err := recipe.DefaultManifest().Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(recipePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write recipe: %w", err)
	}
	c.printSuccess(fmt.Sprintf("Created recipe at %s", recipePath))

	if !withConfig {
		return nil
	}

	configPath := filepath.Join(src, config.ConfigName+".yaml")
	if err := checkWritable(configPath, force); err != nil {
		return err
	}
	if err := config.NewManager().Viper().WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	c.printSuccess(fmt.Sprintf("Created configuration at %s", configPath))
	return nil
}

func checkWritable(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	return nil
}
