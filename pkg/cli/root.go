// Package cli provides the command-line interface for burrito
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sqlite-burrito/burrito/pkg/config"
	"github.com/sqlite-burrito/burrito/pkg/logger"
	"github.com/sqlite-burrito/burrito/pkg/process"
	"github.com/sqlite-burrito/burrito/pkg/types"
)

// CLI holds the command tree and everything its commands share
type CLI struct {
	config   *Config
	rootCmd  *cobra.Command
	logger   logger.Logger
	output   io.Writer
	errorOut io.Writer

	manager *config.Manager
	mu      sync.RWMutex
	current *config.Config

	// runner overrides the subprocess runner, used by tests
	runner process.Runner
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	c := &CLI{
		config:   cfg,
		output:   os.Stdout,
		errorOut: os.Stderr,
	}
	c.setupCommands()
	return c
}

// NewCLIWithOutput creates a CLI with custom output writers
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	c := NewCLI(cfg)
	c.output = output
	c.errorOut = errorOut
	c.rootCmd.SetOut(output)
	c.rootCmd.SetErr(errorOut)
	return c
}

// SetRunner replaces the subprocess runner
func (c *CLI) SetRunner(r process.Runner) {
	c.runner = r
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "burrito",
		Short: "Build, test and package sqlite-burrito",
		Long: `burrito drives the sqlite-burrito C++ library through conan, CMake and CTest.

The ci command runs the fixed install/configure/build/test pipeline and exits
with the code of the first failing step. The create command runs the package
recipe lifecycle and publishes the result to the local registry.`,

		PersistentPreRunE: c.initializeConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := c.rootCmd.PersistentFlags()
	flags.StringVar(&c.config.ConfigFile, "config", "", "config file (default: burrito.config.yaml in the project root)")
	flags.StringVar(&c.config.ProjectRoot, "root", ".", "project root directory")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("burrito v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newCICmd())
	c.rootCmd.AddCommand(c.newWatchCmd())
	c.rootCmd.AddCommand(c.newCreateCmd())
	c.rootCmd.AddCommand(c.newInspectCmd())
	c.rootCmd.AddCommand(c.newExportCmd())
	c.rootCmd.AddCommand(c.newVerifyCmd())
	c.rootCmd.AddCommand(c.newPackagesCmd())
	c.rootCmd.AddCommand(c.newStatusCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) initializeConfig(cmd *cobra.Command, _ []string) error {
	c.manager = config.NewManager()
	settings, err := c.manager.Load(config.LoadOptions{
		ConfigFile:  c.config.ConfigFile,
		ProjectRoot: c.config.ProjectRoot,
	})
	if err != nil {
		return err
	}

	level := settings.Log.Level
	if cmd.Flags().Changed("verbosity") {
		level = c.config.Verbosity
	}
	switch types.LogLevel(strings.ToLower(level)) {
	case types.LogLevelDebug, types.LogLevelInfo, types.LogLevelWarn, types.LogLevelError:
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	if settings.Log.File == "" && c.errorOut != os.Stderr {
		c.logger = logger.CreateLoggerWithOutput(level, c.errorOut)
	} else {
		c.logger = logger.CreateLogger(settings.Log.File, level)
	}

	if used := c.manager.ConfigFileUsed(); used != "" {
		c.logger.Debug("Using config file", logger.WithField("file", used))
	}

	c.setSettings(settings)
	return nil
}

func (c *CLI) settings() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *CLI) setSettings(s *config.Config) {
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
}

// processRunner returns the runner used for build tools
func (c *CLI) processRunner() process.Runner {
	if c.runner != nil {
		return c.runner
	}
	r := process.NewExecRunner()
	r.Stdout = c.output
	r.Stderr = c.errorOut
	return r
}

// resolvePath anchors a configured path to the source directory
func (c *CLI) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.settings().SourceDir, path)
}

// Helper methods for user-facing output

func (c *CLI) printSuccess(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.GreenString("[burrito]"), message)
}

func (c *CLI) printError(message string) {
	fmt.Fprintf(c.errorOut, "%s %s\n", color.RedString("[burrito]"), message)
}

func (c *CLI) printInfo(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.CyanString("[burrito]"), message)
}

func (c *CLI) printWarning(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.YellowString("[burrito]"), message)
}

// Execute runs the CLI against os.Args and returns the process exit code
func Execute(version string) int {
	cfg := NewConfig()
	cfg.Version = version
	c := NewCLI(cfg)

	err := c.Execute(os.Args[1:])
	if err != nil {
		c.printError(err.Error())
	}
	return process.ExitCode(err)
}
