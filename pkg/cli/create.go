package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sqlite-burrito/burrito/pkg/archive"
	"github.com/sqlite-burrito/burrito/pkg/logger"
	"github.com/sqlite-burrito/burrito/pkg/recipe"
	"github.com/sqlite-burrito/burrito/pkg/registry"
	"github.com/sqlite-burrito/burrito/pkg/types"
)

type createOptions struct {
	buildType  string
	options    []string
	cppstd     string
	hostOS     string
	hostArch   string
	libDirs    []string
	packageDir string
	archiveDir string
	signKey    string
	noTests    bool
	noPublish  bool
}

func (c *CLI) newCreateCmd() *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create [recipe]",
		Short: "Build, test, package and publish the library from its recipe",
		Long: `Run the recipe lifecycle:

  validate -> config-options -> configure -> resolve-version -> generate ->
  build (-> test) -> package -> package-info -> archive -> publish

Each stage is fatal. A failed stage skips the remaining ones and nothing is
published. The recipe defaults to burrito.yaml in the source directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return c.runCreate(cmd.Context(), path, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.buildType, "build-type", "b", "Release", "build type (Debug, Release, RelWithDebInfo, MinSizeRel)")
	flags.StringArrayVarP(&opts.options, "option", "o", nil, "option override as name=value, repeatable")
	flags.StringVar(&opts.cppstd, "cppstd", "", "compiler.cppstd setting (default: configured cppstd)")
	flags.StringVar(&opts.hostOS, "host-os", "", "target operating system when cross-building (Linux, Macos, Windows, FreeBSD)")
	flags.StringVar(&opts.hostArch, "host-arch", "", "target architecture when cross-building")
	flags.StringArrayVar(&opts.libDirs, "lib-dir", nil, "dependency library directory made visible to tests, repeatable")
	flags.StringVar(&opts.packageDir, "package-dir", "", "package output folder (default: <build_dir>/package)")
	flags.StringVar(&opts.archiveDir, "archive", "", "also write the package folder as a .tar.xz into this directory")
	flags.StringVar(&opts.signKey, "sign-key", "", "armored OpenPGP private key used to sign the archive")
	flags.BoolVar(&opts.noTests, "no-tests", false, "skip running the test suite")
	flags.BoolVar(&opts.noPublish, "no-publish", false, "do not publish to the local registry")

	return cmd
}

func parseOptionOverrides(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, kv := range values {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: expected name=value, got %q", types.ErrInvalidOptionValue, kv)
		}
		out[name] = value
	}
	return out, nil
}

func (c *CLI) recipePath(arg string) string {
	if arg != "" {
		return arg
	}
	return c.resolvePath(c.settings().Recipe)
}

func (c *CLI) hostSettings(buildType, cppstd, hostOS, hostArch string) (recipe.Settings, error) {
	bt, err := types.ParseBuildType(buildType)
	if err != nil {
		return recipe.Settings{}, err
	}

	s := recipe.HostSettings(bt)
	s.CppStd = cppstd
	if s.CppStd == "" {
		s.CppStd = strconv.Itoa(c.settings().CppStd)
	}
	if hostOS != "" {
		target, err := types.ParseOS(hostOS)
		if err != nil {
			return recipe.Settings{}, err
		}
		s.OS = target
	}
	if hostArch != "" {
		s.Arch = hostArch
	}
	return s, nil
}

func (c *CLI) runCreate(ctx context.Context, path string, opts createOptions) error {
	rc := NewRuntimeConfig(c.config, ctx)
	cfg := c.settings()

	r, err := recipe.Load(c.recipePath(path))
	if err != nil {
		return err
	}
	settings, err := c.hostSettings(opts.buildType, opts.cppstd, opts.hostOS, opts.hostArch)
	if err != nil {
		return err
	}
	overrides, err := parseOptionOverrides(opts.options)
	if err != nil {
		return err
	}
	if opts.signKey != "" && opts.archiveDir == "" {
		return fmt.Errorf("--sign-key requires --archive")
	}

	layout := recipe.NewLayout(cfg.SourceDir, cfg.BuildRoot, settings.BuildType, c.resolvePath(opts.packageDir))
	lc := &recipe.Lifecycle{
		Recipe: r,
		Toolchain: recipe.Toolchain{
			Tools:    cfg.Tools,
			Layout:   layout,
			Settings: settings,
		},
		Runner:  c.processRunner(),
		Logger:  c.logger,
		Options: overrides,
		Build: recipe.BuildOptions{
			RunTests: !opts.noTests,
			LibDirs:  opts.libDirs,
		},
	}

	if opts.archiveDir != "" {
		lc.Archive = func(_ context.Context, res *recipe.Result) error {
			return c.archivePackage(res, settings, layout.PackageDir, opts)
		}
	}

	if !opts.noPublish {
		reg, err := registry.Open(rc.Context, cfg.RegistryPath)
		if err != nil {
			return err
		}
		defer reg.Close()
		lc.Publisher = reg
	}

	c.logger.Info("Creating package",
		logger.WithField("run", rc.RunID),
		logger.WithField("recipe", r.Metadata.Name),
		logger.WithField("build_type", settings.BuildType))

	res, err := lc.Run(rc.Context)
	if res != nil {
		fmt.Fprintln(c.output, renderStages(res))
	}
	if err != nil {
		return err
	}

	if res.Revision != "" {
		c.printSuccess(fmt.Sprintf("Published %s (revision %s)", res.Metadata.Reference(), res.Revision))
	} else {
		c.printSuccess(fmt.Sprintf("Created %s", res.Metadata.Reference()))
	}
	return nil
}

// archivePackage writes the package folder as an archive and signs it.
// A failed signature removes the archive again.
func (c *CLI) archivePackage(res *recipe.Result, settings recipe.Settings, packageDir string, opts createOptions) error {
	name := archive.Name(res.Metadata.Name, res.Metadata.Version, settings.OS.Value, settings.Arch, string(settings.BuildType))
	dst := filepath.Join(c.resolvePath(opts.archiveDir), name)
	n, err := archive.Create(packageDir, dst)
	if err != nil {
		return err
	}
	c.logger.Info("Archived package", logger.WithField("path", dst), logger.WithField("files", n))

	if opts.signKey == "" {
		c.printInfo(fmt.Sprintf("Wrote %s", dst))
		return nil
	}
	sig, err := archive.Sign(dst, c.resolvePath(opts.signKey))
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	c.printInfo(fmt.Sprintf("Wrote %s", dst))
	c.printInfo(fmt.Sprintf("Signed %s", sig))
	return nil
}

func renderStages(res *recipe.Result) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"Stage", "Status", "Duration", "Error"})
	for _, s := range res.Stages {
		errText := ""
		if s.Err != nil {
			errText = s.Err.Error()
		}
		tw.AppendRow(table.Row{s.Stage, statusText(s.Status), formatDuration(s.Duration, s.Status), errText})
	}
	return tw.Render()
}
