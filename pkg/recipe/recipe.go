// Package recipe implements the package recipe and its lifecycle hooks.
//
// A Recipe is built once from a Manifest and validated at construction.
// The hooks are then driven in a fixed order by a Lifecycle:
//
//	validate → config-options → configure → resolve-version → generate →
//	build (→ test) → package → package-info → publish
//
// Every hook is fatal on error. A failed hook skips the remaining ones and
// nothing is published.
package recipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sqlite-burrito/burrito/pkg/analyzers"
	"github.com/sqlite-burrito/burrito/pkg/environ"
	"github.com/sqlite-burrito/burrito/pkg/glob"
	"github.com/sqlite-burrito/burrito/pkg/process"
	"github.com/sqlite-burrito/burrito/pkg/types"
)

var (
	// ErrInvalidRecipe is returned when a manifest fails validation
	ErrInvalidRecipe = errors.New("invalid recipe")

	// ErrInvalidConfiguration is returned by the validate hook when the
	// settings cannot build this package
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrVersionNotFound is returned when no version was given and none
	// could be read from the build description
	ErrVersionNotFound = analyzers.ErrVersionNotFound
)

// Recipe is a validated package recipe
type Recipe struct {
	Metadata     types.PackageMetadata
	Requires     []types.Requirement
	TestRequires []types.Requirement
	MinCppStd    int

	versionFile     string
	versionVariable string
	cmake           CMakeNames
	exportsSources  []string
	exports         *glob.Matcher
	options         *types.Options
}

// Load reads and validates a recipe file
func Load(path string) (*Recipe, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	return New(m)
}

// New validates a manifest and builds a recipe from it
func New(m *Manifest) (*Recipe, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil manifest", ErrInvalidRecipe)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRecipe)
	}

	r := &Recipe{
		Metadata: types.PackageMetadata{
			Name:        m.Name,
			Version:     m.Version,
			Description: m.Description,
			License:     m.License,
			URL:         m.URL,
			Homepage:    m.Homepage,
			Topics:      append([]string(nil), m.Topics...),
		},
		MinCppStd:       m.MinCppStd,
		versionFile:     m.VersionFile,
		versionVariable: m.VersionVariable,
		cmake:           m.CMake,
		exportsSources:  append([]string(nil), m.ExportsSources...),
	}

	if r.MinCppStd == 0 {
		r.MinCppStd = types.DefaultCppStd
	}
	if r.versionFile == "" {
		r.versionFile = "CMakeLists.txt"
	}
	if r.versionVariable == "" {
		r.versionVariable = analyzers.DefaultVersionVariable
	}
	if r.cmake.FileName == "" {
		r.cmake.FileName = m.Name
	}
	if r.cmake.TargetName == "" {
		r.cmake.TargetName = r.cmake.FileName + "::" + r.cmake.FileName
	}
	if len(r.cmake.Libs) == 0 {
		r.cmake.Libs = []string{r.cmake.FileName}
	}

	seen := make(map[string]bool)
	for _, rq := range m.Requires {
		req, err := types.ParseRequirement(rq.Ref, rq.TransitiveHeaders, rq.TransitiveLibs)
		if err != nil {
			return nil, fmt.Errorf("%w: requires: %w", ErrInvalidRecipe, err)
		}
		if seen[req.Name()] {
			return nil, fmt.Errorf("%w: %s required twice", ErrInvalidRecipe, req.Name())
		}
		seen[req.Name()] = true
		r.Requires = append(r.Requires, req)
	}
	for _, ref := range m.TestRequires {
		req, err := types.ParseRequirement(ref, false, false)
		if err != nil {
			return nil, fmt.Errorf("%w: test_requires: %w", ErrInvalidRecipe, err)
		}
		r.TestRequires = append(r.TestRequires, req)
	}

	exports, err := glob.Compile(r.exportsSources)
	if err != nil {
		return nil, fmt.Errorf("%w: exports_sources: %w", ErrInvalidRecipe, err)
	}
	r.exports = exports

	decls, err := m.optionDecls()
	if err != nil {
		return nil, err
	}
	r.options, err = types.NewOptions(decls...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecipe, err)
	}

	return r, nil
}

// Options returns the resolved option set
func (r *Recipe) Options() *types.Options {
	return r.options
}

// CMakeNames returns the names consumers find the package by
func (r *Recipe) CMakeNames() CMakeNames {
	return r.cmake
}

// ExportsSources returns the source patterns exported with the recipe
func (r *Recipe) ExportsSources() []string {
	return r.exportsSources
}

// Validate fails when the configured C++ standard is below the minimum.
// An unset standard is not checked.
func (r *Recipe) Validate(s Settings) error {
	n, set, err := s.CppStdNumber()
	if err != nil {
		return err
	}
	if !set {
		return nil
	}
	if cppStdRank(n) < cppStdRank(r.MinCppStd) {
		return fmt.Errorf("%w: %s requires C++%d, but cppstd is %s", ErrInvalidConfiguration, r.Metadata.Name, r.MinCppStd, s.CppStd)
	}
	return nil
}

// ConfigOptions drops options that do not apply to the target OS
func (r *Recipe) ConfigOptions(s Settings) {
	if s.OS == types.OSWindows {
		r.options.Remove(types.OptionFPIC)
	}
}

// Configure drops options made redundant by other option values
func (r *Recipe) Configure() {
	if r.options.Bool(types.OptionShared) {
		r.options.Remove(types.OptionFPIC)
	}
}

// ResolveVersion reads the version from the build description unless one
// was already set
func (r *Recipe) ResolveVersion(sourceDir string) error {
	if r.Metadata.Version != "" {
		return nil
	}
	version, err := analyzers.ResolveVersion(filepath.Join(sourceDir, r.versionFile), r.versionVariable)
	if err != nil {
		return err
	}
	r.Metadata.Version = version
	return nil
}

// Generate installs the requirements and writes the toolchain files
func (r *Recipe) Generate(ctx context.Context, runner process.Runner, tc Toolchain) error {
	refs := make([]string, 0, len(r.Requires)+len(r.TestRequires))
	for _, req := range r.Requires {
		refs = append(refs, req.Ref)
	}
	for _, req := range r.TestRequires {
		refs = append(refs, req.Ref)
	}
	return runner.Run(ctx, tc.Install(refs))
}

// BuildOptions control the build hook
type BuildOptions struct {
	// RunTests runs the test suite after building when the produced
	// binaries can be executed on this machine
	RunTests bool
	// LibDirs are dependency library folders the tests must find
	LibDirs []string
}

// Build configures and builds, then runs the tests inside an environment
// overlay that makes dependency shared libraries loadable
func (r *Recipe) Build(ctx context.Context, runner process.Runner, tc Toolchain, opts BuildOptions) error {
	definitions := map[string]string{
		"BUILD_SHARED_LIBS": boolFlag(r.options.Bool(types.OptionShared)),
		"BUILD_TESTING":     boolFlag(opts.RunTests),
	}
	if r.options.Has(types.OptionFPIC) {
		definitions["CMAKE_POSITION_INDEPENDENT_CODE"] = boolFlag(r.options.Bool(types.OptionFPIC))
	}

	if err := runner.Run(ctx, tc.Configure(definitions)); err != nil {
		return err
	}
	if err := runner.Run(ctx, tc.Build()); err != nil {
		return err
	}

	if !opts.RunTests || !tc.Settings.CanRun() {
		return nil
	}

	overlay := environ.RunEnv(tc.Settings.OS, opts.LibDirs, tc.BinDir())
	return overlay.Within(func() error {
		return runner.Run(ctx, tc.Test())
	})
}

// Package copies the license files, installs the build tree and removes
// the CMake config files the install step generates
func (r *Recipe) Package(ctx context.Context, runner process.Runner, tc Toolchain) error {
	if err := copyLicenses(tc.Layout.SourceDir, filepath.Join(tc.Layout.PackageDir, "licenses")); err != nil {
		return fmt.Errorf("failed to copy licenses: %w", err)
	}
	if err := runner.Run(ctx, tc.InstallTree()); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(tc.Layout.PackageDir, "lib", "cmake")); err != nil {
		return fmt.Errorf("failed to remove lib/cmake: %w", err)
	}
	return nil
}

// PackageInfo returns the metadata consumers of the package see. Every
// runtime requirement is listed so consumers always link the wrapped
// library.
func (r *Recipe) PackageInfo() types.CppInfo {
	info := types.CppInfo{
		Libs: append([]string(nil), r.cmake.Libs...),
	}
	info.SetProperty(types.PropertyCMakeFileName, r.cmake.FileName)
	info.SetProperty(types.PropertyCMakeTargetName, r.cmake.TargetName)
	for _, req := range r.Requires {
		info.Requires = append(info.Requires, req.Ref)
	}
	return info
}

func boolFlag(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func copyLicenses(srcDir, dstDir string) error {
	matches, err := filepath.Glob(filepath.Join(srcDir, "LICENSE*"))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}
	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return err
	}
	for _, src := range matches {
		info, err := os.Stat(src)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if err := copyFile(src, filepath.Join(dstDir, filepath.Base(src)), info.Mode().Perm()); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
