package recipe

import (
	"path/filepath"
	"sort"

	"github.com/sqlite-burrito/burrito/pkg/process"
	"github.com/sqlite-burrito/burrito/pkg/types"
)

// Layout is the folder layout of one lifecycle run
type Layout struct {
	SourceDir     string
	BuildDir      string
	GeneratorsDir string
	PackageDir    string
}

// NewLayout places the build tree at <source>/<buildRoot>/<build type> and
// the package tree at <build>/package unless packageDir is given
func NewLayout(sourceDir, buildRoot string, buildType types.BuildType, packageDir string) Layout {
	if buildRoot == "" {
		buildRoot = "build"
	}
	if !filepath.IsAbs(buildRoot) {
		buildRoot = filepath.Join(sourceDir, buildRoot)
	}
	buildDir := filepath.Join(buildRoot, string(buildType))
	if packageDir == "" {
		packageDir = filepath.Join(buildDir, "package")
	}
	return Layout{
		SourceDir:     sourceDir,
		BuildDir:      buildDir,
		GeneratorsDir: filepath.Join(buildDir, "generators"),
		PackageDir:    packageDir,
	}
}

// ToolchainFile is the CMake toolchain written by the generate stage
func (l Layout) ToolchainFile() string {
	return filepath.Join(l.GeneratorsDir, "conan_toolchain.cmake")
}

// Toolchain renders the commands of the generate, build and package stages
type Toolchain struct {
	Tools    types.Tools
	Layout   Layout
	Settings Settings
}

// Install resolves requirements and writes the toolchain and dependency
// files into the generators folder
func (t Toolchain) Install(requires []string) process.Command {
	args := []string{"install"}
	for _, ref := range requires {
		args = append(args, "--requires="+ref)
	}
	args = append(args,
		"-g", "CMakeToolchain",
		"-g", "CMakeDeps",
		"--output-folder="+t.Layout.GeneratorsDir,
		"-b", "missing",
		"-s", "build_type="+string(t.Settings.BuildType),
	)
	if t.Settings.CppStd != "" {
		args = append(args, "-s", "compiler.cppstd="+t.Settings.CppStd)
	}
	return process.Command{Name: t.Tools.Conan, Args: args, Dir: t.Layout.SourceDir}
}

// Configure runs the CMake configure step with the generated toolchain
func (t Toolchain) Configure(definitions map[string]string) process.Command {
	args := []string{
		"-S", t.Layout.SourceDir,
		"-B", t.Layout.BuildDir,
		"-DCMAKE_TOOLCHAIN_FILE=" + t.Layout.ToolchainFile(),
		"-DCMAKE_BUILD_TYPE=" + string(t.Settings.BuildType),
		"-DCMAKE_INSTALL_PREFIX=" + t.Layout.PackageDir,
	}

	keys := make([]string, 0, len(definitions))
	for k := range definitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-D"+k+"="+definitions[k])
	}

	return process.Command{Name: t.Tools.CMake, Args: args, Dir: t.Layout.SourceDir}
}

// Build compiles the configured tree
func (t Toolchain) Build() process.Command {
	return process.Command{
		Name: t.Tools.CMake,
		Args: []string{"--build", t.Layout.BuildDir, "--config", string(t.Settings.BuildType)},
		Dir:  t.Layout.SourceDir,
	}
}

// Test runs the test suite of the build tree
func (t Toolchain) Test() process.Command {
	return process.Command{
		Name: t.Tools.CTest,
		Args: []string{"--test-dir", t.Layout.BuildDir, "-C", string(t.Settings.BuildType), "--output-on-failure"},
		Dir:  t.Layout.SourceDir,
	}
}

// InstallTree installs the build into the package folder
func (t Toolchain) InstallTree() process.Command {
	return process.Command{
		Name: t.Tools.CMake,
		Args: []string{"--install", t.Layout.BuildDir, "--config", string(t.Settings.BuildType), "--prefix", t.Layout.PackageDir},
		Dir:  t.Layout.SourceDir,
	}
}

// BinDir is where test executables are written
func (t Toolchain) BinDir() string {
	if t.Settings.OS == types.OSWindows {
		return filepath.Join(t.Layout.BuildDir, string(t.Settings.BuildType))
	}
	return t.Layout.BuildDir
}
