package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlite-burrito/burrito/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := config.NewManager().Load(config.LoadOptions{ProjectRoot: tmpDir})
	require.NoError(t, err)

	assert.Equal(t, "conan", cfg.Tools.Conan)
	assert.Equal(t, "cmake", cfg.Tools.CMake)
	assert.Equal(t, "ctest", cfg.Tools.CTest)
	assert.Equal(t, 17, cfg.CppStd)
	assert.Equal(t, "build", cfg.BuildRoot)
	assert.Equal(t, "burrito.yaml", cfg.Recipe)
	assert.Equal(t, tmpDir, cfg.SourceDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Notifications.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Contains(t, cfg.Watch.Exclude, "build")
	assert.Equal(t, "registry.sqlite", filepath.Base(cfg.RegistryPath))
}

func TestLoad_YAMLFileInProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	content := `tools:
  cmake: /opt/cmake/bin/cmake
cppstd: 20
build_root: out
log:
  level: debug
notifications:
  enabled: true
watch:
  debounce: 2s
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "burrito.config.yaml"), []byte(content), 0644))

	m := config.NewManager()
	cfg, err := m.Load(config.LoadOptions{ProjectRoot: tmpDir})
	require.NoError(t, err)

	assert.Equal(t, "/opt/cmake/bin/cmake", cfg.Tools.CMake)
	assert.Equal(t, "conan", cfg.Tools.Conan)
	assert.Equal(t, 20, cfg.CppStd)
	assert.Equal(t, "out", cfg.BuildRoot)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Notifications.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.Equal(t, filepath.Join(tmpDir, "burrito.config.yaml"), m.ConfigFileUsed())
}

func TestLoad_ExplicitJSONFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "ci.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tools": {"conan": "conan2"}, "registry_path": "/tmp/reg.sqlite"}`), 0644))

	cfg, err := config.NewManager().Load(config.LoadOptions{ConfigFile: path, ProjectRoot: tmpDir})
	require.NoError(t, err)

	assert.Equal(t, "conan2", cfg.Tools.Conan)
	assert.Equal(t, "/tmp/reg.sqlite", cfg.RegistryPath)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := config.NewManager().Load(config.LoadOptions{
		ConfigFile: filepath.Join(t.TempDir(), "missing.yaml"),
	})
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BURRITO_TOOLS_CTEST", "/usr/local/bin/ctest")
	t.Setenv("BURRITO_CPPSTD", "23")

	cfg, err := config.NewManager().Load(config.LoadOptions{ProjectRoot: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/ctest", cfg.Tools.CTest)
	assert.Equal(t, 23, cfg.CppStd)
}

func TestLoad_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "burrito.config.yaml"), []byte("cppstd: 15\nlog:\n  level: loud\n"), 0644))

	_, err := config.NewManager().Load(config.LoadOptions{ProjectRoot: tmpDir})
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
	assert.Contains(t, err.Error(), "unsupported cppstd 15")
	assert.Contains(t, err.Error(), `unknown log level "loud"`)
}

func TestValidate_EmptyTool(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.CMake = ""

	err := config.Validate(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "tools.cmake")
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, config.Validate(config.Default()))
}

func TestLoad_ExampleConfig(t *testing.T) {
	m := config.NewManager()
	cfg, err := m.Load(config.LoadOptions{ConfigFile: filepath.Join("..", "..", "examples", "burrito.config.yaml")})
	require.NoError(t, err)
	assert.Equal(t, 17, cfg.CppStd)
	assert.Equal(t, "Glass", cfg.Notifications.SuccessSound)
	assert.Contains(t, cfg.Watch.Paths, "**/*.cmake")
	assert.Equal(t, config.DefaultRegistryPath(), cfg.RegistryPath)
}
