// Package config handles configuration loading and management
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/sqlite-burrito/burrito/pkg/types"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigName is the base name searched for in the project root
const ConfigName = "burrito.config"

// EnvPrefix prefixes environment overrides, e.g. BURRITO_TOOLS_CMAKE
const EnvPrefix = "BURRITO"

// Config is the tool configuration
type Config struct {
	Tools         types.Tools        `mapstructure:"tools"`
	CppStd        int                `mapstructure:"cppstd"`
	SourceDir     string             `mapstructure:"source_dir"`
	BuildRoot     string             `mapstructure:"build_root"`
	Recipe        string             `mapstructure:"recipe"`
	RegistryPath  string             `mapstructure:"registry_path"`
	Log           LogConfig          `mapstructure:"log"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Watch         WatchConfig        `mapstructure:"watch"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// NotificationConfig configures desktop notifications
type NotificationConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	SuccessSound string `mapstructure:"success_sound"`
	FailureSound string `mapstructure:"failure_sound"`
}

// WatchConfig configures the watch command
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Paths    []string      `mapstructure:"paths"`
	Exclude  []string      `mapstructure:"exclude"`
}

// LoadOptions selects where configuration comes from
type LoadOptions struct {
	// ConfigFile is an explicit file; it must exist when set
	ConfigFile string
	// ProjectRoot is searched for burrito.config.{yaml,yml,json,toml}
	ProjectRoot string
}

// Manager loads configuration through a private viper instance
type Manager struct {
	v    *viper.Viper
	root string
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	v := viper.New()
	setDefaults(v)
	return &Manager{v: v}
}

// Viper exposes the underlying viper instance for flag binding
func (m *Manager) Viper() *viper.Viper {
	return m.v
}

// ConfigFileUsed returns the file the configuration was read from, if any
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Load reads defaults, the config file and BURRITO_* environment variables,
// in increasing order of precedence, and validates the result
func (m *Manager) Load(opts LoadOptions) (*Config, error) {
	root := opts.ProjectRoot
	if root == "" {
		root = "."
	}

	if opts.ConfigFile != "" {
		m.v.SetConfigFile(opts.ConfigFile)
	} else {
		m.v.AddConfigPath(root)
		m.v.SetConfigName(ConfigName)
	}

	m.v.SetEnvPrefix(EnvPrefix)
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	m.root = root
	return m.resolve()
}

// Watch calls onChange with the reloaded configuration each time the
// config file changes. It is a no-op when no file was read.
func (m *Manager) Watch(onChange func(*Config, error)) {
	if m.v.ConfigFileUsed() == "" {
		return
	}
	m.v.OnConfigChange(func(fsnotify.Event) {
		onChange(m.resolve())
	})
	m.v.WatchConfig()
}

// resolve decodes the current values, anchors relative paths to the
// project root and validates the result
func (m *Manager) resolve() (*Config, error) {
	cfg, err := m.decode()
	if err != nil {
		return nil, err
	}

	root := m.root
	if root == "" {
		root = "."
	}
	switch {
	case cfg.SourceDir == "":
		cfg.SourceDir = root
	case !filepath.IsAbs(cfg.SourceDir):
		cfg.SourceDir = filepath.Join(root, cfg.SourceDir)
	}
	if cfg.RegistryPath == "" {
		cfg.RegistryPath = DefaultRegistryPath()
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (m *Manager) decode() (*Config, error) {
	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks a configuration
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Tools.Conan == "" {
		problems = append(problems, "tools.conan is empty")
	}
	if cfg.Tools.CMake == "" {
		problems = append(problems, "tools.cmake is empty")
	}
	if cfg.Tools.CTest == "" {
		problems = append(problems, "tools.ctest is empty")
	}
	switch cfg.CppStd {
	case 11, 14, 17, 20, 23, 26:
	default:
		problems = append(problems, fmt.Sprintf("unsupported cppstd %d", cfg.CppStd))
	}
	if cfg.BuildRoot == "" {
		problems = append(problems, "build_root is empty")
	}
	switch types.LogLevel(strings.ToLower(cfg.Log.Level)) {
	case types.LogLevelDebug, types.LogLevelInfo, types.LogLevelWarn, types.LogLevelError:
	default:
		problems = append(problems, fmt.Sprintf("unknown log level %q", cfg.Log.Level))
	}
	if cfg.Watch.Debounce < 0 {
		problems = append(problems, "watch.debounce is negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	m := NewManager()
	cfg, _ := m.decode()
	cfg.RegistryPath = DefaultRegistryPath()
	return cfg
}

// DefaultRegistryPath returns $XDG_DATA_HOME/burrito/registry.sqlite
func DefaultRegistryPath() string {
	return filepath.Join(xdg.DataHome, "burrito", "registry.sqlite")
}

func setDefaults(v *viper.Viper) {
	tools := types.DefaultTools()
	v.SetDefault("tools.conan", tools.Conan)
	v.SetDefault("tools.cmake", tools.CMake)
	v.SetDefault("tools.ctest", tools.CTest)
	v.SetDefault("cppstd", types.DefaultCppStd)
	v.SetDefault("source_dir", "")
	v.SetDefault("build_root", "build")
	v.SetDefault("recipe", "burrito.yaml")
	v.SetDefault("registry_path", "")
	v.SetDefault("log.level", string(types.LogLevelInfo))
	v.SetDefault("log.file", "")
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.success_sound", "")
	v.SetDefault("notifications.failure_sound", "")
	v.SetDefault("watch.debounce", 500*time.Millisecond)
	v.SetDefault("watch.paths", []string{"CMakeLists.txt", "src", "include", "tests"})
	v.SetDefault("watch.exclude", []string{"build", ".git", ".burrito"})
}
