// Package types provides the core configuration values shared by the
// orchestrator and the recipe lifecycle
package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/orsinium-labs/enum"
)

var (
	// ErrUnknownBuildType is returned when a preset does not name a build type
	ErrUnknownBuildType = errors.New("unknown build type")

	// ErrInvalidRequirement is returned for malformed package references
	ErrInvalidRequirement = errors.New("invalid requirement reference")

	// ErrInvalidBool is returned for boolean-like strings that cannot be parsed
	ErrInvalidBool = errors.New("invalid boolean value")
)

// BuildType represents CMake build configurations
type BuildType string

const (
	BuildTypeDebug          BuildType = "Debug"
	BuildTypeRelease        BuildType = "Release"
	BuildTypeRelWithDebInfo BuildType = "RelWithDebInfo"
	BuildTypeMinSizeRel     BuildType = "MinSizeRel"
)

var buildTypes = []BuildType{
	BuildTypeDebug,
	BuildTypeRelease,
	BuildTypeRelWithDebInfo,
	BuildTypeMinSizeRel,
}

// ParseBuildType matches a preset name against the known build types,
// ignoring case.
func ParseBuildType(name string) (BuildType, error) {
	for _, bt := range buildTypes {
		if strings.EqualFold(string(bt), name) {
			return bt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBuildType, name)
}

// OS is the operating system a package is built for
type OS = enum.Member[string]

var (
	OSLinux   = OS{Value: "Linux"}
	OSMacos   = OS{Value: "Macos"}
	OSWindows = OS{Value: "Windows"}
	OSFreeBSD = OS{Value: "FreeBSD"}

	// OperatingSystems lists every supported OS setting
	OperatingSystems = enum.New(OSLinux, OSMacos, OSWindows, OSFreeBSD)
)

// ParseOS parses an OS setting value such as "Windows"
func ParseOS(value string) (OS, error) {
	for _, os := range OperatingSystems.Members() {
		if strings.EqualFold(os.Value, value) {
			return os, nil
		}
	}
	return OS{}, fmt.Errorf("unsupported os %q", value)
}

// HostOS maps the running Go platform onto an OS setting
func HostOS() OS {
	return OSFromGOOS(runtime.GOOS)
}

// OSFromGOOS maps a GOOS value onto an OS setting. Unknown values map to Linux.
func OSFromGOOS(goos string) OS {
	switch goos {
	case "darwin":
		return OSMacos
	case "windows":
		return OSWindows
	case "freebsd":
		return OSFreeBSD
	default:
		return OSLinux
	}
}

// ParseBool accepts the boolean-like strings CMake and conan understand
// (true/false, on/off, yes/no, 1/0), ignoring case.
func ParseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "yes", "y":
		return true, nil
	case "off", "no", "n":
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidBool, value)
	}
	return b, nil
}

// BuildConfiguration is the configuration of one orchestrated build
type BuildConfiguration struct {
	Preset    string
	BuildType BuildType
	Shared    bool
	CppStd    int
}

// DefaultCppStd is the minimum C++ standard the library is built with
const DefaultCppStd = 17

// NewBuildConfiguration derives a build configuration from a preset name.
// The build type is taken from the preset so the toolchain path and the
// build type can never disagree.
func NewBuildConfiguration(preset string, shared bool, cppstd int) (BuildConfiguration, error) {
	bt, err := ParseBuildType(preset)
	if err != nil {
		return BuildConfiguration{}, err
	}
	if cppstd == 0 {
		cppstd = DefaultCppStd
	}
	return BuildConfiguration{
		Preset:    preset,
		BuildType: bt,
		Shared:    shared,
		CppStd:    cppstd,
	}, nil
}

// PresetName returns the CMake preset generated by the dependency manager
func (c BuildConfiguration) PresetName() string {
	return "conan-" + strings.ToLower(c.Preset)
}

// BuildDir returns build/<preset> under the source directory
func (c BuildConfiguration) BuildDir(sourceDir, buildRoot string) string {
	if buildRoot == "" {
		buildRoot = "build"
	}
	if !filepath.IsAbs(buildRoot) {
		buildRoot = filepath.Join(sourceDir, buildRoot)
	}
	return filepath.Join(buildRoot, c.Preset)
}

// ToolchainPath returns the toolchain file generated for a build directory
func (c BuildConfiguration) ToolchainPath(buildDir string) string {
	return filepath.Join(buildDir, "generators", "conan_toolchain.cmake")
}

// SharedFlag renders the shared flag the way CMake expects it
func (c BuildConfiguration) SharedFlag() string {
	if c.Shared {
		return "ON"
	}
	return "OFF"
}

// Tools names the external binaries that are driven as subprocesses
type Tools struct {
	Conan string `mapstructure:"conan" json:"conan"`
	CMake string `mapstructure:"cmake" json:"cmake"`
	CTest string `mapstructure:"ctest" json:"ctest"`
}

// DefaultTools resolves the binaries from PATH
func DefaultTools() Tools {
	return Tools{Conan: "conan", CMake: "cmake", CTest: "ctest"}
}

// Requirement is a dependency on another package
type Requirement struct {
	Ref               string `json:"ref" yaml:"ref"`
	TransitiveHeaders bool   `json:"transitive_headers,omitempty" yaml:"transitive_headers,omitempty"`
	TransitiveLibs    bool   `json:"transitive_libs,omitempty" yaml:"transitive_libs,omitempty"`
}

// ParseRequirement validates a name/version reference
func ParseRequirement(ref string, transitiveHeaders, transitiveLibs bool) (Requirement, error) {
	name, version, ok := strings.Cut(ref, "/")
	if !ok || name == "" || version == "" || strings.Contains(version, "/") {
		return Requirement{}, fmt.Errorf("%w: %q", ErrInvalidRequirement, ref)
	}
	return Requirement{
		Ref:               ref,
		TransitiveHeaders: transitiveHeaders,
		TransitiveLibs:    transitiveLibs,
	}, nil
}

// Name returns the package name part of the reference
func (r Requirement) Name() string {
	name, _, _ := strings.Cut(r.Ref, "/")
	return name
}

// Version returns the version part of the reference
func (r Requirement) Version() string {
	_, version, _ := strings.Cut(r.Ref, "/")
	return version
}

// Transitive reports whether consumers see this dependency
func (r Requirement) Transitive() bool {
	return r.TransitiveHeaders || r.TransitiveLibs
}

// PackageMetadata describes a published package
type PackageMetadata struct {
	Name        string   `json:"name" yaml:"name"`
	Version     string   `json:"version,omitempty" yaml:"version,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	License     string   `json:"license,omitempty" yaml:"license,omitempty"`
	URL         string   `json:"url,omitempty" yaml:"url,omitempty"`
	Homepage    string   `json:"homepage,omitempty" yaml:"homepage,omitempty"`
	Topics      []string `json:"topics,omitempty" yaml:"topics,omitempty"`
}

// Reference returns name/version
func (m PackageMetadata) Reference() string {
	return m.Name + "/" + m.Version
}

// Consumer metadata property names
const (
	PropertyCMakeFileName   = "cmake_file_name"
	PropertyCMakeTargetName = "cmake_target_name"
)

// CppInfo is the metadata consumers of a package see
type CppInfo struct {
	Libs       []string          `json:"libs" yaml:"libs"`
	Properties map[string]string `json:"properties" yaml:"properties"`
	Requires   []string          `json:"requires" yaml:"requires"`
}

// SetProperty records a consumer property
func (c *CppInfo) SetProperty(key, value string) {
	if c.Properties == nil {
		c.Properties = make(map[string]string)
	}
	c.Properties[key] = value
}

// StageStatus represents the state of one pipeline or lifecycle stage
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusSucceeded StageStatus = "succeeded"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
