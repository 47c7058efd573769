package recipe

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/sqlite-burrito/burrito/pkg/analyzers"
	"github.com/sqlite-burrito/burrito/pkg/types"
)

// DefaultManifestName is the recipe file looked up in a source tree
const DefaultManifestName = "burrito.yaml"

// Manifest is the declarative recipe as written in burrito.yaml
type Manifest struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version,omitempty"`
	Description string   `yaml:"description,omitempty"`
	License     string   `yaml:"license,omitempty"`
	URL         string   `yaml:"url,omitempty"`
	Homepage    string   `yaml:"homepage,omitempty"`
	Topics      []string `yaml:"topics,omitempty"`
	PackageType string   `yaml:"package_type,omitempty"`

	Options        map[string][]string `yaml:"options,omitempty"`
	DefaultOptions map[string]string   `yaml:"default_options,omitempty"`

	Requires     []RequirementSpec `yaml:"requires,omitempty"`
	TestRequires []string          `yaml:"test_requires,omitempty"`

	MinCppStd       int    `yaml:"min_cppstd,omitempty"`
	VersionFile     string `yaml:"version_file,omitempty"`
	VersionVariable string `yaml:"version_variable,omitempty"`

	CMake          CMakeNames `yaml:"cmake,omitempty"`
	ExportsSources []string   `yaml:"exports_sources,omitempty"`
}

// RequirementSpec is a runtime dependency entry
type RequirementSpec struct {
	Ref               string `yaml:"ref"`
	TransitiveHeaders bool   `yaml:"transitive_headers,omitempty"`
	TransitiveLibs    bool   `yaml:"transitive_libs,omitempty"`
}

// CMakeNames are the names consumers use to find the package
type CMakeNames struct {
	FileName   string   `yaml:"file_name,omitempty"`
	TargetName string   `yaml:"target_name,omitempty"`
	Libs       []string `yaml:"libs,omitempty"`
}

// LoadManifest reads and decodes a recipe file. Unknown keys are rejected.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseManifest decodes a recipe from YAML
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipe, err)
	}
	return &m, nil
}

// Marshal encodes the manifest back to YAML
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DefaultManifest describes the sqlite-burrito library
func DefaultManifest() *Manifest {
	return &Manifest{
		Name:        "sqlite-burrito",
		Description: "SQLite3 C++ wrapper",
		License:     "MIT",
		URL:         "https://github.com/yowidin/sqlite-burrito",
		Homepage:    "https://github.com/yowidin/sqlite-burrito",
		Topics:      []string{"sqlite", "sqlite3", "database", "cpp17"},
		PackageType: "library",
		Options: map[string][]string{
			types.OptionShared: {"True", "False"},
			types.OptionFPIC:   {"True", "False"},
		},
		DefaultOptions: map[string]string{
			types.OptionShared: "False",
			types.OptionFPIC:   "True",
		},
		Requires: []RequirementSpec{
			{Ref: "sqlite3/3.41.2", TransitiveHeaders: true, TransitiveLibs: true},
		},
		TestRequires:    []string{"catch2/3.3.2"},
		MinCppStd:       types.DefaultCppStd,
		VersionFile:     "CMakeLists.txt",
		VersionVariable: analyzers.DefaultVersionVariable,
		CMake: CMakeNames{
			FileName:   "SQLiteBurrito",
			TargetName: "SQLiteBurrito::library",
			Libs:       []string{"SQLiteBurrito"},
		},
		ExportsSources: []string{"*", "!.git/*", "!build/*", "!cmake-build-*"},
	}
}

func (m *Manifest) optionDecls() ([]types.OptionDecl, error) {
	names := make([]string, 0, len(m.Options))
	for name := range m.Options {
		names = append(names, name)
	}
	sort.Strings(names)

	for name := range m.DefaultOptions {
		if _, ok := m.Options[name]; !ok {
			return nil, fmt.Errorf("%w: default for undeclared option %q", ErrInvalidRecipe, name)
		}
	}

	decls := make([]types.OptionDecl, 0, len(names))
	for _, name := range names {
		decls = append(decls, types.OptionDecl{
			Name:    name,
			Allowed: m.Options[name],
			Default: m.DefaultOptions[name],
		})
	}
	return decls, nil
}
