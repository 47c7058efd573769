// Package analyzers reads CMake build descriptions without running CMake
package analyzers

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ErrVersionNotFound is returned when the build description does not
// declare the requested version variable
var ErrVersionNotFound = errors.New("version not found in build description")

// DefaultVersionVariable is the CMake variable holding the library version
const DefaultVersionVariable = "SB_VERSION"

var (
	projectRegex = regexp.MustCompile(`(?i)^\s*project\s*\(\s*([^)\s]+)`)
	versionRegex = regexp.MustCompile(`VERSION\s+([0-9][0-9A-Za-z.\-]*)`)
	targetRegex  = regexp.MustCompile(`(?i)^\s*(add_executable|add_library)\s*\(\s*([^)\s]+)(?:\s+(STATIC|SHARED|MODULE|INTERFACE|OBJECT|ALIAS))?`)
	testRegex    = regexp.MustCompile(`(?i)^\s*add_test\s*\(\s*(?:NAME\s+)?([^)\s]+)`)
	setRegex     = regexp.MustCompile(`(?i)^\s*set\s*\(\s*([A-Za-z_][A-Za-z0-9_]*)\s+("([^"]*)"|[^)\s]+)`)
)

// CMakeAnalyzer analyzes a CMake source tree
type CMakeAnalyzer struct {
	projectRoot string
}

// NewCMakeAnalyzer creates a new CMake analyzer rooted at projectRoot
func NewCMakeAnalyzer(projectRoot string) *CMakeAnalyzer {
	return &CMakeAnalyzer{projectRoot: projectRoot}
}

// CMakeTarget is a target declared with add_executable, add_library or
// add_test
type CMakeTarget struct {
	Name      string
	Type      string
	Directory string
}

// CMakeProject is the result of analyzing a source tree
type CMakeProject struct {
	Name      string
	Version   string
	Targets   []CMakeTarget
	Variables map[string]string
}

// Target returns the target with the given name
func (p *CMakeProject) Target(name string) (CMakeTarget, bool) {
	for _, t := range p.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return CMakeTarget{}, false
}

// VariableNames returns the names of all set() variables, sorted
func (p *CMakeProject) VariableNames() []string {
	names := make([]string, 0, len(p.Variables))
	for k := range p.Variables {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// AnalysisOptions configures analysis
type AnalysisOptions struct {
	IncludeTests    bool
	RecursiveSearch bool
	// SkipDirs are directory names never descended into
	SkipDirs []string
}

// DefaultAnalysisOptions returns default analysis options
func DefaultAnalysisOptions() *AnalysisOptions {
	return &AnalysisOptions{
		IncludeTests:    true,
		RecursiveSearch: true,
		SkipDirs:        []string{"build"},
	}
}

// AnalyzeProject analyzes the root CMakeLists.txt and, when recursive,
// every CMakeLists.txt below it
func (a *CMakeAnalyzer) AnalyzeProject(options *AnalysisOptions) (*CMakeProject, error) {
	if options == nil {
		options = DefaultAnalysisOptions()
	}

	files, err := a.findCMakeFiles(options)
	if err != nil {
		return nil, fmt.Errorf("failed to find CMake files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CMakeLists.txt files found in %s", a.projectRoot)
	}

	project := &CMakeProject{Variables: make(map[string]string)}

	mainFile := filepath.Join(a.projectRoot, "CMakeLists.txt")
	if err := analyzeFile(mainFile, a.projectRoot, project, options, true); err != nil {
		return nil, fmt.Errorf("failed to analyze main CMakeLists.txt: %w", err)
	}

	for _, f := range files {
		if f == mainFile {
			continue
		}
		if err := analyzeFile(f, a.projectRoot, project, options, false); err != nil {
			return nil, fmt.Errorf("failed to analyze %s: %w", f, err)
		}
	}

	return project, nil
}

// FindTargets returns all targets of the project
func (a *CMakeAnalyzer) FindTargets(options *AnalysisOptions) ([]CMakeTarget, error) {
	project, err := a.AnalyzeProject(options)
	if err != nil {
		return nil, err
	}
	return project.Targets, nil
}

// ResolveVersion returns the value of set(<variable> <value>) in the root
// CMakeLists.txt
func (a *CMakeAnalyzer) ResolveVersion(variable string) (string, error) {
	return ResolveVersion(filepath.Join(a.projectRoot, "CMakeLists.txt"), variable)
}

// ResolveVersion scans a single CMake file for set(<variable> <value>).
// The first assignment wins. A missing file or a missing assignment yields
// ErrVersionNotFound.
func ResolveVersion(path, variable string) (string, error) {
	if variable == "" {
		variable = DefaultVersionVariable
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s does not exist", ErrVersionNotFound, path)
		}
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		name, value, ok := parseSet(scanner.Text())
		if ok && name == variable && value != "" {
			return value, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}

	return "", fmt.Errorf("%w: no set(%s ...) in %s", ErrVersionNotFound, variable, path)
}

func parseSet(line string) (name, value string, ok bool) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return "", "", false
	}
	m := setRegex.FindStringSubmatch(line)
	if len(m) < 3 {
		return "", "", false
	}
	value = m[2]
	if strings.HasPrefix(value, `"`) {
		value = m[3]
	}
	return m[1], value, true
}

func (a *CMakeAnalyzer) findCMakeFiles(options *AnalysisOptions) ([]string, error) {
	root := filepath.Join(a.projectRoot, "CMakeLists.txt")
	if !options.RecursiveSearch {
		if _, err := os.Stat(root); err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		return []string{root}, nil
	}

	skip := make(map[string]bool, len(options.SkipDirs))
	for _, d := range options.SkipDirs {
		skip[d] = true
	}

	var files []string
	err := filepath.WalkDir(a.projectRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != a.projectRoot && (skip[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == "CMakeLists.txt" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func analyzeFile(path, projectRoot string, project *CMakeProject, options *AnalysisOptions, main bool) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	relDir, _ := filepath.Rel(projectRoot, filepath.Dir(path))

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if main && project.Name == "" {
			if m := projectRegex.FindStringSubmatch(line); len(m) > 1 {
				project.Name = m[1]
				if v := versionRegex.FindStringSubmatch(line); len(v) > 1 {
					project.Version = v[1]
				}
				continue
			}
		}

		if name, value, ok := parseSet(line); ok {
			if _, seen := project.Variables[name]; !seen {
				project.Variables[name] = value
			}
			continue
		}

		if m := targetRegex.FindStringSubmatch(line); len(m) > 2 {
			project.Targets = append(project.Targets, CMakeTarget{
				Name:      m[2],
				Type:      targetType(m[1], m[3]),
				Directory: relDir,
			})
			continue
		}

		if options.IncludeTests {
			if m := testRegex.FindStringSubmatch(line); len(m) > 1 {
				project.Targets = append(project.Targets, CMakeTarget{
					Name:      m[1],
					Type:      "TEST",
					Directory: relDir,
				})
			}
		}
	}

	return scanner.Err()
}

func targetType(command, kind string) string {
	if strings.EqualFold(command, "add_executable") {
		return "EXECUTABLE"
	}
	switch strings.ToUpper(kind) {
	case "SHARED":
		return "SHARED_LIBRARY"
	case "MODULE":
		return "MODULE_LIBRARY"
	case "INTERFACE":
		return "INTERFACE_LIBRARY"
	case "OBJECT":
		return "OBJECT_LIBRARY"
	case "ALIAS":
		return "ALIAS"
	default:
		return "STATIC_LIBRARY"
	}
}
