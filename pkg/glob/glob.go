// Package glob matches slash-separated relative paths against glob
// patterns.
//
// A pattern matches a path when it matches the whole path or any leading
// directory of it, so "src" and "build/*" cover everything below them.
// "*" and "?" stay within one path segment, "**" crosses segments and a
// leading "!" turns a pattern into an exclusion.
package glob

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Matcher holds compiled include and exclude patterns
type Matcher struct {
	patterns []string
	include  []*regexp.Regexp
	exclude  []*regexp.Regexp
}

// Compile builds a matcher. Patterns starting with "!" exclude.
func Compile(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: append([]string(nil), patterns...)}
	for _, p := range patterns {
		negated := strings.HasPrefix(p, "!")
		p = Normalize(strings.TrimPrefix(p, "!"))
		if p == "" {
			continue
		}
		re, err := compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		if negated {
			m.exclude = append(m.exclude, re)
		} else {
			m.include = append(m.include, re)
		}
	}
	return m, nil
}

// MustCompile is Compile that panics on error
func MustCompile(patterns ...string) *Matcher {
	m, err := Compile(patterns)
	if err != nil {
		panic(err)
	}
	return m
}

// Patterns returns the source patterns
func (m *Matcher) Patterns() []string {
	return m.patterns
}

// Match reports whether path is included and not excluded. A matcher with
// no include patterns includes everything.
func (m *Matcher) Match(path string) bool {
	path = Normalize(path)
	if m.Excluded(path) {
		return false
	}
	if len(m.include) == 0 {
		return true
	}
	return matchAny(m.include, path)
}

// Excluded reports whether an exclusion pattern covers path
func (m *Matcher) Excluded(path string) bool {
	return matchAny(m.exclude, Normalize(path))
}

// Filter returns the paths that Match
func (m *Matcher) Filter(paths []string) []string {
	var out []string
	for _, p := range paths {
		if m.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Match matches a single pattern against path
func Match(pattern, path string) (bool, error) {
	re, err := compile(Normalize(pattern))
	if err != nil {
		return false, err
	}
	return re.MatchString(Normalize(path)), nil
}

// IsPattern reports whether s contains glob wildcards
func IsPattern(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// Normalize converts separators to slashes and strips "./" and trailing
// slashes
func Normalize(p string) string {
	p = filepath.ToSlash(p)
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return strings.TrimSuffix(p, "/")
}

func matchAny(res []*regexp.Regexp, path string) bool {
	for _, re := range res {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// compile converts a glob into a regular expression anchored at the start
// of the path and at a segment boundary at the end
func compile(pattern string) (*regexp.Regexp, error) {
	var re strings.Builder
	re.WriteString("^")

	i := 0
	for i < len(pattern) {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				if i+2 < len(pattern) && pattern[i+2] == '/' {
					// "**/" also matches zero directories
					re.WriteString("(?:.*/)?")
					i += 3
				} else {
					re.WriteString(".*")
					i += 2
				}
			} else {
				re.WriteString("[^/]*")
				i++
			}
		case '?':
			re.WriteString("[^/]")
			i++
		case '[':
			j := i + 1
			var class strings.Builder
			if j < len(pattern) && pattern[j] == '!' {
				class.WriteString("[^")
				j++
			} else {
				class.WriteString("[")
			}
			for j < len(pattern) && pattern[j] != ']' {
				if pattern[j] == '\\' && j+1 < len(pattern) {
					class.WriteByte(pattern[j])
					class.WriteByte(pattern[j+1])
					j += 2
					continue
				}
				class.WriteByte(pattern[j])
				j++
			}
			if j < len(pattern) {
				class.WriteByte(']')
				re.WriteString(class.String())
				i = j + 1
			} else {
				// unclosed bracket is a literal
				re.WriteString(`\[`)
				i++
			}
		case '\\':
			if i+1 < len(pattern) {
				re.WriteString(regexp.QuoteMeta(string(pattern[i+1])))
				i += 2
			} else {
				re.WriteString(`\\`)
				i++
			}
		default:
			re.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	re.WriteString("(?:/.*)?$")
	return regexp.Compile(re.String())
}
