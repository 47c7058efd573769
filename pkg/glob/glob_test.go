package glob_test

import (
	"testing"

	"github.com/sqlite-burrito/burrito/pkg/glob"
)

func TestMatcher_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{
			name:     "simple wildcard",
			patterns: []string{"*.cpp"},
			path:     "burrito.cpp",
			want:     true,
		},
		{
			name:     "simple wildcard no match",
			patterns: []string{"*.cpp"},
			path:     "burrito.hpp",
			want:     false,
		},
		{
			name:     "single star stays in segment",
			patterns: []string{"*.cpp"},
			path:     "src/burrito.cpp",
			want:     false,
		},
		{
			name:     "double wildcard",
			patterns: []string{"**/*.cpp"},
			path:     "src/detail/statement.cpp",
			want:     true,
		},
		{
			name:     "double wildcard root",
			patterns: []string{"**/*.cpp"},
			path:     "main.cpp",
			want:     true,
		},
		{
			name:     "question mark",
			patterns: []string{"test?.cpp"},
			path:     "test1.cpp",
			want:     true,
		},
		{
			name:     "question mark no match",
			patterns: []string{"test?.cpp"},
			path:     "test12.cpp",
			want:     false,
		},
		{
			name:     "character class",
			patterns: []string{"test[0-9].cpp"},
			path:     "test5.cpp",
			want:     true,
		},
		{
			name:     "negated character class",
			patterns: []string{"test[!a-z].cpp"},
			path:     "test1.cpp",
			want:     true,
		},
		{
			name:     "directory covers contents",
			patterns: []string{"include"},
			path:     "include/sqlite_burrito/db.hpp",
			want:     true,
		},
		{
			name:     "prefix is not a directory",
			patterns: []string{"src"},
			path:     "srcfoo/x.cpp",
			want:     false,
		},
		{
			name:     "star covers everything",
			patterns: []string{"*"},
			path:     "tests/unit/db_test.cpp",
			want:     true,
		},
		{
			name:     "exclusion wins",
			patterns: []string{"*", "!build/*"},
			path:     "build/Release/CMakeCache.txt",
			want:     false,
		},
		{
			name:     "exclusion by directory glob",
			patterns: []string{"*", "!cmake-build-*"},
			path:     "cmake-build-debug/Makefile",
			want:     false,
		},
		{
			name:     "exclusion leaves siblings",
			patterns: []string{"*", "!.git/*"},
			path:     "CMakeLists.txt",
			want:     true,
		},
		{
			name:     "only exclusions include the rest",
			patterns: []string{"!build"},
			path:     "src/burrito.cpp",
			want:     true,
		},
		{
			name:     "dot is literal",
			patterns: []string{"CMakeLists.txt"},
			path:     "CMakeListsXtxt",
			want:     false,
		},
		{
			name:     "leading dot slash",
			patterns: []string{"./src"},
			path:     "./src/burrito.cpp",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := glob.Compile(tt.patterns)
			if err != nil {
				t.Fatalf("Compile(%v) error: %v", tt.patterns, err)
			}
			if got := m.Match(tt.path); got != tt.want {
				t.Errorf("Match(%q) with %v = %v, want %v", tt.path, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestMatcher_Filter(t *testing.T) {
	m := glob.MustCompile("src", "include", "!**/*.orig")

	got := m.Filter([]string{
		"src/burrito.cpp",
		"src/burrito.cpp.orig",
		"include/db.hpp",
		"README.md",
	})

	want := []string{"src/burrito.cpp", "include/db.hpp"}
	if len(got) != len(want) {
		t.Fatalf("Filter() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Filter()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMatcher_Excluded(t *testing.T) {
	m := glob.MustCompile("*", "!.git", "!build/*")

	if !m.Excluded(".git/index") {
		t.Error("expected .git/index to be excluded")
	}
	if m.Excluded("build") {
		t.Error("build itself is not covered by build/*")
	}
	if m.Excluded("src") {
		t.Error("src should not be excluded")
	}
}

func TestMatch(t *testing.T) {
	ok, err := glob.Match("src/**/test_*.cpp", "src/unit/test_db.cpp")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected match")
	}
}

func TestIsPattern(t *testing.T) {
	tests := map[string]bool{
		"*.cpp":          true,
		"test?.cpp":      true,
		"[abc].cpp":      true,
		"CMakeLists.txt": false,
		"src/burrito":    false,
	}
	for input, want := range tests {
		if got := glob.IsPattern(input); got != want {
			t.Errorf("IsPattern(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"./src/":      "src",
		"src\\detail": "src/detail",
		"include":     "include",
	}
	for input, want := range tests {
		if got := glob.Normalize(input); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCompile_UnclosedBracketIsLiteral(t *testing.T) {
	m := glob.MustCompile("[draft")
	if !m.Match("[draft") {
		t.Error("expected literal match")
	}
}
