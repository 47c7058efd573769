// Package environ provides scoped environment overlays for running build
// and test tools.
//
// An Overlay is a list of operations (set, prepend, append) on environment
// variables. It can be rendered into a child process environment with
// Environ, which never touches the current process, or applied to the
// current process for the duration of a function with Within, which always
// restores the previous values, including when the function fails or
// panics.
package environ

import (
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/sqlite-burrito/burrito/pkg/types"
)

type opKind int

const (
	opSet opKind = iota
	opPrepend
	opAppend
)

type op struct {
	kind  opKind
	key   string
	value string
}

// Overlay is an ordered set of environment modifications
type Overlay struct {
	ops       []op
	separator string
}

// New creates an empty overlay using the host path list separator
func New() *Overlay {
	return &Overlay{separator: string(os.PathListSeparator)}
}

// NewFor creates an empty overlay for a target OS
func NewFor(target types.OS) *Overlay {
	sep := ":"
	if target == types.OSWindows {
		sep = ";"
	}
	return &Overlay{separator: sep}
}

// Set replaces a variable
func (o *Overlay) Set(key, value string) *Overlay {
	o.ops = append(o.ops, op{kind: opSet, key: key, value: value})
	return o
}

// Prepend puts a path in front of a path-list variable
func (o *Overlay) Prepend(key, path string) *Overlay {
	o.ops = append(o.ops, op{kind: opPrepend, key: key, value: path})
	return o
}

// Append adds a path at the end of a path-list variable
func (o *Overlay) Append(key, path string) *Overlay {
	o.ops = append(o.ops, op{kind: opAppend, key: key, value: path})
	return o
}

// Merge appends the operations of other after those of o
func (o *Overlay) Merge(other *Overlay) *Overlay {
	if other != nil {
		o.ops = append(o.ops, other.ops...)
	}
	return o
}

// Len returns the number of operations
func (o *Overlay) Len() int {
	return len(o.ops)
}

// Environ applies the overlay to base (KEY=VALUE pairs) and returns the
// result. base is not modified.
func (o *Overlay) Environ(base []string) []string {
	vars := make(map[string]string, len(base))
	order := make([]string, 0, len(base))
	for _, kv := range base {
		k, v, _ := strings.Cut(kv, "=")
		k = o.normalizeKey(k)
		if _, seen := vars[k]; !seen {
			order = append(order, k)
		}
		vars[k] = v
	}

	for _, op := range o.ops {
		k := o.normalizeKey(op.key)
		cur, exists := vars[k]
		if !exists {
			order = append(order, k)
		}
		vars[k] = o.resolve(op, cur, exists)
	}

	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+vars[k])
	}
	return out
}

// Lookup returns the value the overlay would give key on top of base
func (o *Overlay) Lookup(base []string, key string) (string, bool) {
	want := o.normalizeKey(key)
	for _, kv := range o.Environ(base) {
		k, v, _ := strings.Cut(kv, "=")
		if k == want {
			return v, true
		}
	}
	return "", false
}

func (o *Overlay) resolve(op op, cur string, exists bool) string {
	switch op.kind {
	case opPrepend:
		if !exists || cur == "" {
			return op.value
		}
		return op.value + o.separator + cur
	case opAppend:
		if !exists || cur == "" {
			return op.value
		}
		return cur + o.separator + op.value
	default:
		return op.value
	}
}

// Environment variable names are case-insensitive on Windows
func (o *Overlay) normalizeKey(k string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(k)
	}
	return k
}

// processEnvMu serializes mutation of the process environment
var processEnvMu sync.Mutex

// Apply modifies the current process environment and returns a function
// restoring every touched variable to its previous state.
func (o *Overlay) Apply() (restore func(), err error) {
	processEnvMu.Lock()
	defer processEnvMu.Unlock()

	type saved struct {
		value  string
		exists bool
	}
	previous := make(map[string]saved)
	var touched []string

	restoreLocked := func() {
		for i := len(touched) - 1; i >= 0; i-- {
			k := touched[i]
			p := previous[k]
			if p.exists {
				_ = os.Setenv(k, p.value)
			} else {
				_ = os.Unsetenv(k)
			}
		}
	}

	for _, op := range o.ops {
		if _, ok := previous[op.key]; !ok {
			v, exists := os.LookupEnv(op.key)
			previous[op.key] = saved{value: v, exists: exists}
			touched = append(touched, op.key)
		}
		cur, exists := os.LookupEnv(op.key)
		if err := os.Setenv(op.key, o.resolve(op, cur, exists)); err != nil {
			restoreLocked()
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			processEnvMu.Lock()
			defer processEnvMu.Unlock()
			restoreLocked()
		})
	}, nil
}

// Within applies the overlay, runs fn and restores the environment on
// every exit path.
func (o *Overlay) Within(fn func() error) error {
	restore, err := o.Apply()
	if err != nil {
		return err
	}
	defer restore()
	return fn()
}

// LibraryPathVar returns the variable the dynamic loader searches for
// shared libraries on the given OS
func LibraryPathVar(target types.OS) string {
	switch target {
	case types.OSWindows:
		return "PATH"
	case types.OSMacos:
		return "DYLD_LIBRARY_PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

// RunEnv builds the overlay that lets test binaries find the shared
// libraries of their dependencies. Every library directory is prepended to
// the loader search path. On Windows the default setup does not cover the
// binary output directory, so it is prepended to PATH explicitly.
func RunEnv(target types.OS, libDirs []string, binDir string) *Overlay {
	o := NewFor(target)
	key := LibraryPathVar(target)
	for i := len(libDirs) - 1; i >= 0; i-- {
		o.Prepend(key, libDirs[i])
	}
	if target == types.OSWindows && binDir != "" {
		o.Prepend("PATH", binDir)
	}
	return o
}
