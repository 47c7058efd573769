package recipe

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/sqlite-burrito/burrito/pkg/types"
)

// Settings describe the host a package is built for and the machine it is
// built on
type Settings struct {
	OS        types.OS
	Arch      string
	BuildOS   types.OS
	BuildArch string
	Compiler  string
	// CppStd is the compiler standard setting, e.g. "17" or "gnu17".
	// Empty means the compiler default and is not checked.
	CppStd    string
	BuildType types.BuildType
}

// HostSettings returns settings for a native build on this machine
func HostSettings(buildType types.BuildType) Settings {
	return Settings{
		OS:        types.HostOS(),
		Arch:      runtime.GOARCH,
		BuildOS:   types.HostOS(),
		BuildArch: runtime.GOARCH,
		BuildType: buildType,
	}
}

// CanRun reports whether binaries produced for the host settings can be
// executed on the build machine
func (s Settings) CanRun() bool {
	return s.OS == s.BuildOS && s.Arch == s.BuildArch
}

// CppStdNumber returns the numeric part of the standard setting. ok is
// false when no standard is set.
func (s Settings) CppStdNumber() (n int, ok bool, err error) {
	if s.CppStd == "" {
		return 0, false, nil
	}
	digits := strings.TrimPrefix(strings.ToLower(s.CppStd), "gnu")
	n, err = strconv.Atoi(digits)
	if err != nil {
		return 0, true, fmt.Errorf("%w: invalid cppstd %q", ErrInvalidConfiguration, s.CppStd)
	}
	return n, true, nil
}

// cppStdRank orders two-digit standards so that 98 sorts before 11
func cppStdRank(n int) int {
	if n >= 90 {
		return 1900 + n
	}
	return 2000 + n
}
