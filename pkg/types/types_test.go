package types_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlite-burrito/burrito/pkg/types"
)

func TestParseBuildType(t *testing.T) {
	tests := []struct {
		name    string
		preset  string
		want    types.BuildType
		wantErr bool
	}{
		{name: "exact", preset: "Release", want: types.BuildTypeRelease},
		{name: "lower case", preset: "debug", want: types.BuildTypeDebug},
		{name: "mixed case", preset: "relwithdebinfo", want: types.BuildTypeRelWithDebInfo},
		{name: "unknown", preset: "Profile", wantErr: true},
		{name: "empty", preset: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := types.ParseBuildType(tt.preset)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrUnknownBuildType)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildConfiguration_Paths(t *testing.T) {
	cfg, err := types.NewBuildConfiguration("Release", true, 0)
	require.NoError(t, err)

	assert.Equal(t, types.DefaultCppStd, cfg.CppStd)
	assert.Equal(t, "conan-release", cfg.PresetName())
	assert.Equal(t, "ON", cfg.SharedFlag())

	src := filepath.Join("work", "src")
	buildDir := cfg.BuildDir(src, "")
	assert.Equal(t, filepath.Join(src, "build", "Release"), buildDir)
	assert.Equal(t,
		filepath.Join(src, "build", "Release", "generators", "conan_toolchain.cmake"),
		cfg.ToolchainPath(buildDir))
}

func TestBuildConfiguration_AbsoluteBuildRoot(t *testing.T) {
	cfg, err := types.NewBuildConfiguration("Debug", false, 20)
	require.NoError(t, err)

	root := t.TempDir()
	assert.Equal(t, filepath.Join(root, "Debug"), cfg.BuildDir("ignored", root))
	assert.Equal(t, "OFF", cfg.SharedFlag())
	assert.Equal(t, 20, cfg.CppStd)
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "True", "ON", "yes", "1"} {
		b, err := types.ParseBool(v)
		require.NoError(t, err, v)
		assert.True(t, b, v)
	}
	for _, v := range []string{"false", "OFF", "no", "0"} {
		b, err := types.ParseBool(v)
		require.NoError(t, err, v)
		assert.False(t, b, v)
	}

	_, err := types.ParseBool("maybe")
	assert.True(t, errors.Is(err, types.ErrInvalidBool))
}

func TestParseRequirement(t *testing.T) {
	req, err := types.ParseRequirement("sqlite3/3.41.2", true, true)
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", req.Name())
	assert.Equal(t, "3.41.2", req.Version())
	assert.True(t, req.Transitive())

	for _, bad := range []string{"sqlite3", "/3.41.2", "sqlite3/", "a/b/c"} {
		_, err := types.ParseRequirement(bad, false, false)
		assert.ErrorIs(t, err, types.ErrInvalidRequirement, bad)
	}
}

func TestOS(t *testing.T) {
	assert.Equal(t, types.OSWindows, types.OSFromGOOS("windows"))
	assert.Equal(t, types.OSMacos, types.OSFromGOOS("darwin"))
	assert.Equal(t, types.OSLinux, types.OSFromGOOS("plan9"))

	os, err := types.ParseOS("windows")
	require.NoError(t, err)
	assert.Equal(t, types.OSWindows, os)

	_, err = types.ParseOS("beos")
	assert.Error(t, err)
}

func TestCppInfo_SetProperty(t *testing.T) {
	var info types.CppInfo
	info.SetProperty(types.PropertyCMakeFileName, "SQLiteBurrito")
	assert.Equal(t, "SQLiteBurrito", info.Properties[types.PropertyCMakeFileName])
}
