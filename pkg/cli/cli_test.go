package cli_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlite-burrito/burrito/pkg/cli"
	"github.com/sqlite-burrito/burrito/pkg/process"
	"github.com/sqlite-burrito/burrito/pkg/recipe"
)

type harness struct {
	root   string
	runner *process.RecordingRunner
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	registry := filepath.Join(t.TempDir(), "registry.sqlite")
	config := "registry_path: " + registry + "\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "burrito.config.yaml"), []byte(config), 0644))
	return &harness{root: root, runner: &process.RecordingRunner{}}
}

func (h *harness) run(args ...string) error {
	h.out = &bytes.Buffer{}
	h.errOut = &bytes.Buffer{}
	c := cli.NewCLIWithOutput(&cli.Config{Version: "0.2.0"}, h.out, h.errOut)
	c.SetRunner(h.runner)
	return c.Execute(append([]string{"--root", h.root}, args...))
}

func (h *harness) writeSources(t *testing.T) {
	t.Helper()
	files := map[string]string{
		"CMakeLists.txt": "cmake_minimum_required(VERSION 3.20)\nproject(SQLiteBurrito)\nset(SB_VERSION 0.2.0)\nadd_library(SQLiteBurrito src/burrito.cpp)\n",
		"LICENSE":        "MIT",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(h.root, name), []byte(content), 0644))
	}
}

func TestCI_RunsFourCommands(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("ci", "Release", "false"))

	require.Len(t, h.runner.Commands, 4)
	assert.Equal(t, []string{"conan", "cmake", "cmake", "ctest"}, []string{
		h.runner.Commands[0].Name, h.runner.Commands[1].Name, h.runner.Commands[2].Name, h.runner.Commands[3].Name,
	})
	assert.Contains(t, h.runner.Commands[1].Args, "-DBUILD_SHARED_LIBS=OFF")
	assert.DirExists(t, filepath.Join(h.root, "build", "Release"))
	assert.Contains(t, h.out.String(), "passed")
}

func TestCI_FailurePropagatesExitCode(t *testing.T) {
	h := newHarness(t)
	h.runner.Failures = map[int]error{2: &process.ExitError{Command: process.Command{Name: "cmake"}, Code: 3}}

	err := h.run("ci", "Debug", "on")
	require.Error(t, err)
	assert.Equal(t, 3, process.ExitCode(err))
	assert.Len(t, h.runner.Commands, 3)
}

func TestCI_DryRunRunsNothing(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("ci", "Release", "true", "--dry-run"))

	assert.Empty(t, h.runner.Commands)
	assert.Equal(t, 4, strings.Count(h.out.String(), "--- would run:"))
	assert.Contains(t, h.out.String(), "conan-release")
	assert.NoDirExists(t, filepath.Join(h.root, "build", "Release"))
}

func TestCI_InvalidArguments(t *testing.T) {
	h := newHarness(t)

	assert.Error(t, h.run("ci", "Release"))
	assert.Error(t, h.run("ci", "Release", "maybe"))
	assert.Error(t, h.run("ci", "Fastest", "true"))
	assert.Empty(t, h.runner.Commands)
}

func TestStatus_AfterCI(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("ci", "Release", "false"))

	require.NoError(t, h.run("status", "Release"))
	assert.Contains(t, h.out.String(), "succeeded")
	assert.Contains(t, h.out.String(), "1 runs, 0 failed")
}

func TestStatus_NoRuns(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("status", "Debug"))
	assert.Contains(t, h.out.String(), "No runs recorded")
}

func TestInit_WritesLoadableRecipe(t *testing.T) {
	h := newHarness(t)
	h.writeSources(t)

	require.NoError(t, h.run("init"))
	r, err := recipe.Load(filepath.Join(h.root, "burrito.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite-burrito", r.Metadata.Name)

	assert.Error(t, h.run("init"))
	assert.NoError(t, h.run("init", "--force"))
}

func TestCreate_PublishesAndLists(t *testing.T) {
	h := newHarness(t)
	h.writeSources(t)
	require.NoError(t, h.run("init"))

	require.NoError(t, h.run("create", "--cppstd", "17"))
	assert.Contains(t, h.out.String(), "Published sqlite-burrito/0.2.0")

	var names []string
	for _, c := range h.runner.Commands {
		names = append(names, c.Name+" "+c.Args[0])
	}
	assert.Equal(t, []string{"conan install", "cmake -S", "cmake --build", "ctest --test-dir", "cmake --install"}, names)
	assert.FileExists(t, filepath.Join(h.root, "build", "Release", "package", "licenses", "LICENSE"))

	require.NoError(t, h.run("packages"))
	assert.Contains(t, h.out.String(), "sqlite-burrito/0.2.0")

	require.NoError(t, h.run("packages", "show", "sqlite-burrito/0.2.0"))
	assert.Contains(t, h.out.String(), "sqlite3/3.41.2")
	assert.Contains(t, h.out.String(), "SQLiteBurrito::library")
}

func TestCreate_ValidationFailurePublishesNothing(t *testing.T) {
	h := newHarness(t)
	h.writeSources(t)
	require.NoError(t, h.run("init"))

	err := h.run("create", "--cppstd", "14")
	require.ErrorIs(t, err, recipe.ErrInvalidConfiguration)
	assert.Empty(t, h.runner.Commands)
	assert.Contains(t, h.out.String(), "skipped")

	require.NoError(t, h.run("packages"))
	assert.Contains(t, h.out.String(), "No packages")
}

func TestCreate_BadOptionOverride(t *testing.T) {
	h := newHarness(t)
	h.writeSources(t)
	require.NoError(t, h.run("init"))

	assert.Error(t, h.run("create", "-o", "shared"))
	assert.Error(t, h.run("create", "-o", "lto=True", "--no-publish"))
}

func TestInspect(t *testing.T) {
	h := newHarness(t)
	h.writeSources(t)
	require.NoError(t, h.run("init"))

	require.NoError(t, h.run("inspect"))
	out := h.out.String()
	assert.Contains(t, out, "0.2.0")
	assert.Contains(t, out, "fPIC")
	assert.Contains(t, out, "catch2/3.3.2")
	assert.Contains(t, out, "SQLiteBurrito::library")
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("version"))
	assert.Contains(t, h.out.String(), "burrito v0.2.0")
}

func TestExport_CopiesSelectedSources(t *testing.T) {
	h := newHarness(t)
	h.writeSources(t)
	require.NoError(t, h.run("init"))
	require.NoError(t, os.MkdirAll(filepath.Join(h.root, "build", "Release"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "build", "Release", "CMakeCache.txt"), nil, 0644))

	dst := t.TempDir()
	require.NoError(t, h.run("export", dst, "--list"))

	assert.FileExists(t, filepath.Join(dst, "CMakeLists.txt"))
	assert.FileExists(t, filepath.Join(dst, "burrito.yaml"))
	assert.NoFileExists(t, filepath.Join(dst, "build", "Release", "CMakeCache.txt"))
	assert.Contains(t, h.out.String(), "LICENSE")
	assert.Contains(t, h.out.String(), "Exported")
}

func TestCreate_WritesArchive(t *testing.T) {
	h := newHarness(t)
	h.writeSources(t)
	require.NoError(t, h.run("init"))

	out := t.TempDir()
	require.NoError(t, h.run("create", "--no-publish", "--archive", out))

	matches, err := filepath.Glob(filepath.Join(out, "sqlite-burrito-0.2.0-*-Release.tar.xz"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, h.out.String(), "Created sqlite-burrito/0.2.0")
}

func writeKeyPair(t *testing.T) (string, string) {
	t.Helper()
	entity, err := openpgp.NewEntity("burrito", "", "release@example.com", &packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	require.NoError(t, err)

	dir := t.TempDir()
	write := func(name, blockType string, serialize func(io.Writer) error) string {
		var buf bytes.Buffer
		w, err := armor.Encode(&buf, blockType, nil)
		require.NoError(t, err)
		require.NoError(t, serialize(w))
		require.NoError(t, w.Close())
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
		return path
	}
	private := write("private.asc", openpgp.PrivateKeyType, func(w io.Writer) error { return entity.SerializePrivate(w, nil) })
	public := write("public.asc", openpgp.PublicKeyType, entity.Serialize)
	return private, public
}

func TestCreate_SignedArchiveVerifies(t *testing.T) {
	h := newHarness(t)
	h.writeSources(t)
	require.NoError(t, h.run("init"))
	private, public := writeKeyPair(t)

	out := t.TempDir()
	require.NoError(t, h.run("create", "--no-publish", "--archive", out, "--sign-key", private))
	assert.Contains(t, h.out.String(), "Signed ")

	matches, err := filepath.Glob(filepath.Join(out, "*.tar.xz"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.NoError(t, h.run("verify", matches[0], "--key", public, "--list"))
	assert.Contains(t, h.out.String(), "Good signature")
	assert.Contains(t, h.out.String(), "licenses/LICENSE")

	assert.Error(t, h.run("create", "--no-publish", "--sign-key", private))
}

func TestCreate_SigningFailurePublishesNothing(t *testing.T) {
	h := newHarness(t)
	h.writeSources(t)
	require.NoError(t, h.run("init"))

	out := t.TempDir()
	err := h.run("create", "--archive", out, "--sign-key", filepath.Join(t.TempDir(), "missing.asc"))
	require.ErrorIs(t, err, recipe.ErrStageFailed)
	assert.Contains(t, h.out.String(), "archive")

	matches, err := filepath.Glob(filepath.Join(out, "*"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, h.run("packages"))
	assert.Contains(t, h.out.String(), "No packages")
}
