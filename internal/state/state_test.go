package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sqlite-burrito/burrito/pkg/types"
)

func TestManager_LoadMissing(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	f, err := m.Load()
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if f.LastRun != nil || f.RunCount != 0 {
		t.Errorf("expected empty state, got %+v", f)
	}
}

func TestManager_BeginAndFinish(t *testing.T) {
	buildDir := t.TempDir()
	m := NewManager(buildDir, nil)

	rec := &RunRecord{RunID: "run-1", Preset: "Release", BuildDir: buildDir}
	if err := m.Begin(rec); err != nil {
		t.Fatalf("failed to begin run: %v", err)
	}

	stateFile := filepath.Join(buildDir, ".burrito", "state.json")
	if m.Path() != stateFile {
		t.Errorf("expected path %s, got %s", stateFile, m.Path())
	}

	f, err := m.Load()
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if f.LastRun.Status != types.StageStatusRunning {
		t.Errorf("expected running status, got %s", f.LastRun.Status)
	}
	if f.LastRun.ProcessID != os.Getpid() {
		t.Errorf("expected current PID, got %d", f.LastRun.ProcessID)
	}

	rec.Status = types.StageStatusFailed
	rec.ExitCode = 8
	rec.Stages = []StageRecord{{Name: "build", Status: types.StageStatusFailed, ExitCode: 8}}
	if err := m.Finish(rec); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	data, err := os.ReadFile(stateFile)
	if err != nil {
		t.Fatalf("failed to read state file: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("state file is not JSON: %v", err)
	}

	f, err = m.Load()
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if f.RunCount != 1 || f.FailureCount != 1 {
		t.Errorf("expected 1 run and 1 failure, got %d and %d", f.RunCount, f.FailureCount)
	}
	if f.LastRun.ExitCode != 8 || f.LastRun.ProcessID != 0 {
		t.Errorf("unexpected last run %+v", f.LastRun)
	}
	if f.LastRun.FinishedAt.IsZero() {
		t.Error("expected finish time to be recorded")
	}
}

func TestManager_SuccessDoesNotCountAsFailure(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	for i := 0; i < 2; i++ {
		rec := &RunRecord{RunID: "ok"}
		if err := m.Begin(rec); err != nil {
			t.Fatal(err)
		}
		rec.Status = types.StageStatusSucceeded
		if err := m.Finish(rec); err != nil {
			t.Fatal(err)
		}
	}

	f, _ := m.Load()
	if f.RunCount != 2 || f.FailureCount != 0 {
		t.Errorf("expected 2 runs and no failures, got %d and %d", f.RunCount, f.FailureCount)
	}
}

func TestManager_CorruptFileIsReplaced(t *testing.T) {
	buildDir := t.TempDir()
	m := NewManager(buildDir, nil)

	if err := os.MkdirAll(filepath.Dir(m.Path()), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(m.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Load(); err == nil {
		t.Error("expected parse error")
	}
	if err := m.Begin(&RunRecord{RunID: "fresh"}); err != nil {
		t.Fatalf("expected begin to replace corrupt state: %v", err)
	}
	f, err := m.Load()
	if err != nil || f.LastRun.RunID != "fresh" {
		t.Errorf("expected fresh record, got %+v, %v", f, err)
	}
}

func TestManager_IsLocked(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	locked, err := m.IsLocked()
	if err != nil || locked {
		t.Fatalf("expected unlocked empty state, got %v, %v", locked, err)
	}

	// Our own running record never locks us out
	if err := m.Begin(&RunRecord{RunID: "self"}); err != nil {
		t.Fatal(err)
	}
	if locked, _ := m.IsLocked(); locked {
		t.Error("own process must not be reported as a lock")
	}

	// A stale record from another process is ignored
	f, _ := m.Load()
	f.LastRun.ProcessID = os.Getpid() + 100000
	f.LastRun.StartedAt = time.Now().Add(-2 * staleAfter)
	if err := m.save(f); err != nil {
		t.Fatal(err)
	}
	if locked, _ := m.IsLocked(); locked {
		t.Error("stale record must not be reported as a lock")
	}
}

func TestRunRecord_Duration(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	rec := RunRecord{StartedAt: start, FinishedAt: start.Add(30 * time.Second)}
	if rec.Duration() != 30*time.Second {
		t.Errorf("expected 30s, got %s", rec.Duration())
	}
}
