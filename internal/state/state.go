// Package state persists orchestrator run records in the build directory
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sqlite-burrito/burrito/pkg/logger"
	"github.com/sqlite-burrito/burrito/pkg/types"
)

// staleAfter is how long a running record is trusted without finishing
const staleAfter = 6 * time.Hour

// StageRecord is the persisted outcome of one pipeline step
type StageRecord struct {
	Name     string            `json:"name"`
	Command  string            `json:"command"`
	Status   types.StageStatus `json:"status"`
	Duration time.Duration     `json:"duration,omitempty"`
	ExitCode int               `json:"exitCode,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// RunRecord is one orchestrator invocation
type RunRecord struct {
	RunID      string            `json:"runId"`
	Preset     string            `json:"preset"`
	Shared     bool              `json:"shared"`
	BuildDir   string            `json:"buildDir"`
	Status     types.StageStatus `json:"status"`
	ExitCode   int               `json:"exitCode"`
	ProcessID  int               `json:"processId"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt,omitempty"`
	Stages     []StageRecord     `json:"stages"`
}

// Duration returns how long the run took, or has taken so far
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// File is the content of state.json
type File struct {
	LastRun      *RunRecord `json:"lastRun,omitempty"`
	RunCount     int        `json:"runCount"`
	FailureCount int        `json:"failureCount"`
}

// Manager reads and writes <build_dir>/.burrito/state.json
type Manager struct {
	path   string
	logger logger.Logger
	mu     sync.Mutex
}

// NewManager creates a state manager for a build directory
func NewManager(buildDir string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		path:   filepath.Join(buildDir, ".burrito", "state.json"),
		logger: log,
	}
}

// Path returns the state file location
func (m *Manager) Path() string {
	return m.path
}

// Load reads the state file. A missing file yields an empty state.
func (m *Manager) Load() (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

// Begin records a run as started by this process
func (m *Manager) Begin(rec *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.load()
	if err != nil {
		m.logger.Warn("Discarding unreadable state file",
			logger.WithField("path", m.path),
			logger.WithField("error", err))
		f = &File{}
	}

	rec.Status = types.StageStatusRunning
	rec.ProcessID = os.Getpid()
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	f.LastRun = rec
	return m.save(f)
}

// Finish records the final outcome of a run and updates the counters
func (m *Manager) Finish(rec *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.load()
	if err != nil {
		f = &File{}
	}

	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	rec.ProcessID = 0
	f.RunCount++
	if rec.Status == types.StageStatusFailed {
		f.FailureCount++
	}
	f.LastRun = rec
	return m.save(f)
}

// IsLocked reports whether another live process is running a pipeline in
// the same build directory
func (m *Manager) IsLocked() (bool, error) {
	f, err := m.Load()
	if err != nil {
		return false, err
	}
	run := f.LastRun
	if run == nil || run.Status != types.StageStatusRunning || run.ProcessID == 0 {
		return false, nil
	}
	if run.ProcessID == os.Getpid() {
		return false, nil
	}
	if time.Since(run.StartedAt) > staleAfter {
		return false, nil
	}
	return processAlive(run.ProcessID), nil
}

func (m *Manager) load() (*File, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &f, nil
}

func (m *Manager) save(f *File) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Write atomically
	tempFile := m.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tempFile, m.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}
