// Package orchestrator runs the CI pipeline: dependency install, configure,
// build and test, each as a blocking subprocess. The first failing step
// stops the pipeline and its exit code becomes the pipeline's.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sqlite-burrito/burrito/internal/state"
	bcontext "github.com/sqlite-burrito/burrito/pkg/context"
	"github.com/sqlite-burrito/burrito/pkg/logger"
	"github.com/sqlite-burrito/burrito/pkg/notifier"
	"github.com/sqlite-burrito/burrito/pkg/process"
	"github.com/sqlite-burrito/burrito/pkg/types"
)

// Step names
const (
	StepInstall   = "install"
	StepConfigure = "configure"
	StepBuild     = "build"
	StepTest      = "test"
)

// Step is one pipeline command
type Step struct {
	Name    string
	Command process.Command
}

// Plan is the fully rendered pipeline for a build configuration
type Plan struct {
	Config    types.BuildConfiguration
	SourceDir string
	BuildDir  string
	// Toolchain is written by the install step and read by configure
	Toolchain string
	Steps     []Step
}

// StepResult is the outcome of one step
type StepResult struct {
	Step     Step
	Status   types.StageStatus
	Duration time.Duration
	Err      error
}

// Result is the outcome of a pipeline run
type Result struct {
	RunID    string
	Plan     Plan
	Steps    []StepResult
	Duration time.Duration
}

// Succeeded reports whether every step ran and succeeded
func (r *Result) Succeeded() bool {
	for _, s := range r.Steps {
		if s.Status != types.StageStatusSucceeded {
			return false
		}
	}
	return len(r.Steps) > 0
}

// Config configures an orchestrator
type Config struct {
	Tools     types.Tools
	SourceDir string
	BuildRoot string
	// RecordState writes <build_dir>/.burrito/state.json for every run
	RecordState bool
}

// Orchestrator plans and runs pipelines
type Orchestrator struct {
	config   Config
	runner   process.Runner
	logger   logger.Logger
	notifier notifier.Notifier
}

// New creates an orchestrator. A nil notifier disables notifications.
func New(config Config, runner process.Runner, log logger.Logger, n notifier.Notifier) *Orchestrator {
	if config.Tools == (types.Tools{}) {
		config.Tools = types.DefaultTools()
	}
	if config.SourceDir == "" {
		config.SourceDir = "."
	}
	if config.BuildRoot == "" {
		config.BuildRoot = "build"
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Orchestrator{
		config:   config,
		runner:   runner,
		logger:   log,
		notifier: n,
	}
}

// Plan renders the four pipeline commands without running them
func (o *Orchestrator) Plan(cfg types.BuildConfiguration) Plan {
	buildDir := cfg.BuildDir(o.config.SourceDir, o.config.BuildRoot)
	preset := cfg.PresetName()
	tools := o.config.Tools

	steps := []Step{
		{Name: StepInstall, Command: process.Command{Name: tools.Conan, Args: []string{
			"install",
			"-b", "missing",
			"-s", fmt.Sprintf("compiler.cppstd=%d", cfg.CppStd),
			"-s", "build_type=" + cfg.Preset,
			"-c:h", `tools.cmake.cmake_layout:build_folder_vars=["settings.build_type"]`,
			o.config.SourceDir,
		}}},
		{Name: StepConfigure, Command: process.Command{Name: tools.CMake, Args: []string{
			"--preset", preset,
			"-DBUILD_TESTING=ON",
			"-DBUILD_SHARED_LIBS=" + cfg.SharedFlag(),
			"-DCMAKE_RUNTIME_OUTPUT_DIRECTORY=" + buildDir,
		}}},
		{Name: StepBuild, Command: process.Command{Name: tools.CMake, Args: []string{
			"--build",
			"--preset", preset,
			"--config", cfg.Preset,
		}}},
		{Name: StepTest, Command: process.Command{Name: tools.CTest, Args: []string{
			"--test-dir", buildDir,
			"-C", cfg.Preset,
			"--output-on-failure",
		}}},
	}
	for i := range steps {
		steps[i].Command.Dir = o.config.SourceDir
	}

	return Plan{
		Config:    cfg,
		SourceDir: o.config.SourceDir,
		BuildDir:  buildDir,
		Toolchain: cfg.ToolchainPath(buildDir),
		Steps:     steps,
	}
}

// Run creates the build directory and executes the plan in order. The
// returned error wraps the failing step's error; process.ExitCode extracts
// its exit code.
func (o *Orchestrator) Run(ctx context.Context, cfg types.BuildConfiguration) (*Result, error) {
	ctx = bcontext.WithRunID(ctx, "")
	runID, _ := bcontext.RunID(ctx)
	plan := o.Plan(cfg)
	result := &Result{RunID: runID, Plan: plan}
	start := time.Now()
	name := fmt.Sprintf("ci %s", cfg.Preset)

	log := logger.ForContext(ctx, o.logger.WithStage("ci"))
	log.Info("Starting pipeline",
		logger.WithField("preset", cfg.Preset),
		logger.WithField("shared", cfg.Shared),
		logger.WithField("build_dir", plan.BuildDir))

	if err := os.MkdirAll(plan.BuildDir, 0755); err != nil {
		return result, fmt.Errorf("failed to create build directory: %w", err)
	}

	var store *state.Manager
	var record *state.RunRecord
	if o.config.RecordState {
		store = state.NewManager(plan.BuildDir, o.logger)
		if locked, _ := store.IsLocked(); locked {
			log.Warn("Another pipeline is running in this build directory", logger.WithField("state", store.Path()))
		}
		record = &state.RunRecord{
			RunID:     runID,
			Preset:    cfg.Preset,
			Shared:    cfg.Shared,
			BuildDir:  plan.BuildDir,
			StartedAt: start,
		}
		if err := store.Begin(record); err != nil {
			log.Warn("Failed to record run state", logger.WithField("error", err))
		}
	}

	if o.notifier != nil {
		o.notifier.NotifyStart(name)
	}

	var failure error
	for _, step := range plan.Steps {
		if failure != nil {
			result.Steps = append(result.Steps, StepResult{Step: step, Status: types.StageStatusSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			failure = err
			result.Steps = append(result.Steps, StepResult{Step: step, Status: types.StageStatusSkipped})
			continue
		}

		stepCtx := bcontext.WithStage(ctx, step.Name)
		stepLog := logger.ForContext(stepCtx, o.logger)
		stepStart := time.Now()
		err := o.runner.Run(stepCtx, step.Command)
		sr := StepResult{Step: step, Duration: time.Since(stepStart)}
		if err != nil {
			sr.Status = types.StageStatusFailed
			sr.Err = err
			failure = fmt.Errorf("%s failed: %w", step.Name, err)
			stepLog.Error("Step failed",
				logger.WithField("exit_code", process.ExitCode(err)),
				logger.WithField("error", err))
		} else {
			sr.Status = types.StageStatusSucceeded
			stepLog.Debug("Step finished", logger.WithField("duration", sr.Duration))
		}
		result.Steps = append(result.Steps, sr)
	}
	result.Duration = bcontext.Elapsed(ctx)

	if record != nil {
		record.Stages = stageRecords(result.Steps)
		record.ExitCode = process.ExitCode(failure)
		record.Status = types.StageStatusSucceeded
		if failure != nil {
			record.Status = types.StageStatusFailed
		}
		if err := store.Finish(record); err != nil {
			log.Warn("Failed to record run state", logger.WithField("error", err))
		}
	}

	if failure != nil {
		if o.notifier != nil {
			o.notifier.NotifyFailure(name, failure)
		}
		return result, failure
	}

	log.Success("Pipeline succeeded", logger.WithField("duration", result.Duration))
	if o.notifier != nil {
		o.notifier.NotifySuccess(name, result.Duration)
	}
	return result, nil
}

func stageRecords(steps []StepResult) []state.StageRecord {
	records := make([]state.StageRecord, 0, len(steps))
	for _, s := range steps {
		rec := state.StageRecord{
			Name:     s.Step.Name,
			Command:  s.Step.Command.String(),
			Status:   s.Status,
			Duration: s.Duration,
		}
		if s.Err != nil {
			rec.Error = s.Err.Error()
			var exitErr *process.ExitError
			if errors.As(s.Err, &exitErr) {
				rec.ExitCode = exitErr.Code
			} else {
				rec.ExitCode = 1
			}
		}
		records = append(records, rec)
	}
	return records
}
