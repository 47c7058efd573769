package recipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	bcontext "github.com/sqlite-burrito/burrito/pkg/context"
	"github.com/sqlite-burrito/burrito/pkg/logger"
	"github.com/sqlite-burrito/burrito/pkg/process"
	"github.com/sqlite-burrito/burrito/pkg/registry"
	"github.com/sqlite-burrito/burrito/pkg/types"
)

// ErrStageFailed wraps the error of the stage that stopped a lifecycle run
var ErrStageFailed = errors.New("stage failed")

// Stage names one lifecycle hook
type Stage string

const (
	StageValidate       Stage = "validate"
	StageConfigOptions  Stage = "config-options"
	StageConfigure      Stage = "configure"
	StageResolveVersion Stage = "resolve-version"
	StageGenerate       Stage = "generate"
	StageBuild          Stage = "build"
	StagePackage        Stage = "package"
	StagePackageInfo    Stage = "package-info"
	StageArchive        Stage = "archive"
	StagePublish        Stage = "publish"
)

// Stages lists the hooks in execution order
var Stages = []Stage{
	StageValidate,
	StageConfigOptions,
	StageConfigure,
	StageResolveVersion,
	StageGenerate,
	StageBuild,
	StagePackage,
	StagePackageInfo,
	StageArchive,
	StagePublish,
}

// Publisher stores packaged recipes
type Publisher interface {
	Publish(ctx context.Context, pkg registry.Package) (string, error)
}

// StageResult is the outcome of one stage
type StageResult struct {
	Stage    Stage
	Status   types.StageStatus
	Duration time.Duration
	Err      error
}

// Result is the outcome of a lifecycle run
type Result struct {
	Stages   []StageResult
	Metadata types.PackageMetadata
	Options  map[string]string
	CppInfo  types.CppInfo
	Revision string
}

// Succeeded reports whether no stage failed
func (r *Result) Succeeded() bool {
	for _, s := range r.Stages {
		if s.Status == types.StageStatusFailed {
			return false
		}
	}
	return true
}

// Stage returns the result of a named stage
func (r *Result) Stage(name Stage) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Lifecycle drives a recipe through its hooks
type Lifecycle struct {
	Recipe    *Recipe
	Toolchain Toolchain
	Runner    process.Runner
	// Publisher receives the package after a successful run. Nil skips the
	// publish stage.
	Publisher Publisher
	// Archive writes distributable artifacts from the package folder. It
	// runs before publish, so a failed archive publishes nothing. Nil skips
	// the archive stage.
	Archive   func(ctx context.Context, result *Result) error
	Logger    logger.Logger

	// Options are user option values applied after config-options.
	// Values for options removed by config-options are ignored.
	Options map[string]string
	// Build controls the build hook
	Build BuildOptions
}

// Run executes every stage in order and stops at the first failure
func (l *Lifecycle) Run(ctx context.Context) (*Result, error) {
	log := l.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	result := &Result{}
	hooks := l.hooks(result, log)

	var failure error
	for _, stage := range Stages {
		if failure != nil {
			result.Stages = append(result.Stages, StageResult{Stage: stage, Status: types.StageStatusSkipped})
			continue
		}

		hook := hooks[stage]
		if hook == nil {
			result.Stages = append(result.Stages, StageResult{Stage: stage, Status: types.StageStatusSkipped})
			log.Debug("Stage skipped", logger.WithField("stage", stage))
			continue
		}

		stageCtx := bcontext.WithStage(ctx, string(stage))
		stageLog := logger.ForContext(stageCtx, log)
		start := time.Now()
		stageLog.Debug("Stage started")

		err := hook(stageCtx)
		sr := StageResult{Stage: stage, Duration: time.Since(start)}
		if err != nil {
			sr.Status = types.StageStatusFailed
			sr.Err = err
			failure = fmt.Errorf("%w: %s: %w", ErrStageFailed, stage, err)
			stageLog.Error("Stage failed", logger.WithField("error", err))
		} else {
			sr.Status = types.StageStatusSucceeded
			stageLog.Debug("Stage finished", logger.WithField("duration", sr.Duration))
		}
		result.Stages = append(result.Stages, sr)
	}

	result.Metadata = l.Recipe.Metadata
	result.Options = l.Recipe.Options().Values()
	return result, failure
}

func (l *Lifecycle) hooks(result *Result, log logger.Logger) map[Stage]func(context.Context) error {
	r := l.Recipe
	tc := l.Toolchain

	hooks := map[Stage]func(context.Context) error{
		StageValidate: func(context.Context) error {
			return r.Validate(tc.Settings)
		},
		StageConfigOptions: func(context.Context) error {
			r.ConfigOptions(tc.Settings)
			return l.applyOptions(log)
		},
		StageConfigure: func(context.Context) error {
			r.Configure()
			return nil
		},
		StageResolveVersion: func(context.Context) error {
			if err := r.ResolveVersion(tc.Layout.SourceDir); err != nil {
				return err
			}
			log.Info("Resolved version", logger.WithField("reference", r.Metadata.Reference()))
			return nil
		},
		StageGenerate: func(ctx context.Context) error {
			return r.Generate(ctx, l.Runner, tc)
		},
		StageBuild: func(ctx context.Context) error {
			return r.Build(ctx, l.Runner, tc, l.Build)
		},
		StagePackage: func(ctx context.Context) error {
			return r.Package(ctx, l.Runner, tc)
		},
		StagePackageInfo: func(context.Context) error {
			result.CppInfo = r.PackageInfo()
			return nil
		},
	}

	if l.Archive != nil {
		hooks[StageArchive] = func(ctx context.Context) error {
			result.Metadata = r.Metadata
			return l.Archive(ctx, result)
		}
	}

	if l.Publisher != nil {
		hooks[StagePublish] = func(ctx context.Context) error {
			revision, err := l.Publisher.Publish(ctx, registry.Package{
				PackageMetadata: r.Metadata,
				Options:         r.Options().Values(),
				CppInfo:         result.CppInfo,
			})
			if err != nil {
				return err
			}
			result.Revision = revision
			log.Success("Published package",
				logger.WithField("reference", r.Metadata.Reference()),
				logger.WithField("revision", revision))
			return nil
		}
	}

	return hooks
}

func (l *Lifecycle) applyOptions(log logger.Logger) error {
	opts := l.Recipe.Options()
	for name, value := range l.Options {
		err := opts.Set(name, value)
		if errors.Is(err, types.ErrUnknownOption) && l.removedByPlatform(name) {
			log.Debug("Ignoring option not available on this platform", logger.WithField("option", name))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *Lifecycle) removedByPlatform(name string) bool {
	return name == types.OptionFPIC && l.Toolchain.Settings.OS == types.OSWindows
}
