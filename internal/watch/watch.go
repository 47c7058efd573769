// Package watch re-runs a pipeline when project sources change
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sqlite-burrito/burrito/pkg/glob"
	"github.com/sqlite-burrito/burrito/pkg/logger"
)

// Pipeline is one run triggered by a change
type Pipeline func(ctx context.Context) error

// Options configures a watcher
type Options struct {
	// Root is the project directory
	Root string
	// Paths are files or directories relative to Root whose changes
	// trigger a run, in glob syntax. A leading "!" excludes.
	// Empty means everything under Root.
	Paths []string
	// Exclude lists names or paths that are never watched. A bare name
	// matches any path component; an entry with a separator, or an
	// absolute path, excludes that directory relative to Root.
	Exclude []string
	// Debounce is how long the tree must be quiet before a run starts
	Debounce time.Duration
	// RunOnStart runs the pipeline once before waiting for changes
	RunOnStart bool
}

// Watcher debounces file events into pipeline runs. At most one run is
// active; changes during a run queue exactly one follow-up run.
type Watcher struct {
	opts     Options
	pipeline Pipeline
	logger   logger.Logger
	fs       *fsnotify.Watcher
	paths    *glob.Matcher
	names    []string
	dirs     []string
	trigger  chan string
	runs     atomic.Int64
	failures atomic.Int64
}

// New creates a watcher for the given pipeline
func New(opts Options, pipeline Pipeline, log logger.Logger) (*Watcher, error) {
	if pipeline == nil {
		return nil, errors.New("watch: pipeline is nil")
	}
	if opts.Root == "" {
		opts.Root = "."
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}
	opts.Root = root
	if log == nil {
		log = logger.NewNopLogger()
	}
	paths, err := glob.Compile(opts.Paths)
	if err != nil {
		return nil, fmt.Errorf("invalid watch path: %w", err)
	}

	names, dirs := splitExcludes(root, opts.Exclude)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		opts:     opts,
		pipeline: pipeline,
		logger:   log.WithStage("watch"),
		fs:       fsw,
		paths:    paths,
		names:    names,
		dirs:     dirs,
		trigger:  make(chan string, 1),
	}, nil
}

// Runs returns how many pipeline runs have completed
func (w *Watcher) Runs() int64 {
	return w.runs.Load()
}

// Failures returns how many completed runs failed
func (w *Watcher) Failures() int64 {
	return w.failures.Load()
}

// Run watches until ctx is cancelled. Pipeline failures are logged and do
// not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	if err := w.addTree(w.opts.Root); err != nil {
		return err
	}
	w.logger.Info("Watching for changes",
		logger.WithField("root", w.opts.Root),
		logger.WithField("paths", w.opts.Paths),
		logger.WithField("debounce", w.opts.Debounce))

	if w.opts.RunOnStart {
		w.schedule("initial run")
	}

	g, gctx := newSafeGroup(ctx, w.logger)
	g.Go(func() error { return w.eventLoop(gctx) })
	g.Go(func() error { return w.runLoop(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Relevant reports whether a change to path should trigger a run
func (w *Watcher) Relevant(path string) bool {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	if w.excluded(rel) {
		return false
	}
	return w.paths.Match(rel)
}

func (w *Watcher) excluded(rel string) bool {
	for _, dir := range w.dirs {
		if rel == dir || strings.HasPrefix(rel, dir+string(filepath.Separator)) {
			return true
		}
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		for _, name := range w.names {
			if part == name {
				return true
			}
		}
	}
	return false
}

// splitExcludes separates component names from directories, which are
// made relative to root. Directories outside root are dropped.
func splitExcludes(root string, excludes []string) (names, dirs []string) {
	for _, exc := range excludes {
		if exc == "" {
			continue
		}
		if !filepath.IsAbs(exc) && !strings.ContainsAny(exc, `/`+string(filepath.Separator)) {
			names = append(names, exc)
			continue
		}
		dir := filepath.Clean(filepath.FromSlash(exc))
		if filepath.IsAbs(dir) {
			rel, err := filepath.Rel(root, dir)
			if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				continue
			}
			dir = rel
		}
		if dir == "." {
			continue
		}
		dirs = append(dirs, dir)
	}
	return names, dirs
}

// addTree registers dir and every non-excluded subdirectory; fsnotify
// does not watch recursively
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.logger.Warn("Skipping unreadable path", logger.WithField("path", path), logger.WithField("error", err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.opts.Root {
			if rel, relErr := filepath.Rel(w.opts.Root, path); relErr == nil && w.excluded(rel) {
				return filepath.SkipDir
			}
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.logger.Debug("Watching directory", logger.WithField("path", path))
		return nil
	})
}

func (w *Watcher) eventLoop(ctx context.Context) error {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		lastHit string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if rel, err := filepath.Rel(w.opts.Root, event.Name); err == nil && !w.excluded(rel) {
						if err := w.addTree(event.Name); err != nil {
							w.logger.Warn("Failed to watch new directory", logger.WithField("error", err))
						}
					}
				}
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.Relevant(event.Name) {
				continue
			}

			lastHit = event.Name
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.opts.Debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.schedule(lastHit)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", logger.WithField("error", err))
		}
	}
}

// schedule queues a run; a run already queued absorbs the request
func (w *Watcher) schedule(reason string) {
	select {
	case w.trigger <- reason:
	default:
	}
}

func (w *Watcher) runLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case reason := <-w.trigger:
			w.logger.Info("Change detected, running pipeline", logger.WithField("trigger", reason))
			err := w.pipeline(ctx)
			w.runs.Add(1)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.failures.Add(1)
				w.logger.Error("Pipeline failed, waiting for changes", logger.WithField("error", err))
				continue
			}
			w.logger.Success("Pipeline succeeded, waiting for changes")
		}
	}
}
