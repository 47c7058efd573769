// Package context carries per-invocation identifiers through a build run
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Unexported struct pointers keep keys from colliding with other packages.
var (
	runIDKey     = &struct{}{}
	stageKey     = &struct{}{}
	startTimeKey = &struct{}{}
)

// WithRunID tags the context with a run ID, generating one when empty
func WithRunID(parent context.Context, runID string) context.Context {
	if runID == "" {
		runID = NewRunID()
	}
	ctx := context.WithValue(parent, runIDKey, runID)
	return context.WithValue(ctx, startTimeKey, time.Now())
}

// RunID returns the run ID stored in ctx
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// NewRunID generates a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// WithStage records the stage currently executing
func WithStage(parent context.Context, stage string) context.Context {
	return context.WithValue(parent, stageKey, stage)
}

// Stage returns the stage stored in ctx, or "" when none is set
func Stage(ctx context.Context) string {
	s, _ := ctx.Value(stageKey).(string)
	return s
}

// Elapsed returns the time since WithRunID was called, or zero
func Elapsed(ctx context.Context) time.Duration {
	start, ok := ctx.Value(startTimeKey).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}
