package cli

import (
	"context"
	"time"

	bcontext "github.com/sqlite-burrito/burrito/pkg/context"
)

// Config holds the global flags of one CLI invocation
type Config struct {
	ConfigFile  string
	ProjectRoot string
	Verbosity   string
	Version     string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ProjectRoot: ".",
		Verbosity:   "info",
	}
}

// RuntimeConfig holds runtime state shared by a command's helpers
type RuntimeConfig struct {
	Config    *Config
	Context   context.Context
	StartTime time.Time
	RunID     string
}

// NewRuntimeConfig tags ctx with a fresh run ID
func NewRuntimeConfig(cfg *Config, ctx context.Context) *RuntimeConfig {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = bcontext.WithRunID(ctx, "")
	runID, _ := bcontext.RunID(ctx)

	return &RuntimeConfig{
		Config:    cfg,
		Context:   ctx,
		StartTime: time.Now(),
		RunID:     runID,
	}
}
