package logger

import (
	"context"

	bcontext "github.com/sqlite-burrito/burrito/pkg/context"
)

// ForContext scopes log to the stage carried by ctx and tags every entry
// with the run ID, if any
func ForContext(ctx context.Context, log Logger) Logger {
	if ctx == nil {
		return log
	}
	if stage := bcontext.Stage(ctx); stage != "" {
		log = log.WithStage(stage)
	}
	id, ok := bcontext.RunID(ctx)
	if !ok {
		return log
	}
	return &runLogger{Logger: log, fields: []Field{WithField("run", id)}}
}

type runLogger struct {
	Logger
	fields []Field
}

func (l *runLogger) with(fields []Field) []Field {
	return append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
}

func (l *runLogger) Info(message string, fields ...Field) {
	l.Logger.Info(message, l.with(fields)...)
}

func (l *runLogger) Error(message string, fields ...Field) {
	l.Logger.Error(message, l.with(fields)...)
}

func (l *runLogger) Warn(message string, fields ...Field) {
	l.Logger.Warn(message, l.with(fields)...)
}

func (l *runLogger) Debug(message string, fields ...Field) {
	l.Logger.Debug(message, l.with(fields)...)
}

func (l *runLogger) Success(message string, fields ...Field) {
	l.Logger.Success(message, l.with(fields)...)
}

func (l *runLogger) WithStage(stage string) Logger {
	return &runLogger{Logger: l.Logger.WithStage(stage), fields: l.fields}
}
