package watch

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/sqlite-burrito/burrito/pkg/logger"
)

// safeGroup is an errgroup.Group that turns goroutine panics into errors
type safeGroup struct {
	group  *errgroup.Group
	logger logger.Logger
}

func newSafeGroup(ctx context.Context, log logger.Logger) (*safeGroup, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &safeGroup{group: g, logger: log}, ctx
}

// Go runs fn in a new goroutine. A panic cancels the group.
func (sg *safeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				sg.logger.Error("Goroutine panic recovered",
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(debug.Stack())))
				err = fmt.Errorf("goroutine panic: %v", r)
			}
		}()
		return fn()
	})
}

// Wait returns the first error of the group
func (sg *safeGroup) Wait() error {
	return sg.group.Wait()
}
