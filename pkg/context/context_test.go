package context_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	bcontext "github.com/sqlite-burrito/burrito/pkg/context"
)

func TestWithRunID_Generates(t *testing.T) {
	ctx := bcontext.WithRunID(context.Background(), "")

	id, ok := bcontext.RunID(ctx)
	assert.True(t, ok)
	assert.Len(t, id, 36)
	assert.GreaterOrEqual(t, bcontext.Elapsed(ctx).Nanoseconds(), int64(0))
}

func TestRunID_Missing(t *testing.T) {
	_, ok := bcontext.RunID(context.Background())
	assert.False(t, ok)
	assert.Zero(t, bcontext.Elapsed(context.Background()))
}

func TestWithStage(t *testing.T) {
	ctx := bcontext.WithStage(context.Background(), "package")
	assert.Equal(t, "package", bcontext.Stage(ctx))
	assert.Equal(t, "", bcontext.Stage(context.Background()))
}
