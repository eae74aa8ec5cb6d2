package app

import (
	"context"
	"testing"

	"github.com/jb-platform/fileserver/internal/domain"
	"github.com/jb-platform/fileserver/internal/infra/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierDefaultsToNoopSink(t *testing.T) {
	di := &dependencyInjector{cfg: &config.Config{}}

	f := di.Notifier(context.Background())
	require.NotNil(t, f)

	// with neither NATS nor webhook configured the fan-out still carries a
	// sink, so delivery is reported as attempted
	delivered := f.Notify(context.Background(), domain.Task{
		ID:     "t1",
		Status: domain.StatusCompleted,
	})
	assert.True(t, delivered)
}
