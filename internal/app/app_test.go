package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/config"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/db"
)

func TestServerGraph(t *testing.T) {
	require.NoError(t, fx.ValidateApp(Server))
}

func TestNewStoreMemory(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	store, err := NewStore(lc, &config.Config{DBDriver: config.DriverMemory}, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.IsType(t, &db.MemoryStore{}, store)
}

func TestNewLinkCacheDisabled(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	c, err := NewLinkCache(lc, &config.Config{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewLinkCacheUnreachableRedis(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	c, err := NewLinkCache(lc, &config.Config{RedisAddr: "127.0.0.1:1"}, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NotNil(t, c)

	_, ok, err := c.Get(context.Background(), "abc")
	assert.Error(t, err)
	assert.False(t, ok)

	lc.RequireStart().RequireStop()
}
