package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/metabo-search/internal/config"
	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/metabo-search/pkg/errors"
)

func TestNewClient_Standalone_Success(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr(), PoolSize: 2}, logging.NewNopLogger())
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	assert.NoError(t, client.GetUnderlyingClient().Ping(context.Background()).Err())
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: addr, DialTimeout: 200 * time.Millisecond}, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, client)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func TestClient_Operations(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "compound:1", "aspirin", time.Minute).Err())
	val, err := client.Get(ctx, "compound:1").Result()
	require.NoError(t, err)
	assert.Equal(t, "aspirin", val)

	deleted, err := client.Del(ctx, "compound:1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.False(t, mr.Exists("compound:1"))
}

func TestClient_Closed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close(), "second close is a no-op")

	ctx := context.Background()
	assert.ErrorIs(t, client.Ping(ctx), ErrClientClosed)
	assert.ErrorIs(t, client.Get(ctx, "k").Err(), ErrClientClosed)
	assert.ErrorIs(t, client.Set(ctx, "k", "v", 0).Err(), ErrClientClosed)
	assert.ErrorIs(t, client.Del(ctx, "k").Err(), ErrClientClosed)
}
