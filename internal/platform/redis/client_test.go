package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycbuster/internal/platform/config"
)

func TestNewWithoutURLIsDisabled(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewConnectsAndReportsHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.NoError(t, c.Health(context.Background()))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "://nope"})
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestNewFailsWhenServerIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), config.RedisConfig{URL: "redis://" + addr})
	assert.ErrorContains(t, err, "redis ping failed")
}

func TestApplyPoolKeepsURLDefaultsForZeroValues(t *testing.T) {
	opts := &redis.Options{PoolSize: 10, ReadTimeout: time.Second}
	applyPool(opts, config.RedisConfig{PoolSize: 4, WriteTimeout: 2 * time.Second})

	assert.Equal(t, 4, opts.PoolSize)
	assert.Equal(t, time.Second, opts.ReadTimeout)
	assert.Equal(t, 2*time.Second, opts.WriteTimeout)
}
