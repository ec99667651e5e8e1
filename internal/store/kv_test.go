package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisKV_GetMiss(t *testing.T) {
	_, client := setupRedis(t)
	kv := NewRedisKV(client)

	_, err := kv.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisKV_SetAndGet(t *testing.T) {
	_, client := setupRedis(t)
	kv := NewRedisKV(client)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "logbook:msg:SM001", "1", time.Minute))

	val, err := kv.Get(ctx, "logbook:msg:SM001")
	require.NoError(t, err)
	assert.Equal(t, "1", val)
}

func TestRedisKV_SetNXDeduplicates(t *testing.T) {
	_, client := setupRedis(t)
	kv := NewRedisKV(client)
	ctx := context.Background()

	first, err := kv.SetNX(ctx, "logbook:msg:SM001", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := kv.SetNX(ctx, "logbook:msg:SM001", "1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestRedisKV_DelReleasesKey(t *testing.T) {
	_, client := setupRedis(t)
	kv := NewRedisKV(client)
	ctx := context.Background()

	fresh, err := kv.SetNX(ctx, "logbook:msg:SM001", "1", time.Minute)
	require.NoError(t, err)
	require.True(t, fresh)

	require.NoError(t, kv.Del(ctx, "logbook:msg:SM001"))

	again, err := kv.SetNX(ctx, "logbook:msg:SM001", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, again, "key must be claimable again after release")

	// 删除不存在的键不算错误
	assert.NoError(t, kv.Del(ctx, "absent"))
}

func TestRedisKV_TTLExpires(t *testing.T) {
	mr, client := setupRedis(t)
	kv := NewRedisKV(client)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "ephemeral", "x", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := kv.Get(ctx, "ephemeral")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
