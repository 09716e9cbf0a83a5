package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	defer c.Close()

	_, found, err := c.Get(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "ABC123", []byte(`{"id":"ABC123"}`)))

	value, found, err := c.Get(ctx, "ABC123")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"id":"ABC123"}`, string(value))
	assert.Equal(t, 1, c.Len())
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(20 * time.Millisecond)
	defer c.Close()

	require.NoError(t, c.Set(ctx, "ABC123", []byte("x")))
	time.Sleep(50 * time.Millisecond)

	_, found, err := c.Get(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, BackendNone, "", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = New(ctx, BackendMemory, "", time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	_, err = New(ctx, "memcached", "", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cache backend")

	_, err = New(ctx, BackendRedis, "", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis address is required")
}

func TestRedis_GetSet(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	c, err := NewRedis(ctx, addr, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	id := "test-" + time.Now().Format(time.RFC3339Nano)

	_, found, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, id, []byte(`{"status":"CONFIRMED"}`)))

	value, found, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"status":"CONFIRMED"}`, string(value))
}
