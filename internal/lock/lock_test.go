package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Exclusive(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	release, err := m.Acquire(ctx, "downloads", time.Minute)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "downloads", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	_, err = m.Acquire(ctx, "other", time.Minute)
	assert.NoError(t, err, "different keys do not contend")

	release()
	release()

	again, err := m.Acquire(ctx, "downloads", time.Minute)
	require.NoError(t, err)
	again()
}

func TestMemory_ExpiredLeaseCanBeTaken(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	stale, err := m.Acquire(ctx, "downloads", time.Millisecond)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	fresh, err := m.Acquire(ctx, "downloads", time.Minute)
	require.NoError(t, err)

	stale()
	_, err = m.Acquire(ctx, "downloads", time.Minute)
	assert.ErrorIs(t, err, ErrLocked, "a stale release must not free the new lease")
	fresh()
}

func TestRedis_Exclusive(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	r, err := NewRedisFromURL(ctx, url)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer r.Close()

	key := "test-" + time.Now().Format("150405.000000")
	release, err := r.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = r.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	release()
	again, err := r.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	again()
}

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(context.Background(), "", "", 0)
	assert.Error(t, err)
}
