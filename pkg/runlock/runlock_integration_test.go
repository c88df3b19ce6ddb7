//go:build integration

package runlock_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/inflow-order-sync/pkg/runlock"
	"github.com/dmehra2102/inflow-order-sync/test/integration"
)

var rdb *redis.Client

func TestMain(m *testing.M) {
	ctx := context.Background()
	rc, err := integration.StartRedis(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "start redis:", err)
		os.Exit(1)
	}
	opts, err := redis.ParseURL(rc.URL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse redis url:", err)
		rc.Terminate(ctx)
		os.Exit(1)
	}
	rdb = redis.NewClient(opts)

	code := m.Run()
	_ = rdb.Close()
	rc.Terminate(ctx)
	os.Exit(code)
}

func TestLock_ExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	a := runlock.New(rdb, "exclusive", time.Minute)
	b := runlock.New(rdb, "exclusive", time.Minute)

	release, ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))

	releaseB, ok, err := b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, releaseB(ctx))
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	l := runlock.New(rdb, "expiring", 200*time.Millisecond)

	_, ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		release, ok, err := l.Acquire(ctx)
		if err != nil || !ok {
			return false
		}
		_ = release(ctx)
		return true
	}, 2*time.Second, 50*time.Millisecond)
}

func TestLock_StaleReleaseKeepsNewHolder(t *testing.T) {
	ctx := context.Background()
	l := runlock.New(rdb, "stale", 200*time.Millisecond)

	staleRelease, ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	var release func(context.Context) error
	require.Eventually(t, func() bool {
		release, ok, err = l.Acquire(ctx)
		return err == nil && ok
	}, 2*time.Second, 50*time.Millisecond)

	// the first holder's lease expired; its release must not drop the new one
	require.NoError(t, staleRelease(ctx))
	exists, err := rdb.Exists(ctx, runlock.Key("stale")).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, exists)

	require.NoError(t, release(ctx))
}
