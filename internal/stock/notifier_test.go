package stock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(t *testing.T) (*RedisNotifier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisNotifier(client), mr
}

func TestNotifierVersionStartsAtZero(t *testing.T) {
	n, _ := newTestNotifier(t)
	ver, err := n.Version(context.Background())
	require.NoError(t, err)
	require.Zero(t, ver)
}

func TestNotifierBumpIncrementsAndPublishes(t *testing.T) {
	n, mr := newTestNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	versions, err := n.Subscribe(ctx)
	require.NoError(t, err)

	ver, err := n.Bump(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, ver)
	ver, err = n.Bump(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, ver)

	stored, err := mr.Get(ledgerVersionKey)
	require.NoError(t, err)
	require.Equal(t, "2", stored)

	for _, want := range []int64{1, 2} {
		select {
		case got := <-versions:
			require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for version %d", want)
		}
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-versions
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNilNotifierIsInert(t *testing.T) {
	var n *RedisNotifier
	ver, err := n.Bump(context.Background())
	require.NoError(t, err)
	require.Zero(t, ver)

	versions, err := n.Subscribe(context.Background())
	require.NoError(t, err)
	_, open := <-versions
	require.False(t, open)
}

func TestNotifierSurfacesRedisFailure(t *testing.T) {
	n, mr := newTestNotifier(t)
	mr.Close()
	_, err := n.Bump(context.Background())
	require.Error(t, err)
}
