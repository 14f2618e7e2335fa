package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateGet(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()

	rec := NewRecord("s1", "alice", clock.Now())
	require.NoError(t, store.Create(ctx, rec))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTouch(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()

	require.NoError(t, store.Create(ctx, NewRecord("s1", "alice", clock.Now())))

	clock.Advance(10 * time.Minute)
	require.NoError(t, store.Touch(ctx, "s1", clock.Now()))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), got.LastActivityAt)

	assert.ErrorIs(t, store.Touch(ctx, "missing", clock.Now()), ErrNotFound)
}

func TestMemoryStoreTouchNeverRewinds(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()

	require.NoError(t, store.Create(ctx, NewRecord("s1", "alice", clock.Now())))

	clock.Advance(time.Minute)
	latest := clock.Now()
	require.NoError(t, store.Touch(ctx, "s1", latest))

	// A touch stamped before the current value must be a no-op.
	require.NoError(t, store.Touch(ctx, "s1", latest.Add(-30*time.Second)))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, latest, got.LastActivityAt)
}

func TestMemoryStoreDestroyIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()

	require.NoError(t, store.Create(ctx, NewRecord("s1", "alice", clock.Now())))
	require.NoError(t, store.Create(ctx, NewRecord("s2", "bob", clock.Now())))

	require.NoError(t, store.Destroy(ctx, "s1"))
	require.NoError(t, store.Destroy(ctx, "s1"))

	// Destroying one session leaves the other principal's session alone.
	_, err := store.Get(ctx, "s2")
	assert.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStorePurgeExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()

	require.NoError(t, store.Create(ctx, NewRecord("stale", "alice", clock.Now())))

	clock.Advance(time.Hour)
	require.NoError(t, store.Create(ctx, NewRecord("fresh", "bob", clock.Now())))

	swept, err := store.PurgeExpired(ctx, clock.Now().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	_, err = store.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestMemoryStoreConcurrentTouches(t *testing.T) {
	// Two tabs touching the same session concurrently must not corrupt the
	// record; last_activity_at ends at the newest stamp either tab sent.
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore()

	base := clock.Now()
	require.NoError(t, store.Create(ctx, NewRecord("s1", "alice", base)))

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			_ = store.Touch(ctx, "s1", base.Add(time.Duration(offset)*time.Second))
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, base.Add(50*time.Second), got.LastActivityAt)
}
