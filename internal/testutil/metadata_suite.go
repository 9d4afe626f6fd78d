package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gostratum/blobx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunMetadataStoreTests exercises the blobx.MetadataStore contract against
// stores built by newStore. Each subtest gets a fresh store.
func RunMetadataStoreTests(t *testing.T, newStore func(t *testing.T) blobx.MetadataStore) {
	t.Helper()

	loc := blobx.Location{Provider: blobx.ProviderAWSS3, Bucket: "bucket-a", Key: "doc.txt"}

	t.Run("create then get", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.Create(ctx, loc)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, loc, created.Location)
		assert.False(t, created.CreatedAt.IsZero())
		assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, loc, got.Location)
		assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("ids are unique", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		a, err := store.Create(ctx, loc)
		require.NoError(t, err)
		b, err := store.Create(ctx, loc)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Get(context.Background(), uuid.New())
		assert.ErrorIs(t, err, blobx.ErrMetadataNotFound)
	})

	t.Run("create rejects invalid location", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.Create(ctx, blobx.Location{Provider: "aws", Bucket: "b", Key: "k"})
		assert.ErrorIs(t, err, blobx.ErrInvalidProvider)

		_, err = store.Create(ctx, blobx.Location{Provider: blobx.ProviderGCP, Bucket: "", Key: "k"})
		assert.ErrorIs(t, err, blobx.ErrInvalidArgument)

		list, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("update replaces location", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.Create(ctx, loc)
		require.NoError(t, err)

		moved := blobx.Location{Provider: blobx.ProviderGCP, Bucket: "bucket-g", Key: "moved.txt"}
		updated, err := store.Update(ctx, created.ID, moved)
		require.NoError(t, err)
		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, moved, updated.Location)
		assert.WithinDuration(t, created.CreatedAt, updated.CreatedAt, time.Millisecond)
		assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

		got, err := store.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, moved, got.Location)
	})

	t.Run("update missing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Update(context.Background(), uuid.New(), loc)
		assert.ErrorIs(t, err, blobx.ErrMetadataNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		created, err := store.Create(ctx, loc)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, created.ID))
		require.NoError(t, store.Delete(ctx, created.ID))
		require.NoError(t, store.Delete(ctx, uuid.New()))

		_, err = store.Get(ctx, created.ID)
		assert.ErrorIs(t, err, blobx.ErrMetadataNotFound)
	})

	t.Run("list returns every record", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		list, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		want := map[uuid.UUID]blobx.Location{}
		for _, key := range []string{"a.txt", "b.txt", "c.txt"} {
			l := blobx.Location{Provider: blobx.ProviderMinIO, Bucket: "bucket-m", Key: key}
			meta, err := store.Create(ctx, l)
			require.NoError(t, err)
			want[meta.ID] = l
		}

		list, err = store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, len(want))
		for _, meta := range list {
			assert.Equal(t, want[meta.ID], meta.Location)
		}
	})
}

// FixedClock returns a clock that starts at start and advances by step on
// every call.
func FixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}
