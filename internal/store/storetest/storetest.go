// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/littlecarts/internal/store"
)

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "carts", "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("set bumps version", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Set(ctx, "carts", "u1", store.Fields{"userId": "u1", "totalPrice": 10}))
		doc, err := s.Get(ctx, "carts", "u1")
		require.NoError(t, err)
		assert.Equal(t, "carts", doc.Collection)
		assert.Equal(t, "u1", doc.Key)
		assert.Equal(t, "u1", doc.Fields["userId"])
		assert.Equal(t, 10.0, doc.Fields["totalPrice"], "numbers come back as float64")
		first := doc.Version
		assert.Positive(t, first)

		require.NoError(t, s.Set(ctx, "carts", "u1", store.Fields{"userId": "u1"}))
		doc, err = s.Get(ctx, "carts", "u1")
		require.NoError(t, err)
		assert.Greater(t, doc.Version, first)
		_, stale := doc.Fields["totalPrice"]
		assert.False(t, stale, "set replaces the whole body")
	})

	t.Run("update merges", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		err := s.Update(ctx, "product", "p1", store.Fields{"isActive": false})
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.Set(ctx, "product", "p1", store.Fields{"name": "Chips", "isActive": true}))
		require.NoError(t, s.Update(ctx, "product", "p1", store.Fields{"isActive": false}))

		doc, err := s.Get(ctx, "product", "p1")
		require.NoError(t, err)
		assert.Equal(t, "Chips", doc.Fields["name"])
		assert.Equal(t, false, doc.Fields["isActive"])
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Set(ctx, "carts", "u1", store.Fields{"userId": "u1"}))
		require.NoError(t, s.Delete(ctx, "carts", "u1"))
		require.NoError(t, s.Delete(ctx, "carts", "u1"))

		_, err := s.Get(ctx, "carts", "u1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("list filters by collection and match", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Set(ctx, "orders", "o1", store.Fields{"userId": "u1"}))
		require.NoError(t, s.Set(ctx, "orders", "o2", store.Fields{"userId": "u2"}))
		require.NoError(t, s.Set(ctx, "orders", "o3", store.Fields{"userId": "u1"}))
		require.NoError(t, s.Set(ctx, "carts", "u1", store.Fields{"userId": "u1"}))

		all, err := s.List(ctx, "orders")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		mine, err := s.List(ctx, "orders", store.Match{Field: "userId", Value: "u1"})
		require.NoError(t, err)
		keys := make([]string, 0, len(mine))
		for _, d := range mine {
			keys = append(keys, d.Key)
		}
		assert.ElementsMatch(t, []string{"o1", "o3"}, keys)

		none, err := s.List(ctx, "orders", store.Match{Field: "userId", Value: "u9"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("commit applies preconditions atomically", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Commit(ctx, store.PutIf("carts", "u1", store.Fields{"n": 1}, 0)))
		doc, err := s.Get(ctx, "carts", "u1")
		require.NoError(t, err)

		err = s.Commit(ctx, store.PutIf("carts", "u1", store.Fields{"n": 2}, 0))
		require.ErrorIs(t, err, store.ErrConflict, "must-not-exist fails when present")

		err = s.Commit(ctx,
			store.Put("orders", "o1", store.Fields{"userId": "u1"}),
			store.RemoveIf("carts", "u1", doc.Version+1),
		)
		require.ErrorIs(t, err, store.ErrConflict)
		_, err = s.Get(ctx, "orders", "o1")
		require.ErrorIs(t, err, store.ErrNotFound, "no write of a failed batch is visible")

		require.NoError(t, s.Commit(ctx,
			store.PutIf("orders", "o1", store.Fields{"userId": "u1"}, 0),
			store.RemoveIf("carts", "u1", doc.Version),
		))
		_, err = s.Get(ctx, "orders", "o1")
		require.NoError(t, err)
		_, err = s.Get(ctx, "carts", "u1")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("subscribe streams changes", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		s := newStore(t)

		subCtx, stop := context.WithCancel(ctx)
		ch, err := s.Subscribe(subCtx, "carts", "u1")
		require.NoError(t, err)

		first := next(t, ch)
		assert.False(t, first.Exists)

		require.NoError(t, s.Set(ctx, "carts", "u1", store.Fields{"userId": "u1", "n": 1}))
		waitFor(t, ch, func(snap store.Snapshot) bool {
			return snap.Exists && snap.Document.Fields["n"] == 1.0
		})

		require.NoError(t, s.Delete(ctx, "carts", "u1"))
		waitFor(t, ch, func(snap store.Snapshot) bool { return !snap.Exists })

		stop()
		deadline := time.After(10 * time.Second)
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
			case <-deadline:
				t.Fatal("subscription channel not closed after cancel")
			}
		}
	})
}

func next(t *testing.T, ch <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed early")
		require.NoError(t, snap.Err)
		return snap
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return store.Snapshot{}
}

func waitFor(t *testing.T, ch <-chan store.Snapshot, pred func(store.Snapshot) bool) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			require.True(t, ok, "subscription closed early")
			if snap.Err != nil && !errors.Is(snap.Err, context.Canceled) {
				t.Fatalf("snapshot error: %v", snap.Err)
			}
			if pred(snap) {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching snapshot")
		}
	}
}
