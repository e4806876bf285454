package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/andreasstove999/littlecarts/internal/store"
)

func (s *Store) Subscribe(ctx context.Context, collection, key string) (<-chan store.Snapshot, error) {
	pubsub := s.client.Subscribe(ctx, s.channel(collection, key))
	// Receive blocks until the server confirms the subscription, so no change published after
	// Subscribe returns can be missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s/%s: %w", collection, key, err)
	}

	out := make(chan store.Snapshot, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		store.Offer(out, s.snapshot(ctx, collection, key))
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				store.Offer(out, s.snapshot(ctx, collection, key))
			}
		}
	}()
	return out, nil
}

func (s *Store) snapshot(ctx context.Context, collection, key string) store.Snapshot {
	doc, err := s.Get(ctx, collection, key)
	switch {
	case err == nil:
		return store.Snapshot{Document: doc, Exists: true}
	case errors.Is(err, store.ErrNotFound):
		return store.Snapshot{Document: store.Document{Collection: collection, Key: key}}
	default:
		return store.Snapshot{Document: store.Document{Collection: collection, Key: key}, Err: err}
	}
}
