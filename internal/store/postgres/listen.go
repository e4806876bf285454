package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/andreasstove999/littlecarts/internal/store"
)

// Listener delivers NOTIFY payloads for a channel. Listen calls ready once the LISTEN is active and
// blocks until ctx ends.
type Listener interface {
	Listen(ctx context.Context, channel string, ready func(), notify func(payload string)) error
}

// PoolListener takes a dedicated connection out of the pool for every Listen call.
type PoolListener struct {
	Pool *pgxpool.Pool
}

func (l PoolListener) Listen(ctx context.Context, channel string, ready func(), notify func(payload string)) error {
	pooled, err := l.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", channel, err)
	}
	ready()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		notify(n.Payload)
	}
}

func (s *Store) Subscribe(ctx context.Context, collection, key string) (<-chan store.Snapshot, error) {
	if s.listener == nil {
		return nil, errors.New("postgres store: subscribe needs a listener")
	}

	target := collection + "/" + key
	ready := make(chan struct{})
	changed := make(chan struct{}, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.listener.Listen(ctx, NotifyChannel,
			func() { close(ready) },
			func(payload string) {
				if payload != target {
					return
				}
				select {
				case changed <- struct{}{}:
				default:
				}
			})
	}()

	select {
	case <-ready:
	case err := <-done:
		if err == nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("subscribe %s: %w", target, err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out := make(chan store.Snapshot, 1)
	go func() {
		defer close(out)
		emit := func() { store.Offer(out, s.snapshot(ctx, collection, key)) }

		emit()
		for {
			select {
			case <-ctx.Done():
				<-done
				return
			case <-changed:
				emit()
			case err := <-done:
				if err != nil {
					store.Offer(out, store.Snapshot{Err: err})
				}
				return
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
