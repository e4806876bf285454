package memory

import (
	"context"

	"github.com/andreasstove999/littlecarts/internal/store"
)

type subscriber struct {
	ch chan store.Snapshot
}

func (s *Store) Subscribe(ctx context.Context, collection, key string) (<-chan store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := docID{collection, key}
	sub := &subscriber{ch: make(chan store.Snapshot, 1)}

	s.mu.Lock()
	if s.subs[id] == nil {
		s.subs[id] = make(map[*subscriber]struct{})
	}
	s.subs[id][sub] = struct{}{}
	store.Offer(sub.ch, s.snapshotLocked(id))
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs[id], sub)
		if len(s.subs[id]) == 0 {
			delete(s.subs, id)
		}
		close(sub.ch)
		s.mu.Unlock()
	}()

	return sub.ch, nil
}

func (s *Store) snapshotLocked(id docID) store.Snapshot {
	rec, ok := s.docs[id]
	if !ok {
		return store.Snapshot{Document: store.Document{Collection: id.collection, Key: id.key}}
	}
	return store.Snapshot{Document: toDocument(id, rec), Exists: true}
}

func (s *Store) publishLocked(id docID) {
	for sub := range s.subs[id] {
		store.Offer(sub.ch, s.snapshotLocked(id))
	}
}
