// Package memory is an in-process document store. Bodies are normalized through JSON on every write so
// callers observe the same value shapes as with the networked backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andreasstove999/littlecarts/internal/store"
)

type docID struct {
	collection string
	key        string
}

type record struct {
	fields    store.Fields
	version   int64
	updatedAt time.Time
}

type Store struct {
	mu   sync.Mutex
	docs map[docID]record
	// version history survives deletes so a recreated document never reuses a version
	clock map[docID]int64
	subs  map[docID]map[*subscriber]struct{}
	seqs  map[string]int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		docs:  make(map[docID]record),
		clock: make(map[docID]int64),
		subs:  make(map[docID]map[*subscriber]struct{}),
		seqs:  make(map[string]int64),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Get(ctx context.Context, collection, key string) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return store.Document{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := docID{collection, key}
	rec, ok := s.docs[id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return toDocument(id, rec), nil
}

func (s *Store) Set(ctx context.Context, collection, key string, fields store.Fields) error {
	return s.Commit(ctx, store.Put(collection, key, fields))
}

func (s *Store) Update(ctx context.Context, collection, key string, fields store.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	patch, err := store.Normalize(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := docID{collection, key}
	rec, ok := s.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	s.putLocked(id, store.Merge(rec.fields, patch))
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	return s.Commit(ctx, store.Remove(collection, key))
}

func (s *Store) List(ctx context.Context, collection string, where ...store.Match) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Document
	for id, rec := range s.docs {
		if id.collection != collection || !store.Matches(rec.fields, where) {
			continue
		}
		out = append(out, toDocument(id, rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) Commit(ctx context.Context, writes ...store.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bodies := make([]store.Fields, len(writes))
	for i, w := range writes {
		if w.Op != store.OpSet {
			continue
		}
		body, err := store.Normalize(w.Fields)
		if err != nil {
			return err
		}
		bodies[i] = body
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range writes {
		if w.IfVersion == nil {
			continue
		}
		if current := s.docs[docID{w.Collection, w.Key}].version; current != *w.IfVersion {
			return fmt.Errorf("%s/%s at version %d, expected %d: %w", w.Collection, w.Key, current, *w.IfVersion, store.ErrConflict)
		}
	}

	for i, w := range writes {
		id := docID{w.Collection, w.Key}
		switch w.Op {
		case store.OpSet:
			s.putLocked(id, bodies[i])
		case store.OpDelete:
			if _, ok := s.docs[id]; ok {
				delete(s.docs, id)
				s.publishLocked(id)
			}
		default:
			return fmt.Errorf("unknown write op %d", w.Op)
		}
	}
	return nil
}

// NextSequence hands out per-partition event sequence numbers starting at 1.
func (s *Store) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, fmt.Errorf("partition key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[partitionKey]++
	return s.seqs[partitionKey], nil
}

func (s *Store) putLocked(id docID, fields store.Fields) {
	s.clock[id]++
	s.docs[id] = record{fields: fields, version: s.clock[id], updatedAt: s.now()}
	s.publishLocked(id)
}

func toDocument(id docID, rec record) store.Document {
	return store.Document{
		Collection: id.collection,
		Key:        id.key,
		Fields:     clone(rec.fields),
		Version:    rec.version,
		UpdatedAt:  rec.updatedAt,
	}
}

// clone deep-copies a normalized body so callers cannot alias stored state.
func clone(fields store.Fields) store.Fields {
	out := make(store.Fields, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		l := make([]any, len(t))
		for i, inner := range t {
			l[i] = cloneValue(inner)
		}
		return l
	default:
		return v
	}
}
