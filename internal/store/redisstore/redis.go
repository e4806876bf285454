// Package redisstore keeps each document in a Redis hash with body, version and updatedAt fields.
// Versions come from one shared counter so a value is never handed out twice, even across deletes.
// Conditional batches use WATCH/MULTI and changes are announced with PUBLISH.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andreasstove999/littlecarts/internal/store"
)

const (
	fieldBody      = "body"
	fieldVersion   = "version"
	fieldUpdatedAt = "updatedAt"

	// maxWatchRetries bounds retries of unconditional writes that lost a WATCH race.
	maxWatchRetries = 16
)

type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) docKey(collection, key string) string {
	return s.prefix + "doc:" + collection + ":" + key
}

func (s *Store) indexKey(collection string) string {
	return s.prefix + "index:" + collection
}

func (s *Store) channel(collection, key string) string {
	return s.prefix + "changes:" + collection + ":" + key
}

func (s *Store) versionKey() string {
	return s.prefix + "versions"
}

func (s *Store) Get(ctx context.Context, collection, key string) (store.Document, error) {
	vals, err := s.client.HGetAll(ctx, s.docKey(collection, key)).Result()
	if err != nil {
		return store.Document{}, fmt.Errorf("hgetall %s/%s: %w", collection, key, err)
	}
	return decode(collection, key, vals)
}

func decode(collection, key string, vals map[string]string) (store.Document, error) {
	if len(vals) == 0 {
		return store.Document{}, store.ErrNotFound
	}
	fields, err := store.DecodeFields([]byte(vals[fieldBody]))
	if err != nil {
		return store.Document{}, err
	}
	version, err := strconv.ParseInt(vals[fieldVersion], 10, 64)
	if err != nil {
		return store.Document{}, fmt.Errorf("parse version of %s/%s: %w", collection, key, err)
	}
	updatedAt, _ := time.Parse(time.RFC3339Nano, vals[fieldUpdatedAt])
	return store.Document{
		Collection: collection,
		Key:        key,
		Fields:     fields,
		Version:    version,
		UpdatedAt:  updatedAt,
	}, nil
}

func (s *Store) Set(ctx context.Context, collection, key string, fields store.Fields) error {
	return s.Commit(ctx, store.Put(collection, key, fields))
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	return s.Commit(ctx, store.Remove(collection, key))
}

func (s *Store) Update(ctx context.Context, collection, key string, fields store.Fields) error {
	docKey := s.docKey(collection, key)
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			vals, err := tx.HGetAll(ctx, docKey).Result()
			if err != nil {
				return err
			}
			doc, err := decode(collection, key, vals)
			if err != nil {
				return err
			}
			return s.exec(ctx, tx, []store.Write{store.Put(collection, key, store.Merge(doc.Fields, fields))})
		}, docKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s/%s: %w", collection, key, store.ErrConflict)
}

func (s *Store) List(ctx context.Context, collection string, where ...store.Match) ([]store.Document, error) {
	keys, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", collection, err)
	}
	sort.Strings(keys)

	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.HGetAll(ctx, s.docKey(collection, k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", collection, err)
	}

	var docs []store.Document
	for i, cmd := range cmds {
		doc, err := decode(collection, keys[i], cmd.Val())
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if store.Matches(doc.Fields, where) {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *Store) Commit(ctx context.Context, writes ...store.Write) error {
	keys := make([]string, 0, len(writes))
	conditional := false
	for _, w := range writes {
		keys = append(keys, s.docKey(w.Collection, w.Key))
		if w.IfVersion != nil {
			conditional = true
		}
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			for _, w := range writes {
				if w.IfVersion == nil {
					continue
				}
				current, err := tx.HGet(ctx, s.docKey(w.Collection, w.Key), fieldVersion).Int64()
				if errors.Is(err, redis.Nil) {
					current = 0
				} else if err != nil {
					return err
				}
				if current != *w.IfVersion {
					return fmt.Errorf("%s/%s at version %d, expected %d: %w", w.Collection, w.Key, current, *w.IfVersion, store.ErrConflict)
				}
			}
			return s.exec(ctx, tx, writes)
		}, keys...)

		if errors.Is(err, redis.TxFailedErr) {
			// A watched key changed between the version check and EXEC.
			if conditional {
				return fmt.Errorf("commit: %w", store.ErrConflict)
			}
			continue
		}
		return err
	}
	return fmt.Errorf("commit: %w", store.ErrConflict)
}

func (s *Store) exec(ctx context.Context, tx *redis.Tx, writes []store.Write) error {
	bodies := make([][]byte, len(writes))
	versions := make([]int64, len(writes))
	for i, w := range writes {
		if w.Op != store.OpSet {
			continue
		}
		body, err := store.EncodeFields(w.Fields)
		if err != nil {
			return err
		}
		bodies[i] = body
		v, err := s.client.Incr(ctx, s.versionKey()).Result()
		if err != nil {
			return fmt.Errorf("next version: %w", err)
		}
		versions[i] = v
	}

	now := s.now().Format(time.RFC3339Nano)
	_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i, w := range writes {
			docKey := s.docKey(w.Collection, w.Key)
			switch w.Op {
			case store.OpSet:
				p.Del(ctx, docKey)
				p.HSet(ctx, docKey, fieldBody, string(bodies[i]), fieldVersion, versions[i], fieldUpdatedAt, now)
				p.SAdd(ctx, s.indexKey(w.Collection), w.Key)
			case store.OpDelete:
				p.Del(ctx, docKey)
				p.SRem(ctx, s.indexKey(w.Collection), w.Key)
			default:
				return fmt.Errorf("unknown write op %d", w.Op)
			}
			p.Publish(ctx, s.channel(w.Collection, w.Key), "changed")
		}
		return nil
	})
	return err
}

// NextSequence hands out per-partition event sequence numbers starting at 1.
func (s *Store) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, fmt.Errorf("partition key is required")
	}
	seq, err := s.client.Incr(ctx, s.prefix+"seq:"+partitionKey).Result()
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}
