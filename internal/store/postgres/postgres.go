// Package postgres stores documents as JSONB rows in the documents table created by internal/db.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/littlecarts/internal/store"
)

// NotifyChannel is the channel the documents trigger publishes "collection/key" payloads on.
const NotifyChannel = "documents_changed"

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Store struct {
	pool     DBPool
	listener Listener
}

// New builds a store. listener may be nil, in which case Subscribe is unavailable.
func New(pool DBPool, listener Listener) *Store {
	return &Store{pool: pool, listener: listener}
}

const (
	selectDocumentSQL = `SELECT body, version, updated_at FROM documents WHERE collection = $1 AND key = $2`

	upsertDocumentSQL = `
		INSERT INTO documents (collection, key, body, version, updated_at)
		VALUES ($1, $2, $3::jsonb, nextval('document_versions'), now())
		ON CONFLICT (collection, key)
		DO UPDATE SET body = EXCLUDED.body, version = nextval('document_versions'), updated_at = now()`

	insertDocumentSQL = `
		INSERT INTO documents (collection, key, body, version, updated_at)
		VALUES ($1, $2, $3::jsonb, nextval('document_versions'), now())
		ON CONFLICT (collection, key) DO NOTHING`

	replaceDocumentIfSQL = `
		UPDATE documents
		SET body = $3::jsonb, version = nextval('document_versions'), updated_at = now()
		WHERE collection = $1 AND key = $2 AND version = $4`

	mergeDocumentSQL = `
		UPDATE documents
		SET body = body || $3::jsonb, version = nextval('document_versions'), updated_at = now()
		WHERE collection = $1 AND key = $2`

	deleteDocumentSQL   = `DELETE FROM documents WHERE collection = $1 AND key = $2`
	deleteDocumentIfSQL = `DELETE FROM documents WHERE collection = $1 AND key = $2 AND version = $3`
	existsDocumentSQL   = `SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND key = $2)`
)

func (s *Store) Get(ctx context.Context, collection, key string) (store.Document, error) {
	var (
		body      []byte
		version   int64
		updatedAt time.Time
	)
	err := s.pool.QueryRow(ctx, selectDocumentSQL, collection, key).Scan(&body, &version, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Document{}, store.ErrNotFound
		}
		return store.Document{}, fmt.Errorf("select document: %w", err)
	}

	fields, err := store.DecodeFields(body)
	if err != nil {
		return store.Document{}, err
	}
	return store.Document{
		Collection: collection,
		Key:        key,
		Fields:     fields,
		Version:    version,
		UpdatedAt:  updatedAt,
	}, nil
}

func (s *Store) Set(ctx context.Context, collection, key string, fields store.Fields) error {
	body, err := store.EncodeFields(fields)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, upsertDocumentSQL, collection, key, body); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, key string, fields store.Fields) error {
	body, err := store.EncodeFields(fields)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, mergeDocumentSQL, collection, key, body)
	if err != nil {
		return fmt.Errorf("merge document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, key string) error {
	if _, err := s.pool.Exec(ctx, deleteDocumentSQL, collection, key); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, collection string, where ...store.Match) ([]store.Document, error) {
	query, args := listQuery(collection, where)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var (
			key       string
			body      []byte
			version   int64
			updatedAt time.Time
		)
		if err := rows.Scan(&key, &body, &version, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		fields, err := store.DecodeFields(body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, store.Document{
			Collection: collection,
			Key:        key,
			Fields:     fields,
			Version:    version,
			UpdatedAt:  updatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return docs, nil
}

func listQuery(collection string, where []store.Match) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT key, body, version, updated_at FROM documents WHERE collection = $1`)
	args := []any{collection}
	for _, m := range where {
		args = append(args, m.Field, m.Value)
		fmt.Fprintf(&sb, ` AND body->>$%d = $%d`, len(args)-1, len(args))
	}
	sb.WriteString(` ORDER BY key`)
	return sb.String(), args
}

func (s *Store) Commit(ctx context.Context, writes ...store.Write) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	for _, w := range writes {
		if err := apply(ctx, tx, w); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func apply(ctx context.Context, q execer, w store.Write) error {
	switch w.Op {
	case store.OpSet:
		body, err := store.EncodeFields(w.Fields)
		if err != nil {
			return err
		}
		switch {
		case w.IfVersion == nil:
			_, err = q.Exec(ctx, upsertDocumentSQL, w.Collection, w.Key, body)
			if err != nil {
				return fmt.Errorf("upsert %s/%s: %w", w.Collection, w.Key, err)
			}
			return nil
		case *w.IfVersion == 0:
			tag, err := q.Exec(ctx, insertDocumentSQL, w.Collection, w.Key, body)
			if err != nil {
				return fmt.Errorf("insert %s/%s: %w", w.Collection, w.Key, err)
			}
			return expectOne(tag, w)
		default:
			tag, err := q.Exec(ctx, replaceDocumentIfSQL, w.Collection, w.Key, body, *w.IfVersion)
			if err != nil {
				return fmt.Errorf("replace %s/%s: %w", w.Collection, w.Key, err)
			}
			return expectOne(tag, w)
		}

	case store.OpDelete:
		switch {
		case w.IfVersion == nil:
			if _, err := q.Exec(ctx, deleteDocumentSQL, w.Collection, w.Key); err != nil {
				return fmt.Errorf("delete %s/%s: %w", w.Collection, w.Key, err)
			}
			return nil
		case *w.IfVersion == 0:
			var exists bool
			if err := q.QueryRow(ctx, existsDocumentSQL, w.Collection, w.Key).Scan(&exists); err != nil {
				return fmt.Errorf("check %s/%s: %w", w.Collection, w.Key, err)
			}
			if exists {
				return fmt.Errorf("%s/%s exists: %w", w.Collection, w.Key, store.ErrConflict)
			}
			return nil
		default:
			tag, err := q.Exec(ctx, deleteDocumentIfSQL, w.Collection, w.Key, *w.IfVersion)
			if err != nil {
				return fmt.Errorf("delete %s/%s: %w", w.Collection, w.Key, err)
			}
			return expectOne(tag, w)
		}
	}
	return fmt.Errorf("unknown write op %d", w.Op)
}

func expectOne(tag pgconn.CommandTag, w store.Write) error {
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%s/%s not at version %d: %w", w.Collection, w.Key, *w.IfVersion, store.ErrConflict)
	}
	return nil
}
