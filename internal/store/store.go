package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document version conflict")
)

// Fields is the schemaless body of a document.
type Fields map[string]any

type Document struct {
	Collection string
	Key        string
	Fields     Fields
	// Version is bumped on every write. Zero means the document does not exist.
	Version   int64
	UpdatedAt time.Time
}

// Snapshot is one observation of a subscribed document.
type Snapshot struct {
	Document Document
	Exists   bool
	Err      error
}

// Match selects documents whose top-level string field equals Value.
type Match struct {
	Field string
	Value string
}

// Store is the document database the service persists products, carts and orders in.
type Store interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	Set(ctx context.Context, collection, key string, fields Fields) error
	Update(ctx context.Context, collection, key string, fields Fields) error
	Delete(ctx context.Context, collection, key string) error
	List(ctx context.Context, collection string, where ...Match) ([]Document, error)
	// Subscribe emits the current state of the document and then every change until ctx ends.
	Subscribe(ctx context.Context, collection, key string) (<-chan Snapshot, error)
	// Commit applies all writes or none. A failed precondition returns ErrConflict.
	Commit(ctx context.Context, writes ...Write) error
}

type Op int

const (
	OpSet Op = iota + 1
	OpDelete
)

type Write struct {
	Op         Op
	Collection string
	Key        string
	Fields     Fields
	// IfVersion, when set, must equal the stored version (0 = must not exist).
	IfVersion *int64
}

func Put(collection, key string, fields Fields) Write {
	return Write{Op: OpSet, Collection: collection, Key: key, Fields: fields}
}

func PutIf(collection, key string, fields Fields, version int64) Write {
	return Write{Op: OpSet, Collection: collection, Key: key, Fields: fields, IfVersion: &version}
}

func Remove(collection, key string) Write {
	return Write{Op: OpDelete, Collection: collection, Key: key}
}

func RemoveIf(collection, key string, version int64) Write {
	return Write{Op: OpDelete, Collection: collection, Key: key, IfVersion: &version}
}

// Matches reports whether fields satisfy every match.
func Matches(fields Fields, where []Match) bool {
	for _, m := range where {
		v, ok := fields[m.Field].(string)
		if !ok || v != m.Value {
			return false
		}
	}
	return true
}

// Merge returns a copy of base with patch applied at the top level.
func Merge(base, patch Fields) Fields {
	out := make(Fields, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
