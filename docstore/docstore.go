package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrUnavailable indicates the store could not be reached or refused
	// the credentials. Callers map this onto their own taxonomy.
	ErrUnavailable = errors.New("document store unavailable")
)

// serverTimestamp is the unexported type behind the ServerTimestamp sentinel.
type serverTimestamp struct{}

// ServerTimestamp is a sentinel value: a field written with it resolves to
// the store's commit time rather than a caller-supplied clock reading.
var ServerTimestamp = serverTimestamp{}

// Update names one field-path mutation. FieldPath segments address nested
// map keys without dot-escaping concerns; Value may be ServerTimestamp.
type Update struct {
	FieldPath []string
	Value     any
}

// Snapshot is a point-in-time read of one document. Data holds JSON-like
// values: strings, bools, int64/float64 numbers, []byte, time.Time,
// []any and map[string]any.
type Snapshot struct {
	ID   string
	Data map[string]any
}

// Store is a handle to one document database. Implementations are safe for
// concurrent use; each blocking call runs on whatever goroutine invokes it.
type Store interface {
	// Collection returns a handle to a top-level collection.
	Collection(name string) Collection

	// Batch starts an atomic multi-write. Writes are buffered locally and
	// applied all-or-nothing at Commit.
	Batch() WriteBatch
}

// Collection is a handle to a named set of documents.
type Collection interface {
	// Doc returns a handle to the document with the given id. The document
	// need not exist.
	Doc(id string) Document

	// NewDoc returns a handle to a not-yet-written document with a fresh
	// store-assigned id.
	NewDoc() Document

	// Where narrows the collection by an equality filter. Filters compose
	// by chaining.
	Where(field string, op string, value any) Query

	// Documents reads every document in the collection. Iteration order
	// is store-native and carries no guarantee.
	Documents(ctx context.Context) ([]Snapshot, error)
}

// Query is a filtered view over a collection.
type Query interface {
	Where(field string, op string, value any) Query
	Documents(ctx context.Context) ([]Snapshot, error)
}

// Document is a handle to one keyed document.
type Document interface {
	// ID returns the document's key within its collection.
	ID() string

	// Create writes the document, failing if it already exists.
	Create(ctx context.Context, data map[string]any) error

	// Get reads the document, returning ErrNotFound if it does not exist.
	Get(ctx context.Context) (Snapshot, error)

	// Update applies field-path mutations to an existing document,
	// returning ErrNotFound if it does not exist.
	Update(ctx context.Context, updates []Update) error

	// Collection returns a handle to a sub-collection under this document.
	Collection(name string) Collection
}

// WriteBatch buffers writes for one atomic commit. A batch is single-use and
// not safe for concurrent mutation.
type WriteBatch interface {
	// Set writes the full document, creating or replacing it.
	Set(doc Document, data map[string]any)

	// Update buffers field-path mutations; commit fails if the target
	// document does not exist at commit time.
	Update(doc Document, updates []Update)

	// Delete removes the document; deleting a missing document is not an
	// error.
	Delete(doc Document)

	// Commit applies every buffered write as a unit: either all writes
	// are observable afterwards or none are.
	Commit(ctx context.Context) error
}
