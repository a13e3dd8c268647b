// Package firestore maps the docstore capability set onto Google Cloud
// Firestore. It is a thin adapter: every docstore concept (collections,
// sub-collections, store-assigned ids, field-path updates, server
// timestamps, atomic batches) has a direct Firestore counterpart.
//
// Queries are issued without an ORDER BY so no composite index is required;
// callers that need ordering sort after the fetch.
package firestore

import (
	"context"
	"fmt"

	fs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hupe1980/deckmesh/docstore"
)

// Store adapts a *firestore.Client to the docstore.Store interface. The
// client is long-lived, created once at process start and safe for
// concurrent blocking calls.
type Store struct {
	client *fs.Client
}

// New wraps an existing Firestore client.
func New(client *fs.Client) *Store {
	return &Store{client: client}
}

// Open dials Firestore for the given project. An empty databaseID selects
// the default database.
func Open(ctx context.Context, projectID, databaseID string) (*Store, error) {
	var (
		client *fs.Client
		err    error
	)
	if databaseID == "" {
		client, err = fs.NewClient(ctx, projectID)
	} else {
		client, err = fs.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying client connection.
func (s *Store) Close() error { return s.client.Close() }

// Collection returns a handle to a top-level collection.
func (s *Store) Collection(name string) docstore.Collection {
	return &collection{ref: s.client.Collection(name)}
}

// Batch starts an atomic multi-write.
func (s *Store) Batch() docstore.WriteBatch {
	return &batch{wb: s.client.Batch()}
}

type collection struct {
	ref *fs.CollectionRef
}

func (c *collection) Doc(id string) docstore.Document {
	return &document{ref: c.ref.Doc(id)}
}

func (c *collection) NewDoc() docstore.Document {
	return &document{ref: c.ref.NewDoc()}
}

func (c *collection) Where(field, op string, value any) docstore.Query {
	return &query{q: c.ref.Where(field, op, value)}
}

func (c *collection) Documents(ctx context.Context) ([]docstore.Snapshot, error) {
	return drain(c.ref.Documents(ctx))
}

type query struct {
	q fs.Query
}

func (q *query) Where(field, op string, value any) docstore.Query {
	return &query{q: q.q.Where(field, op, value)}
}

func (q *query) Documents(ctx context.Context) ([]docstore.Snapshot, error) {
	return drain(q.q.Documents(ctx))
}

func drain(it *fs.DocumentIterator) ([]docstore.Snapshot, error) {
	defer it.Stop()
	var snaps []docstore.Snapshot
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			return snaps, nil
		}
		if err != nil {
			return nil, mapErr(err)
		}
		snaps = append(snaps, docstore.Snapshot{ID: doc.Ref.ID, Data: doc.Data()})
	}
}

type document struct {
	ref *fs.DocumentRef
}

func (d *document) ID() string { return d.ref.ID }

func (d *document) Collection(name string) docstore.Collection {
	return &collection{ref: d.ref.Collection(name)}
}

func (d *document) Create(ctx context.Context, data map[string]any) error {
	_, err := d.ref.Create(ctx, translateSentinels(data))
	return mapErr(err)
}

func (d *document) Get(ctx context.Context) (docstore.Snapshot, error) {
	snap, err := d.ref.Get(ctx)
	if err != nil {
		return docstore.Snapshot{}, mapErr(err)
	}
	return docstore.Snapshot{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (d *document) Update(ctx context.Context, updates []docstore.Update) error {
	_, err := d.ref.Update(ctx, translateUpdates(updates))
	return mapErr(err)
}

type batch struct {
	wb *fs.WriteBatch
}

func (b *batch) Set(doc docstore.Document, data map[string]any) {
	b.wb.Set(doc.(*document).ref, translateSentinels(data))
}

func (b *batch) Update(doc docstore.Document, updates []docstore.Update) {
	b.wb.Update(doc.(*document).ref, translateUpdates(updates))
}

func (b *batch) Delete(doc docstore.Document) {
	b.wb.Delete(doc.(*document).ref)
}

func (b *batch) Commit(ctx context.Context) error {
	_, err := b.wb.Commit(ctx)
	return mapErr(err)
}

// translateSentinels rewrites docstore.ServerTimestamp sentinels in top-level
// fields into Firestore's own sentinel. The input map is not mutated.
func translateSentinels(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if v == docstore.ServerTimestamp {
			out[k] = fs.ServerTimestamp
		} else {
			out[k] = v
		}
	}
	return out
}

func translateUpdates(updates []docstore.Update) []fs.Update {
	out := make([]fs.Update, len(updates))
	for i, u := range updates {
		value := u.Value
		if value == docstore.ServerTimestamp {
			value = fs.ServerTimestamp
		}
		out[i] = fs.Update{FieldPath: fs.FieldPath(u.FieldPath), Value: value}
	}
	return out
}

// mapErr folds gRPC status codes into the docstore error taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return docstore.ErrNotFound
	case codes.Unavailable, codes.Unauthenticated, codes.PermissionDenied, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	default:
		return err
	}
}
