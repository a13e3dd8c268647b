package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemory is a volatile Store implementation keeping documents in process
// local maps. It is safe for concurrent access and best suited for tests or
// ephemeral demo deployments. Reads and writes deep-copy document data so
// callers can never mutate stored state through a returned snapshot.
type InMemory struct {
	mu         sync.Mutex
	root       map[string]*memColl
	commitHook func() error
}

// NewInMemory constructs an empty in-memory document store.
func NewInMemory() *InMemory {
	return &InMemory{root: make(map[string]*memColl)}
}

// SetCommitHook installs a function invoked at the start of every batch
// commit, before any buffered write is applied. A non-nil returned error
// aborts the commit with no writes observable. Intended for fault injection
// in tests; pass nil to remove.
func (s *InMemory) SetCommitHook(hook func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitHook = hook
}

// Collection returns a handle to a top-level collection.
func (s *InMemory) Collection(name string) Collection {
	return &memCollection{store: s, path: []string{name}}
}

// Batch starts an atomic multi-write against this store.
func (s *InMemory) Batch() WriteBatch {
	return &memBatch{store: s}
}

// memColl / memDocNode form the storage tree. A doc node may exist (data set)
// or merely anchor sub-collections, mirroring document-store semantics where
// a sub-collection can outlive its parent document.
type memColl struct {
	docs map[string]*memDocNode
}

type memDocNode struct {
	exists bool
	data   map[string]any
	subs   map[string]*memColl
}

// resolveColl walks a collection path (coll, id, coll, id, ... coll),
// creating intermediate nodes when create is set. Caller holds s.mu.
func (s *InMemory) resolveColl(path []string, create bool) *memColl {
	coll, ok := s.root[path[0]]
	if !ok {
		if !create {
			return nil
		}
		coll = &memColl{docs: make(map[string]*memDocNode)}
		s.root[path[0]] = coll
	}
	rest := path[1:]
	for len(rest) >= 2 {
		node, ok := coll.docs[rest[0]]
		if !ok {
			if !create {
				return nil
			}
			node = &memDocNode{subs: make(map[string]*memColl)}
			coll.docs[rest[0]] = node
		}
		if node.subs == nil {
			node.subs = make(map[string]*memColl)
		}
		sub, ok := node.subs[rest[1]]
		if !ok {
			if !create {
				return nil
			}
			sub = &memColl{docs: make(map[string]*memDocNode)}
			node.subs[rest[1]] = sub
		}
		coll = sub
		rest = rest[2:]
	}
	return coll
}

func (s *InMemory) resolveDoc(collPath []string, id string, create bool) *memDocNode {
	coll := s.resolveColl(collPath, create)
	if coll == nil {
		return nil
	}
	node, ok := coll.docs[id]
	if !ok {
		if !create {
			return nil
		}
		node = &memDocNode{subs: make(map[string]*memColl)}
		coll.docs[id] = node
	}
	return node
}

// memCollection is a handle to a (possibly not yet materialized) collection.
type memCollection struct {
	store *InMemory
	path  []string
}

func (c *memCollection) Doc(id string) Document {
	return &memDocument{store: c.store, collPath: c.path, id: id}
}

func (c *memCollection) NewDoc() Document {
	return &memDocument{store: c.store, collPath: c.path, id: uuid.NewString()}
}

func (c *memCollection) Where(field, op string, value any) Query {
	return &memQuery{coll: c, filters: []memFilter{{field: field, op: op, value: value}}}
}

func (c *memCollection) Documents(ctx context.Context) ([]Snapshot, error) {
	return c.snapshots(ctx, nil)
}

// snapshots collects every existing document passing all filters. Map
// iteration order makes the result deliberately unordered.
func (c *memCollection) snapshots(ctx context.Context, filters []memFilter) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	coll := c.store.resolveColl(c.path, false)
	if coll == nil {
		return nil, nil
	}
	var snaps []Snapshot
	for id, node := range coll.docs {
		if !node.exists {
			continue
		}
		if !matchFilters(node.data, filters) {
			continue
		}
		snaps = append(snaps, Snapshot{ID: id, Data: copyMap(node.data)})
	}
	return snaps, nil
}

type memFilter struct {
	field string
	op    string
	value any
}

type memQuery struct {
	coll    *memCollection
	filters []memFilter
}

func (q *memQuery) Where(field, op string, value any) Query {
	filters := append(append([]memFilter{}, q.filters...), memFilter{field: field, op: op, value: value})
	return &memQuery{coll: q.coll, filters: filters}
}

func (q *memQuery) Documents(ctx context.Context) ([]Snapshot, error) {
	for _, f := range q.filters {
		if f.op != "==" {
			return nil, fmt.Errorf("in-memory store supports only equality filters, got %q", f.op)
		}
	}
	return q.coll.snapshots(ctx, q.filters)
}

func matchFilters(data map[string]any, filters []memFilter) bool {
	for _, f := range filters {
		if data[f.field] != f.value {
			return false
		}
	}
	return true
}

// memDocument is a handle to one keyed document.
type memDocument struct {
	store    *InMemory
	collPath []string
	id       string
}

func (d *memDocument) ID() string { return d.id }

func (d *memDocument) Collection(name string) Collection {
	path := append(append([]string{}, d.collPath...), d.id, name)
	return &memCollection{store: d.store, path: path}
}

func (d *memDocument) Create(ctx context.Context, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	node := d.store.resolveDoc(d.collPath, d.id, true)
	if node.exists {
		return fmt.Errorf("document %q already exists", d.id)
	}
	node.exists = true
	node.data = resolveTimestamps(copyMap(data))
	return nil
}

func (d *memDocument) Get(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	node := d.store.resolveDoc(d.collPath, d.id, false)
	if node == nil || !node.exists {
		return Snapshot{}, ErrNotFound
	}
	return Snapshot{ID: d.id, Data: copyMap(node.data)}, nil
}

func (d *memDocument) Update(ctx context.Context, updates []Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	node := d.store.resolveDoc(d.collPath, d.id, false)
	if node == nil || !node.exists {
		return ErrNotFound
	}
	applyUpdates(node, updates)
	return nil
}

// applyUpdates mutates an existing node in place. Caller holds the store
// lock and has verified existence.
func applyUpdates(node *memDocNode, updates []Update) {
	for _, u := range updates {
		target := node.data
		for _, seg := range u.FieldPath[:len(u.FieldPath)-1] {
			next, ok := target[seg].(map[string]any)
			if !ok {
				next = make(map[string]any)
				target[seg] = next
			}
			target = next
		}
		leaf := u.FieldPath[len(u.FieldPath)-1]
		if _, ok := u.Value.(serverTimestamp); ok {
			target[leaf] = time.Now().UTC()
		} else {
			target[leaf] = copyValue(u.Value)
		}
	}
}

// memBatch buffers writes and applies them all-or-nothing under one lock.
type memBatch struct {
	store *InMemory
	ops   []memOp
}

type memOp struct {
	kind    string // "set", "update", "delete"
	doc     *memDocument
	data    map[string]any
	updates []Update
}

func (b *memBatch) Set(doc Document, data map[string]any) {
	b.ops = append(b.ops, memOp{kind: "set", doc: doc.(*memDocument), data: copyMap(data)})
}

func (b *memBatch) Update(doc Document, updates []Update) {
	b.ops = append(b.ops, memOp{kind: "update", doc: doc.(*memDocument), updates: updates})
}

func (b *memBatch) Delete(doc Document) {
	b.ops = append(b.ops, memOp{kind: "delete", doc: doc.(*memDocument)})
}

func (b *memBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if b.store.commitHook != nil {
		if err := b.store.commitHook(); err != nil {
			return err
		}
	}
	// Validate before applying so a failing op leaves no partial writes.
	for _, op := range b.ops {
		if op.kind != "update" {
			continue
		}
		node := b.store.resolveDoc(op.doc.collPath, op.doc.id, false)
		if node == nil || !node.exists {
			return fmt.Errorf("batch update target %q: %w", op.doc.id, ErrNotFound)
		}
	}
	for _, op := range b.ops {
		switch op.kind {
		case "set":
			node := b.store.resolveDoc(op.doc.collPath, op.doc.id, true)
			node.exists = true
			node.data = resolveTimestamps(copyMap(op.data))
		case "update":
			node := b.store.resolveDoc(op.doc.collPath, op.doc.id, false)
			applyUpdates(node, op.updates)
		case "delete":
			if node := b.store.resolveDoc(op.doc.collPath, op.doc.id, false); node != nil {
				node.exists = false
				node.data = nil
			}
		}
	}
	return nil
}

// resolveTimestamps replaces ServerTimestamp sentinels in top-level fields
// with the current commit time.
func resolveTimestamps(data map[string]any) map[string]any {
	now := time.Now().UTC()
	for k, v := range data {
		if _, ok := v.(serverTimestamp); ok {
			data[k] = now
		}
	}
	return data
}

// copyMap / copyValue deep-copy JSON-like document values so stored data and
// returned snapshots never alias caller memory.
func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case []byte:
		out := make([]byte, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
