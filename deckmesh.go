// Package deckmesh provides a high-level façade over the session store and
// its supporting abstractions (document store, blocking-I/O bridge, logging)
// for building conversational agent backends. Most applications interact
// with this package by:
//  1. Creating a DeckMesh via New() (optionally supplying a durable document
//     store such as the firestore adapter)
//  2. Driving the six store operations either synchronously via Store() or
//     through the non-blocking bridge via Sessions()
//
// All defaults are safe for local development and testing: an in-memory
// document store, a silent logger and a default-sized worker pool.
// Production deployments supply a durable store and a structured logger.
package deckmesh

import (
	"github.com/hupe1980/deckmesh/bridge"
	"github.com/hupe1980/deckmesh/core"
	"github.com/hupe1980/deckmesh/docstore"
	"github.com/hupe1980/deckmesh/logging"
	"github.com/hupe1980/deckmesh/session"
)

// Options configures the DeckMesh instance.
type Options struct {
	// DocStore is the backing document database. Defaults to a fresh
	// in-memory store.
	DocStore docstore.Store

	// Logger receives structured store diagnostics. Defaults to a
	// NoOpLogger.
	Logger logging.Logger

	// MaxConcurrentStoreOps bounds the worker pool behind the bridge.
	// Zero selects bridge.DefaultPoolSize. Size it to the expected
	// concurrent session load.
	MaxConcurrentStoreOps int
}

// DeckMesh wires the session store to a bounded bridge so a concurrent
// request layer can drive storage without blocking.
type DeckMesh struct {
	store  *session.Store
	bridge *bridge.StoreBridge
	logger logging.Logger
}

// New constructs a DeckMesh. Call with no arguments for all defaults, or
// mutate the Options in one or more functional option callbacks.
func New(optFns ...func(o *Options)) *DeckMesh {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}
	db := opts.DocStore
	if db == nil {
		db = docstore.NewInMemory()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	store := session.New(db, session.WithLogger(logger))
	pool := bridge.NewPool(opts.MaxConcurrentStoreOps)
	return &DeckMesh{
		store:  store,
		bridge: bridge.NewStoreBridge(store, pool),
		logger: logger,
	}
}

// Store returns the synchronous session store. Calls block on storage I/O.
func (m *DeckMesh) Store() core.SessionStore { return m.store }

// Sessions returns the non-blocking bridge over the session store.
func (m *DeckMesh) Sessions() *bridge.StoreBridge { return m.bridge }

// Logger returns the configured logger.
func (m *DeckMesh) Logger() logging.Logger { return m.logger }
