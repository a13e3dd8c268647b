package bridge

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/deckmesh/core"
)

// DefaultPoolSize bounds in-flight store operations when no explicit size is
// given. Size the pool to the expected concurrent session load.
const DefaultPoolSize = 16

// Pool is a bounded set of worker slots for blocking store calls. The bound
// provides backpressure: once every slot is busy, additional operations
// queue (their futures stay unresolved) instead of piling up goroutines
// against the store client.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool with the given number of slots; size <= 0 selects
// DefaultPoolSize.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Submit dispatches fn onto the pool and returns immediately with a Future.
// The slot is acquired inside the spawned goroutine so the caller never
// blocks, even when the pool is saturated. A context cancelled while the
// operation is still queued resolves the future with ctx.Err().
func Submit[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			var zero T
			f.complete(zero, err)
			return
		}
		defer p.sem.Release(1)
		f.complete(fn(ctx))
	}()
	return f
}

// StoreBridge exposes the six session-store operations as non-blocking
// futures executed on a bounded pool. It adds no retry, no timeout and no
// cross-call ordering; those policies belong to the caller.
type StoreBridge struct {
	store core.SessionStore
	pool  *Pool
}

// NewStoreBridge wraps a synchronous store. A nil pool gets a default-sized
// one.
func NewStoreBridge(store core.SessionStore, pool *Pool) *StoreBridge {
	if pool == nil {
		pool = NewPool(0)
	}
	return &StoreBridge{store: store, pool: pool}
}

// Create dispatches SessionStore.Create.
func (b *StoreBridge) Create(ctx context.Context, req core.CreateRequest) *Future[*core.Session] {
	return Submit(ctx, b.pool, func(ctx context.Context) (*core.Session, error) {
		return b.store.Create(ctx, req)
	})
}

// Get dispatches SessionStore.Get.
func (b *StoreBridge) Get(ctx context.Context, appName, userID, sessionID string, cfg *core.GetConfig) *Future[*core.Session] {
	return Submit(ctx, b.pool, func(ctx context.Context) (*core.Session, error) {
		return b.store.Get(ctx, appName, userID, sessionID, cfg)
	})
}

// List dispatches SessionStore.List.
func (b *StoreBridge) List(ctx context.Context, appName, userID string) *Future[[]*core.Session] {
	return Submit(ctx, b.pool, func(ctx context.Context) ([]*core.Session, error) {
		return b.store.List(ctx, appName, userID)
	})
}

// Delete dispatches SessionStore.Delete.
func (b *StoreBridge) Delete(ctx context.Context, appName, userID, sessionID string) *Future[struct{}] {
	return Submit(ctx, b.pool, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.store.Delete(ctx, appName, userID, sessionID)
	})
}

// AppendEvent dispatches SessionStore.AppendEvent.
func (b *StoreBridge) AppendEvent(ctx context.Context, sessionID string, ev core.Event) *Future[core.Event] {
	return Submit(ctx, b.pool, func(ctx context.Context) (core.Event, error) {
		return b.store.AppendEvent(ctx, sessionID, ev)
	})
}

// ApplyDelta dispatches SessionStore.ApplyDelta.
func (b *StoreBridge) ApplyDelta(ctx context.Context, sessionID string, delta map[string]any) *Future[struct{}] {
	return Submit(ctx, b.pool, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.store.ApplyDelta(ctx, sessionID, delta)
	})
}
