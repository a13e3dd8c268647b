package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/deckmesh/core"
	"github.com/hupe1980/deckmesh/docstore"
	"github.com/hupe1980/deckmesh/logging"
)

// Fixed store layout. These names are a persistence contract shared with
// every deployment reading the same database, not configuration.
const (
	sessionsCollection = "sessions"
	eventsCollection   = "events"
)

// Store implements core.SessionStore over an abstract document store. All
// methods issue blocking store calls on the calling goroutine; request
// layers that must not stall dispatch through the bridge package.
type Store struct {
	db     docstore.Store
	logger logging.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger attaches a structured logger. Defaults to NoOpLogger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Store over the given document store.
func New(db docstore.Store, opts ...Option) *Store {
	s := &Store{db: db, logger: logging.NoOpLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryStore constructs a Store over a fresh in-memory document store.
// Suited for tests and ephemeral demo deployments.
func NewInMemoryStore(opts ...Option) *Store {
	return New(docstore.NewInMemory(), opts...)
}

// Interface compliance (compile-time assertion)
var _ core.SessionStore = (*Store)(nil)

// Create writes a new session document with a store-assigned id and
// server-assigned timestamps, then reads it back to materialize them.
func (s *Store) Create(ctx context.Context, req core.CreateRequest) (*core.Session, error) {
	if req.SessionID != "" {
		return nil, core.ErrUserProvidedID
	}
	state := req.State
	if state == nil {
		state = map[string]any{}
	}
	doc := s.db.Collection(sessionsCollection).NewDoc()
	data := map[string]any{
		"app_name":   req.AppName,
		"user_id":    req.UserID,
		"state":      state,
		"createTime": docstore.ServerTimestamp,
		"updateTime": docstore.ServerTimestamp,
	}
	if err := doc.Create(ctx, data); err != nil {
		return nil, storeErr(err)
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	sess, err := decodeSession(snap)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("session created", "session_id", sess.ID, "app_name", req.AppName, "user_id", req.UserID)
	return sess, nil
}

// Get fetches a session snapshot and its full event history. It returns
// (nil, nil) when the session does not exist or its stored scope does not
// match the caller's: ownership is enforced at read time and mismatches
// never leak existence.
func (s *Store) Get(ctx context.Context, appName, userID, sessionID string, cfg *core.GetConfig) (*core.Session, error) {
	ref := s.db.Collection(sessionsCollection).Doc(sessionID)
	snap, err := ref.Get(ctx)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	sess, err := decodeSession(snap)
	if err != nil {
		return nil, err
	}
	if sess.AppName != appName || sess.UserID != userID {
		return nil, nil
	}

	// Fetch events without ordering to avoid index requirements on the
	// store side; sort in application code instead.
	snaps, err := ref.Collection(eventsCollection).Documents(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	sess.Events = make([]core.Event, 0, len(snaps))
	for _, evSnap := range snaps {
		ev, err := DecodeEvent(evSnap.ID, evSnap.Data)
		if err != nil {
			return nil, err
		}
		sess.Events = append(sess.Events, ev)
	}
	sess.SortEventsByTimestamp()
	sess.TrimEvents(cfg)
	return sess, nil
}

// List returns every session scoped to (appName, userID) without loading
// events. Order is store-native.
func (s *Store) List(ctx context.Context, appName, userID string) ([]*core.Session, error) {
	snaps, err := s.db.Collection(sessionsCollection).
		Where("app_name", "==", appName).
		Where("user_id", "==", userID).
		Documents(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	sessions := make([]*core.Session, 0, len(snaps))
	for _, snap := range snaps {
		sess, err := decodeSession(snap)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

// Delete removes the session document and every owned event in one atomic
// batch. A missing session or ownership mismatch is a no-op.
func (s *Store) Delete(ctx context.Context, appName, userID, sessionID string) error {
	ref := s.db.Collection(sessionsCollection).Doc(sessionID)
	snap, err := ref.Get(ctx)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return storeErr(err)
	}
	if snap.Data["app_name"] != appName || snap.Data["user_id"] != userID {
		return nil
	}

	events := ref.Collection(eventsCollection)
	snaps, err := events.Documents(ctx)
	if err != nil {
		return storeErr(err)
	}
	batch := s.db.Batch()
	for _, evSnap := range snaps {
		batch.Delete(events.Doc(evSnap.ID))
	}
	batch.Delete(ref)
	if err := batch.Commit(ctx); err != nil {
		return storeErr(err)
	}
	s.logger.Debug("session deleted", "session_id", sessionID, "event_count", len(snaps))
	return nil
}

// AppendEvent atomically writes the encoded event as a new child document
// and refreshes the parent session's updateTime in the same commit. Both
// writes land or neither does; a stale timestamp next to a persisted event
// is never observable. The writer never touches the session's state map.
func (s *Store) AppendEvent(ctx context.Context, sessionID string, ev core.Event) (core.Event, error) {
	start := time.Now()
	ref := s.db.Collection(sessionsCollection).Doc(sessionID)
	if _, err := ref.Get(ctx); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return core.Event{}, fmt.Errorf("append to session %q: %w", sessionID, core.ErrNotFound)
		}
		return core.Event{}, storeErr(err)
	}

	evDoc := ref.Collection(eventsCollection).NewDoc()
	ev.ID = evDoc.ID()

	batch := s.db.Batch()
	batch.Set(evDoc, EncodeEvent(ev))
	batch.Update(ref, []docstore.Update{
		{FieldPath: []string{"updateTime"}, Value: docstore.ServerTimestamp},
	})
	if err := batch.Commit(ctx); err != nil {
		appendErr := &core.AppendFailedError{SessionID: sessionID, Err: storeErr(err)}
		s.logger.Error("event append failed", "session_id", sessionID, "event_id", ev.ID, "error", appendErr)
		return core.Event{}, appendErr
	}
	s.logger.Debug("event appended", "session_id", sessionID, "event_id", ev.ID,
		"author", ev.Author, "duration", time.Since(start))
	return ev, nil
}

// ApplyDelta merges the given keys into the session's state map using
// field-path updates: only the named keys change, siblings are untouched,
// and updateTime is refreshed in the same write.
func (s *Store) ApplyDelta(ctx context.Context, sessionID string, delta map[string]any) error {
	updates := make([]docstore.Update, 0, len(delta)+1)
	for key, value := range delta {
		updates = append(updates, docstore.Update{FieldPath: []string{"state", key}, Value: value})
	}
	updates = append(updates, docstore.Update{FieldPath: []string{"updateTime"}, Value: docstore.ServerTimestamp})

	err := s.db.Collection(sessionsCollection).Doc(sessionID).Update(ctx, updates)
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("apply delta to session %q: %w", sessionID, core.ErrNotFound)
	}
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// decodeSession reconstructs a session snapshot from its stored document.
// Events are attached separately by Get.
func decodeSession(snap docstore.Snapshot) (*core.Session, error) {
	appName, ok := snap.Data["app_name"].(string)
	if !ok {
		return nil, &core.MalformedRecordError{Field: "app_name"}
	}
	userID, ok := snap.Data["user_id"].(string)
	if !ok {
		return nil, &core.MalformedRecordError{Field: "user_id"}
	}
	updateTime, ok := snap.Data["updateTime"].(time.Time)
	if !ok {
		return nil, &core.MalformedRecordError{Field: "updateTime"}
	}
	state, ok := snap.Data["state"].(map[string]any)
	if !ok {
		state = map[string]any{}
	}
	return &core.Session{
		ID:             snap.ID,
		AppName:        appName,
		UserID:         userID,
		State:          state,
		LastUpdateTime: updateTime,
	}, nil
}

// storeErr folds docstore transport failures into the core taxonomy while
// passing everything else through unchanged.
func storeErr(err error) error {
	if errors.Is(err, docstore.ErrUnavailable) {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return err
}
