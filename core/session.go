package core

import (
	"context"
	"sort"
	"time"
)

// Session is a point-in-time snapshot of a durable conversation context. It is
// materialized by a SessionStore read; mutating the snapshot has no effect on
// the persisted document. State changes go through ApplyDelta and history
// growth through AppendEvent.
//
// Contract:
//   - ID is store-assigned at creation and immutable
//   - (AppName, UserID) is the ownership scope recorded at creation; every
//     read verifies it against the stored document, not the caller's claim
//   - Events are sorted ascending by timestamp after retrieval because the
//     underlying store makes no ordering guarantee
//   - LastUpdateTime is non-decreasing, refreshed by the store on every
//     append and state mutation
type Session struct {
	ID             string         `json:"id"`
	AppName        string         `json:"app_name"`
	UserID         string         `json:"user_id"`
	State          map[string]any `json:"state"`
	Events         []Event        `json:"events"`
	LastUpdateTime time.Time      `json:"last_update_time"`
}

// SortEventsByTimestamp orders the snapshot's events ascending by timestamp.
// Stores call this after an unordered fetch; stable sort preserves fetch
// order for equal timestamps.
func (s *Session) SortEventsByTimestamp() {
	sort.SliceStable(s.Events, func(i, j int) bool {
		return s.Events[i].Timestamp.Before(s.Events[j].Timestamp)
	})
}

// TrimEvents applies the retrieval options to an already-sorted event slice:
// a positive NumRecentEvents keeps only the most recent N, otherwise a
// non-zero After keeps only events strictly newer than it.
func (s *Session) TrimEvents(cfg *GetConfig) {
	if cfg == nil {
		return
	}
	if cfg.NumRecentEvents > 0 {
		if n := len(s.Events); n > cfg.NumRecentEvents {
			s.Events = s.Events[n-cfg.NumRecentEvents:]
		}
		return
	}
	if !cfg.After.IsZero() {
		filtered := make([]Event, 0, len(s.Events))
		for _, ev := range s.Events {
			if ev.Timestamp.After(cfg.After) {
				filtered = append(filtered, ev)
			}
		}
		s.Events = filtered
	}
}

// GetConfig narrows the event history returned by SessionStore.Get.
// NumRecentEvents takes precedence over After when both are set.
type GetConfig struct {
	NumRecentEvents int       // Keep only the most recent N events (0 = all)
	After           time.Time // Keep only events strictly after this instant
}

// CreateRequest carries the inputs for SessionStore.Create. SessionID must be
// empty: identifiers are always store-assigned, preventing collision and
// spoofing. State seeds the session's keyed state and may be nil.
type CreateRequest struct {
	AppName   string
	UserID    string
	SessionID string
	State     map[string]any
}

// SessionStore persists sessions, their evolving keyed state and append-only
// event history. Implementations are backed by blocking I/O clients; callers
// that must not stall use the bridge package to dispatch these operations
// onto a bounded worker pool.
//
// Lookup operations (Get, List, Delete) treat a missing or foreign-owned
// session as an empty result to keep them idempotent and avoid leaking
// existence. AppendEvent and ApplyDelta against a missing session return
// ErrNotFound.
type SessionStore interface {
	// Create writes a new session document with store-assigned id and
	// server-assigned timestamps. A non-empty req.SessionID is rejected
	// with ErrUserProvidedID before anything is written.
	Create(ctx context.Context, req CreateRequest) (*Session, error)

	// Get fetches a session snapshot including its decoded, time-sorted
	// event history, optionally trimmed per cfg. It returns (nil, nil)
	// when the session does not exist or its stored scope does not match
	// (appName, userID).
	Get(ctx context.Context, appName, userID, sessionID string, cfg *GetConfig) (*Session, error)

	// List returns every session scoped to (appName, userID) without
	// loading events. Order is store-native, not guaranteed chronological.
	List(ctx context.Context, appName, userID string) ([]*Session, error)

	// Delete removes the session document and every owned event in one
	// atomic batch. Missing session or ownership mismatch is a no-op.
	Delete(ctx context.Context, appName, userID, sessionID string) error

	// AppendEvent atomically writes the encoded event as a new child
	// document and refreshes the parent session's LastUpdateTime in the
	// same commit. It returns the event with its store-assigned ID
	// populated. Commit or encoding failures surface as AppendFailedError.
	AppendEvent(ctx context.Context, sessionID string, ev Event) (Event, error)

	// ApplyDelta merges the given keys into the session's state map using
	// field-path semantics: only the named keys change, siblings are
	// untouched. LastUpdateTime is refreshed.
	ApplyDelta(ctx context.Context, sessionID string, delta map[string]any) error
}
