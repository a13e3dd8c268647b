package testutil

import (
	"time"

	"github.com/hupe1980/deckmesh/core"
)

// SessionBuilder helps construct session snapshots with fluent chaining for
// tests. Example:
//
//	sess := NewSessionBuilder("sess-1").Scope("deck-app", "u1").State("k", "v").Events(ev1, ev2).Build()
type SessionBuilder struct {
	id      string
	appName string
	userID  string
	state   map[string]any
	events  []core.Event
	updated time.Time
}

// NewSessionBuilder creates a new builder for a session with the given id.
// Use chainable methods (Scope, State, Event, Events) then call Build.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, state: map[string]any{}, updated: time.Now().UTC()}
}

// Scope sets the owning (app name, user id) pair (chainable).
func (b *SessionBuilder) Scope(appName, userID string) *SessionBuilder {
	b.appName = appName
	b.userID = userID
	return b
}

// State sets or overwrites a state key/value pair on the resulting session (chainable).
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Updated sets the last-update time (chainable).
func (b *SessionBuilder) Updated(ts time.Time) *SessionBuilder {
	b.updated = ts
	return b
}

// Event appends a single event to the session history (chainable).
func (b *SessionBuilder) Event(ev core.Event) *SessionBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events appends multiple events to the session history (chainable).
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns a *core.Session with pre-populated scope, state and events.
func (b *SessionBuilder) Build() *core.Session {
	return &core.Session{
		ID:             b.id,
		AppName:        b.appName,
		UserID:         b.userID,
		State:          b.state,
		Events:         append([]core.Event{}, b.events...),
		LastUpdateTime: b.updated,
	}
}
