package core

import (
	"time"

	"github.com/google/uuid"
)

// EventActions encodes side‑effects or orchestration signals attached to an Event.
// All fields are optional pointers / maps so absence can be distinguished from zero
// values. The agent runtime interprets these after persistence.
type EventActions struct {
	SkipSummarization    *bool          `json:"skip_summarization,omitempty"`
	StateDelta           map[string]any `json:"state_delta,omitempty"`
	ArtifactDelta        map[string]int `json:"artifact_delta,omitempty"`
	TransferToAgent      *string        `json:"transfer_to_agent,omitempty"`
	Escalate             *bool          `json:"escalate,omitempty"`
	RequestedAuthConfigs map[string]any `json:"requested_auth_configs,omitempty"`
}

// IsZero reports whether no action field is populated. Zero-valued actions
// are omitted entirely from persisted records.
func (a EventActions) IsZero() bool {
	return a.SkipSummarization == nil &&
		a.StateDelta == nil &&
		a.ArtifactDelta == nil &&
		a.TransferToAgent == nil &&
		a.Escalate == nil &&
		a.RequestedAuthConfigs == nil
}

// Event is one immutable record within a session's history. After it has been
// appended it must be treated as read-only. It captures:
//
//   - Correlation (ID, InvocationID, Author)
//   - Conversational content (optional role-based Parts)
//   - Side-effect directives (Actions)
//   - Streaming / turn metadata (Partial, TurnComplete, Interrupted, Branch,
//     LongRunningToolIDs)
//   - Error annotation (ErrorCode, ErrorMessage)
//   - High precision UTC timestamp
//
// Content may be nil for control or error-only events. The ID field is
// assigned by the store at append time; producer-set IDs are overwritten.
type Event struct {
	ID                 string       `json:"id"`
	InvocationID       string       `json:"invocation_id"`
	Author             string       `json:"author"`
	Actions            EventActions `json:"actions"`
	LongRunningToolIDs []string     `json:"long_running_tool_ids,omitempty"`
	Branch             *string      `json:"branch,omitempty"`
	Timestamp          time.Time    `json:"timestamp"`
	Content            *Content     `json:"content,omitempty"`
	Partial            *bool        `json:"partial,omitempty"`
	TurnComplete       *bool        `json:"turn_complete,omitempty"`
	Interrupted        *bool        `json:"interrupted,omitempty"`
	ErrorCode          *string      `json:"error_code,omitempty"`
	ErrorMessage       *string      `json:"error_message,omitempty"`
}

// NewEvent creates a bare event authored by 'author' bound to an invocation.
// Prefer helper constructors for common semantic categories.
func NewEvent(invocationID, author string) Event {
	return Event{
		ID:           NewID(),
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Now().UTC(),
		Actions:      EventActions{},
	}
}

// NewMessageEvent constructs an assistant-style message event with a single
// text part. Author can be an agent name or system identifier.
func NewMessageEvent(author, message string) Event {
	e := NewEvent("", author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserMessageEvent convenience wrapper for a user-authored text message.
func NewUserMessageEvent(invocationID, message string) Event {
	e := NewEvent(invocationID, "user")
	e.Content = &Content{Role: "user", Parts: []Part{TextPart{Text: message}}}
	return e
}

// NewUserBlobEvent creates a user-authored event carrying an inline binary
// attachment (e.g. an uploaded pitch deck) alongside an optional caption.
func NewUserBlobEvent(invocationID, mimeType string, data []byte, caption string) Event {
	e := NewEvent(invocationID, "user")
	parts := []Part{BlobPart{MIMEType: mimeType, Data: data}}
	if caption != "" {
		parts = append(parts, TextPart{Text: caption})
	}
	e.Content = &Content{Role: "user", Parts: parts}
	return e
}

// NewErrorEvent records a failure attributed to the given author. The event
// carries no content, only the error annotation.
func NewErrorEvent(invocationID, author, code, message string) Event {
	e := NewEvent(invocationID, author)
	e.ErrorCode = &code
	e.ErrorMessage = &message
	return e
}

// NewID generates a new unique identifier usable for events and invocations.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether this event represents a streaming / incomplete
// fragment that will be followed by additional events composing the final
// turn.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
// Useful for metrics & numeric serialization paths.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
