package session

import (
	"time"

	"github.com/hupe1980/deckmesh/core"
)

// pdfPlaceholder replaces user-supplied inline PDF payloads in persisted
// history. Only the record that an attachment occurred is kept; the bytes
// themselves never enter the event log.
const pdfPlaceholder = "[PDF content omitted from history]"

// EncodeEvent converts an Event into the generic document value persisted in
// the event sub-collection. It is a total function: every valid Event
// encodes. The store-assigned ID is carried by the document key, not the
// document body.
//
// Shape notes:
//   - The timestamp is split into integer seconds and a nanosecond
//     remainder so no precision is lost across storage boundaries.
//   - Zero-valued Actions are omitted entirely rather than written as null.
//   - Streaming / turn metadata is grouped under an "event_metadata" block
//     that is omitted when nothing was recorded, so decode can distinguish
//     "never recorded" from "recorded false".
//   - A user-authored BlobPart carrying "application/pdf" is replaced
//     positionally by a text placeholder. This is a hard contract: it caps
//     log size and avoids re-serializing attachments on every read.
func EncodeEvent(ev core.Event) map[string]any {
	doc := map[string]any{
		"author":        ev.Author,
		"invocation_id": ev.InvocationID,
		"timestamp": map[string]any{
			"seconds": ev.Timestamp.Unix(),
			"nanos":   int64(ev.Timestamp.Nanosecond()),
		},
	}

	if md := encodeMetadata(ev); md != nil {
		doc["event_metadata"] = md
	}
	if !ev.Actions.IsZero() {
		doc["actions"] = encodeActions(ev.Actions)
	}
	if ev.Content != nil {
		doc["content"] = encodeContent(ev.Author, ev.Content)
	}
	if ev.ErrorCode != nil {
		doc["error_code"] = *ev.ErrorCode
	}
	if ev.ErrorMessage != nil {
		doc["error_message"] = *ev.ErrorMessage
	}
	return doc
}

func encodeMetadata(ev core.Event) map[string]any {
	md := map[string]any{}
	if ev.Partial != nil {
		md["partial"] = *ev.Partial
	}
	if ev.TurnComplete != nil {
		md["turn_complete"] = *ev.TurnComplete
	}
	if ev.Interrupted != nil {
		md["interrupted"] = *ev.Interrupted
	}
	if ev.Branch != nil {
		md["branch"] = *ev.Branch
	}
	if len(ev.LongRunningToolIDs) > 0 {
		ids := make([]any, len(ev.LongRunningToolIDs))
		for i, id := range ev.LongRunningToolIDs {
			ids[i] = id
		}
		md["long_running_tool_ids"] = ids
	}
	if len(md) == 0 {
		return nil
	}
	return md
}

func encodeActions(a core.EventActions) map[string]any {
	actions := map[string]any{}
	if a.SkipSummarization != nil {
		actions["skip_summarization"] = *a.SkipSummarization
	}
	if a.StateDelta != nil {
		actions["state_delta"] = a.StateDelta
	}
	if a.ArtifactDelta != nil {
		delta := make(map[string]any, len(a.ArtifactDelta))
		for k, v := range a.ArtifactDelta {
			delta[k] = int64(v)
		}
		actions["artifact_delta"] = delta
	}
	if a.TransferToAgent != nil {
		actions["transfer_agent"] = *a.TransferToAgent
	}
	if a.Escalate != nil {
		actions["escalate"] = *a.Escalate
	}
	if a.RequestedAuthConfigs != nil {
		actions["requested_auth_configs"] = a.RequestedAuthConfigs
	}
	return actions
}

func encodeContent(author string, c *core.Content) map[string]any {
	parts := make([]any, 0, len(c.Parts))
	for _, p := range c.Parts {
		parts = append(parts, encodePart(author, p))
	}
	content := map[string]any{"parts": parts}
	if c.Role != "" {
		content["role"] = c.Role
	}
	return content
}

func encodePart(author string, p core.Part) map[string]any {
	switch part := p.(type) {
	case core.TextPart:
		out := map[string]any{"text": part.Text}
		if part.Metadata != nil {
			out["metadata"] = part.Metadata
		}
		return out
	case core.BlobPart:
		if author == "user" && part.MIMEType == "application/pdf" {
			return map[string]any{"text": pdfPlaceholder}
		}
		blob := map[string]any{"mime_type": part.MIMEType, "data": part.Data}
		if part.Name != "" {
			blob["name"] = part.Name
		}
		out := map[string]any{"inline_data": blob}
		if part.Metadata != nil {
			out["metadata"] = part.Metadata
		}
		return out
	case core.DataPart:
		out := map[string]any{"data": part.Data}
		if part.Metadata != nil {
			out["metadata"] = part.Metadata
		}
		return out
	case core.FunctionCallPart:
		call := map[string]any{"name": part.FunctionCall.Name}
		if part.FunctionCall.ID != "" {
			call["id"] = part.FunctionCall.ID
		}
		if part.FunctionCall.Arguments != "" {
			call["arguments"] = part.FunctionCall.Arguments
		}
		out := map[string]any{"function_call": call}
		if part.Metadata != nil {
			out["metadata"] = part.Metadata
		}
		return out
	case core.FunctionResponsePart:
		resp := map[string]any{"name": part.FunctionResponse.Name}
		if part.FunctionResponse.ID != "" {
			resp["id"] = part.FunctionResponse.ID
		}
		if part.FunctionResponse.Response != nil {
			resp["response"] = part.FunctionResponse.Response
		}
		if part.FunctionResponse.Error != "" {
			resp["error"] = part.FunctionResponse.Error
		}
		out := map[string]any{"function_response": resp}
		if part.Metadata != nil {
			out["metadata"] = part.Metadata
		}
		return out
	default:
		// Closed part set; unreachable for values built through core.
		return map[string]any{}
	}
}

// DecodeEvent reconstructs an Event from a stored document. The document key
// becomes the event ID. It fails with a MalformedRecordError when a required
// field (invocation_id, author, timestamp) is absent or has the wrong shape.
func DecodeEvent(id string, data map[string]any) (core.Event, error) {
	author, ok := data["author"].(string)
	if !ok {
		return core.Event{}, &core.MalformedRecordError{Field: "author"}
	}
	invocationID, ok := data["invocation_id"].(string)
	if !ok {
		return core.Event{}, &core.MalformedRecordError{Field: "invocation_id"}
	}
	tsMap, ok := data["timestamp"].(map[string]any)
	if !ok {
		return core.Event{}, &core.MalformedRecordError{Field: "timestamp"}
	}
	seconds, ok := asInt64(tsMap["seconds"])
	if !ok {
		return core.Event{}, &core.MalformedRecordError{Field: "timestamp.seconds"}
	}
	nanos, _ := asInt64(tsMap["nanos"])

	ev := core.Event{
		ID:           id,
		InvocationID: invocationID,
		Author:       author,
		Timestamp:    time.Unix(seconds, nanos).UTC(),
	}

	if actions, ok := data["actions"].(map[string]any); ok {
		ev.Actions = decodeActions(actions)
	}
	if md, ok := data["event_metadata"].(map[string]any); ok {
		decodeMetadata(&ev, md)
	}
	if content, ok := data["content"].(map[string]any); ok {
		c, err := decodeContent(content)
		if err != nil {
			return core.Event{}, err
		}
		ev.Content = c
	}
	if code, ok := data["error_code"].(string); ok {
		ev.ErrorCode = &code
	}
	if msg, ok := data["error_message"].(string); ok {
		ev.ErrorMessage = &msg
	}
	return ev, nil
}

func decodeActions(data map[string]any) core.EventActions {
	var a core.EventActions
	if v, ok := data["skip_summarization"].(bool); ok {
		a.SkipSummarization = &v
	}
	if v, ok := data["state_delta"].(map[string]any); ok {
		a.StateDelta = v
	}
	if v, ok := data["artifact_delta"].(map[string]any); ok {
		delta := make(map[string]int, len(v))
		for k, raw := range v {
			if n, ok := asInt64(raw); ok {
				delta[k] = int(n)
			}
		}
		a.ArtifactDelta = delta
	}
	if v, ok := data["transfer_agent"].(string); ok {
		a.TransferToAgent = &v
	}
	if v, ok := data["escalate"].(bool); ok {
		a.Escalate = &v
	}
	if v, ok := data["requested_auth_configs"].(map[string]any); ok {
		a.RequestedAuthConfigs = v
	}
	return a
}

func decodeMetadata(ev *core.Event, md map[string]any) {
	if v, ok := md["partial"].(bool); ok {
		ev.Partial = &v
	}
	if v, ok := md["turn_complete"].(bool); ok {
		ev.TurnComplete = &v
	}
	if v, ok := md["interrupted"].(bool); ok {
		ev.Interrupted = &v
	}
	if v, ok := md["branch"].(string); ok {
		ev.Branch = &v
	}
	if ids := asStringSlice(md["long_running_tool_ids"]); len(ids) > 0 {
		ev.LongRunningToolIDs = ids
	}
}

func decodeContent(data map[string]any) (*core.Content, error) {
	c := &core.Content{}
	if role, ok := data["role"].(string); ok {
		c.Role = role
	}
	rawParts, ok := data["parts"].([]any)
	if !ok {
		return nil, &core.MalformedRecordError{Field: "content.parts"}
	}
	c.Parts = make([]core.Part, 0, len(rawParts))
	for _, raw := range rawParts {
		partMap, ok := raw.(map[string]any)
		if !ok {
			return nil, &core.MalformedRecordError{Field: "content.parts"}
		}
		part, err := decodePart(partMap)
		if err != nil {
			return nil, err
		}
		c.Parts = append(c.Parts, part)
	}
	return c, nil
}

func decodePart(data map[string]any) (core.Part, error) {
	metadata, _ := data["metadata"].(map[string]any)
	if text, ok := data["text"].(string); ok {
		return core.TextPart{Text: text, Metadata: metadata}, nil
	}
	if blob, ok := data["inline_data"].(map[string]any); ok {
		mime, _ := blob["mime_type"].(string)
		raw, _ := blob["data"].([]byte)
		name, _ := blob["name"].(string)
		return core.BlobPart{MIMEType: mime, Data: raw, Name: name, Metadata: metadata}, nil
	}
	if payload, ok := data["data"].(map[string]any); ok {
		return core.DataPart{Data: payload, Metadata: metadata}, nil
	}
	if call, ok := data["function_call"].(map[string]any); ok {
		fc := core.FunctionCall{}
		fc.ID, _ = call["id"].(string)
		fc.Name, _ = call["name"].(string)
		fc.Arguments, _ = call["arguments"].(string)
		return core.FunctionCallPart{FunctionCall: fc, Metadata: metadata}, nil
	}
	if resp, ok := data["function_response"].(map[string]any); ok {
		fr := core.FunctionResponse{}
		fr.ID, _ = resp["id"].(string)
		fr.Name, _ = resp["name"].(string)
		fr.Response = resp["response"]
		fr.Error, _ = resp["error"].(string)
		return core.FunctionResponsePart{FunctionResponse: fr, Metadata: metadata}, nil
	}
	return nil, &core.MalformedRecordError{Field: "content.parts"}
}

// asInt64 coerces the numeric types a document store may hand back.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func asStringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		out := make([]string, len(vals))
		copy(out, vals)
		return out
	case []any:
		out := make([]string, 0, len(vals))
		for _, e := range vals {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
