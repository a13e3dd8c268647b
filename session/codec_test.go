package session

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/hupe1980/deckmesh/core"
	"github.com/hupe1980/deckmesh/internal/testutil"
)

func TestCodec_RoundTripFullEvent(t *testing.T) {
	ev := testutil.NewEventBuilder().
		Author("web_research_analyst").
		Invocation("inv-42").
		AssistantText("analysis complete").
		AddPart(core.DataPart{Data: map[string]any{"score": "high"}}).
		FunctionCall("fetch_financials", `{"ticker":"ACME"}`).
		FunctionResponse("call-1", "fetch_financials", map[string]any{"revenue": "12M"}, nil).
		SkipSummarization().
		Escalate().
		StateDelta(map[string]any{"stage": "research"}).
		ArtifactDelta(map[string]int{"report.pdf": 2}).
		Transfer("report_generation_agent").
		AuthConfigs(map[string]any{"warehouse": map[string]any{"scope": "read"}}).
		Partial(false).
		TurnComplete(true).
		Interrupted(false).
		Branch("main").
		LongRunning("tool-9", "tool-10").
		Build()

	decoded, err := DecodeEvent(ev.ID, EncodeEvent(ev))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.ID != ev.ID || decoded.Author != ev.Author || decoded.InvocationID != ev.InvocationID {
		t.Fatalf("identity fields mismatch: %+v", decoded)
	}
	if !decoded.Timestamp.Equal(ev.Timestamp) {
		t.Fatalf("timestamp mismatch: want %v got %v", ev.Timestamp, decoded.Timestamp)
	}
	if !reflect.DeepEqual(decoded.Actions, ev.Actions) {
		t.Fatalf("actions mismatch:\nwant %+v\ngot  %+v", ev.Actions, decoded.Actions)
	}
	if decoded.Partial == nil || *decoded.Partial || decoded.TurnComplete == nil || !*decoded.TurnComplete {
		t.Fatalf("streaming flags mismatch: %+v", decoded)
	}
	if decoded.Interrupted == nil || *decoded.Interrupted {
		t.Fatalf("interrupted mismatch: %+v", decoded)
	}
	if decoded.Branch == nil || *decoded.Branch != "main" {
		t.Fatalf("branch mismatch: %+v", decoded.Branch)
	}
	if !reflect.DeepEqual(decoded.LongRunningToolIDs, []string{"tool-9", "tool-10"}) {
		t.Fatalf("long running ids mismatch: %v", decoded.LongRunningToolIDs)
	}
	if decoded.Content == nil || decoded.Content.Role != "assistant" {
		t.Fatalf("content mismatch: %+v", decoded.Content)
	}
	if !reflect.DeepEqual(decoded.Content.Parts, ev.Content.Parts) {
		t.Fatalf("parts mismatch:\nwant %+v\ngot  %+v", ev.Content.Parts, decoded.Content.Parts)
	}
}

func TestCodec_RoundTripTimestampPrecision(t *testing.T) {
	ts := time.Unix(1756300000, 123456789).UTC()
	ev := testutil.NewEventBuilder().Invocation("inv-1").Timestamp(ts).Build()

	decoded, err := DecodeEvent(ev.ID, EncodeEvent(ev))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Timestamp.Equal(ts) {
		t.Fatalf("expected %v, got %v", ts, decoded.Timestamp)
	}
	if decoded.UnixSeconds() != ev.UnixSeconds() {
		t.Fatalf("fractional seconds drifted: %v vs %v", decoded.UnixSeconds(), ev.UnixSeconds())
	}
}

func TestCodec_RoundTripBlobAndError(t *testing.T) {
	ev := testutil.NewEventBuilder().
		Author("pitch_deck_extractor").
		Invocation("inv-7").
		Blob("image/png", []byte{0x89, 0x50, 0x4e, 0x47}).
		Error("EXTRACTION_TIMEOUT", "deck parsing exceeded deadline").
		Build()

	decoded, err := DecodeEvent(ev.ID, EncodeEvent(ev))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	blob, ok := decoded.Content.Parts[0].(core.BlobPart)
	if !ok {
		t.Fatalf("expected BlobPart, got %T", decoded.Content.Parts[0])
	}
	if blob.MIMEType != "image/png" || !reflect.DeepEqual(blob.Data, []byte{0x89, 0x50, 0x4e, 0x47}) {
		t.Fatalf("blob mismatch: %+v", blob)
	}
	if decoded.ErrorCode == nil || *decoded.ErrorCode != "EXTRACTION_TIMEOUT" {
		t.Fatalf("error code mismatch: %+v", decoded.ErrorCode)
	}
	if decoded.ErrorMessage == nil || *decoded.ErrorMessage != "deck parsing exceeded deadline" {
		t.Fatalf("error message mismatch: %+v", decoded.ErrorMessage)
	}
}

func TestCodec_AbsentActionsAndMetadataStayAbsent(t *testing.T) {
	ev := testutil.NewEventBuilder().Invocation("inv-1").AssistantText("hi").Build()
	doc := EncodeEvent(ev)

	if _, present := doc["actions"]; present {
		t.Fatal("zero-valued actions must be omitted, not written as null")
	}
	if _, present := doc["event_metadata"]; present {
		t.Fatal("empty metadata block must be omitted")
	}

	decoded, err := DecodeEvent(ev.ID, doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Actions.IsZero() {
		t.Fatalf("expected zero actions, got %+v", decoded.Actions)
	}
	// Absent metadata block decodes to absent fields, not recorded-false.
	if decoded.Partial != nil || decoded.TurnComplete != nil || decoded.Interrupted != nil || decoded.Branch != nil {
		t.Fatalf("metadata fields should be absent: %+v", decoded)
	}
}

func TestCodec_RedactsUserInlinePDF(t *testing.T) {
	pdf := []byte("%PDF-1.7 large payload")
	ev := testutil.NewEventBuilder().
		Author("user").
		Invocation("inv-1").
		UserText("here is our deck").
		Build()
	// Put the PDF first so the placeholder position is observable.
	ev.Content.Parts = append([]core.Part{core.BlobPart{MIMEType: "application/pdf", Data: pdf}}, ev.Content.Parts...)

	doc := EncodeEvent(ev)
	parts := doc["content"].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	first := parts[0].(map[string]any)
	if first["text"] != pdfPlaceholder {
		t.Fatalf("expected placeholder in PDF position, got %v", first)
	}
	if _, hasBlob := first["inline_data"]; hasBlob {
		t.Fatal("binary payload must not be persisted")
	}
	second := parts[1].(map[string]any)
	if second["text"] != "here is our deck" {
		t.Fatalf("sibling part must be untouched, got %v", second)
	}
}

func TestCodec_RedactionScope(t *testing.T) {
	// Non-user-authored PDFs pass through.
	agentEv := testutil.NewEventBuilder().
		Author("report_generation_agent").
		Invocation("inv-1").
		Blob("application/pdf", []byte("%PDF")).
		Build()
	doc := EncodeEvent(agentEv)
	part := doc["content"].(map[string]any)["parts"].([]any)[0].(map[string]any)
	if _, hasBlob := part["inline_data"]; !hasBlob {
		t.Fatal("agent-authored PDF must not be redacted")
	}

	// User-authored non-PDF blobs pass through.
	imgEv := testutil.NewEventBuilder().
		Author("user").
		Invocation("inv-1").
		Blob("image/png", []byte{1, 2, 3}).
		Build()
	imgEv.Content.Role = "user"
	doc = EncodeEvent(imgEv)
	part = doc["content"].(map[string]any)["parts"].([]any)[0].(map[string]any)
	if _, hasBlob := part["inline_data"]; !hasBlob {
		t.Fatal("user-authored non-PDF blob must not be redacted")
	}
}

func TestCodec_DecodeMissingRequiredFields(t *testing.T) {
	base := func() map[string]any {
		return EncodeEvent(testutil.NewEventBuilder().Invocation("inv-1").Build())
	}
	for _, field := range []string{"author", "invocation_id", "timestamp"} {
		doc := base()
		delete(doc, field)
		_, err := DecodeEvent("ev-1", doc)
		var malformed *core.MalformedRecordError
		if !errors.As(err, &malformed) {
			t.Fatalf("missing %s: expected MalformedRecordError, got %v", field, err)
		}
		if malformed.Field != field {
			t.Fatalf("expected field %q in error, got %q", field, malformed.Field)
		}
	}
}

func TestCodec_DecodeCoercesStoreNumerics(t *testing.T) {
	// Stores may hand back float64 or int for what was written as int64.
	doc := map[string]any{
		"author":        "user",
		"invocation_id": "inv-1",
		"timestamp":     map[string]any{"seconds": float64(1756300000), "nanos": 500000000},
	}
	decoded, err := DecodeEvent("ev-1", doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := time.Unix(1756300000, 500000000).UTC()
	if !decoded.Timestamp.Equal(want) {
		t.Fatalf("expected %v, got %v", want, decoded.Timestamp)
	}
}
