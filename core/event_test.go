package core

import (
	"errors"
	"testing"
)

func TestEvent_ConstructorsAndMethods(t *testing.T) {
	e := NewEvent("inv-123", "authorA")
	if e.Author != "authorA" || e.InvocationID != "inv-123" || e.ID == "" || e.Timestamp.IsZero() {
		t.Fatalf("NewEvent did not initialize fields correctly: %+v", e)
	}

	msg := NewMessageEvent("agent1", "hello world")
	if msg.Content == nil || msg.Content.Role != "assistant" || msg.Text() != "hello world" {
		t.Fatalf("NewMessageEvent malformed: %+v", msg)
	}

	user := NewUserMessageEvent("inv-1", "hi")
	if user.Content == nil || user.Content.Role != "user" || user.InvocationID != "inv-1" {
		t.Fatalf("NewUserMessageEvent malformed: %+v", user)
	}

	fCall := NewFunctionCallEvent("agent2", "lookup_trends", `{"q":"linen"}`)
	calls := fCall.GetFunctionCalls()
	if len(calls) != 1 || calls[0].Name != "lookup_trends" || calls[0].Arguments != `{"q":"linen"}` {
		t.Fatalf("GetFunctionCalls extraction failed: %+v", calls)
	}

	fRespOK := NewFunctionResponseEvent("agent2", "call-1", "lookup_trends", 42, nil)
	resps := fRespOK.GetFunctionResponses()
	if len(resps) != 1 || resps[0].Response.(int) != 42 || resps[0].Error != "" {
		t.Fatalf("Function response success extraction failed: %+v", resps)
	}

	fRespErr := NewFunctionResponseEvent("agent2", "call-2", "lookup_trends", nil, errors.New("boom"))
	if fRespErr.GetFunctionResponses()[0].Error != "boom" {
		t.Fatalf("Expected error message in function response")
	}
}

func TestEvent_Text(t *testing.T) {
	e := NewEvent("inv", "agent")
	if e.Text() != "" {
		t.Fatal("expected empty text for nil content")
	}

	e.Content = &Content{Role: "assistant", Parts: []Part{
		TextPart{Text: "Navy "},
		NewImagePart([]byte{1}, "image/png"),
		TextPart{Text: "blazer"},
	}}
	if got := e.Text(); got != "Navy blazer" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestEvent_IsFinalResponseLogic(t *testing.T) {
	e := NewEvent("inv", "authorA")
	if !e.IsFinalResponse() {
		t.Error("Expected basic event to be final")
	}

	partial := true
	e2 := NewEvent("inv", "agent")
	e2.Partial = &partial
	if e2.IsFinalResponse() {
		t.Error("Partial event should not be final")
	}

	if NewFunctionCallEvent("agent", "f", "").IsFinalResponse() {
		t.Error("Event with function call should not be final")
	}

	if NewFunctionResponseEvent("agent", "call-3", "f", "ok", nil).IsFinalResponse() {
		t.Error("Event with function response should not be final")
	}

	skip := true
	e5 := NewEvent("inv", "agent")
	e5.Partial = &partial
	e5.Actions.SkipSummarization = &skip
	if !e5.IsFinalResponse() {
		t.Error("SkipSummarization should force final")
	}

	e6 := NewEvent("inv", "agent")
	e6.LongRunningToolIDs = []string{"tool1"}
	if !e6.IsFinalResponse() {
		t.Error("Long running tool should mark final")
	}

	errEv := NewErrorEvent("inv", "MODEL_ERROR", errors.New("INVALID_ARGUMENT"))
	if errEv.IsFinalResponse() {
		t.Error("Error events must never be final")
	}
	if errEv.Err() == nil || errEv.Err().Error() != "INVALID_ARGUMENT" || *errEv.ErrorCode != "MODEL_ERROR" {
		t.Errorf("unexpected error event: %+v", errEv)
	}
}

func TestEvent_IDUniqueness(t *testing.T) {
	if NewID() == NewID() {
		t.Error("Expected unique IDs")
	}
}

func TestParts_DiscriminatedUnion(t *testing.T) {
	parts := []Part{
		TextPart{Text: "hello"},
		DataPart{Data: map[string]any{"k": "v"}},
		FilePart{File: File{URI: "https://example.com/photo.jpg"}},
		FunctionCallPart{FunctionCall: FunctionCall{Name: "f"}},
		FunctionResponsePart{FunctionResponse: FunctionResponse{Name: "f"}},
	}
	for _, p := range parts {
		switch pt := p.(type) {
		case TextPart, DataPart, FilePart, FunctionCallPart, FunctionResponsePart:
		default:
			t.Fatalf("Unexpected part type: %T (%v)", pt, pt)
		}
	}

	if (File{URI: "x"}).IsInline() || !NewImagePart([]byte("x"), "image/jpeg").File.IsInline() {
		t.Error("IsInline mismatch")
	}
}

func TestNewUserContent(t *testing.T) {
	c := NewUserContent("analyze", NewImagePart([]byte("img"), "image/jpeg"))
	if c.Role != "user" || len(c.Parts) != 2 {
		t.Fatalf("unexpected content: %+v", c)
	}
	if _, ok := c.Parts[1].(FilePart); !ok {
		t.Fatalf("expected file part, got %T", c.Parts[1])
	}
}
