package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMessageContent_PlainText(t *testing.T) {
	var msg Message
	if err := json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Content.String() != "hello" || msg.Content.Parts != nil {
		t.Errorf("unexpected content: %+v", msg.Content)
	}

	out, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"role":"user","content":"hello"}` {
		t.Errorf("plain text must re-serialize as a bare string, got %s", out)
	}
}

func TestMessageContent_Parts(t *testing.T) {
	raw := `{"role":"user","content":[{"type":"text","text":"what is this? "},{"type":"image_url","image_url":{"url":"https://x/1.png"}},{"type":"text","text":"thanks"}]}`

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatal(err)
	}
	if len(msg.Content.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(msg.Content.Parts))
	}
	if msg.Content.Parts[1].ImageURL == nil || msg.Content.Parts[1].ImageURL.URL != "https://x/1.png" {
		t.Errorf("image part not preserved: %+v", msg.Content.Parts[1])
	}
	if msg.Content.String() != "what is this? thanks" {
		t.Errorf("flattened text = %q", msg.Content.String())
	}

	out, err := json.Marshal(msg.Content)
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != '[' {
		t.Errorf("part content must re-serialize as a list, got %s", out)
	}
}

func TestMessageContent_RejectsOtherShapes(t *testing.T) {
	var c MessageContent
	if err := json.Unmarshal([]byte(`42`), &c); err == nil {
		t.Error("expected error for numeric content")
	}
}

func TestStreamChunk_NullFinishReason(t *testing.T) {
	chunk := StreamChunk{
		ID:      "c1",
		Object:  "chat.completion.chunk",
		Created: 1,
		Model:   "m",
		Choices: []StreamChoice{{Index: 0, Delta: Delta{Content: "x"}}},
	}

	out, err := json.Marshal(chunk)
	if err != nil {
		t.Fatal(err)
	}
	// Mid-stream chunks carry an explicit null, matching the upstream wire
	// shape clients expect.
	if want := `"finish_reason":null`; !strings.Contains(string(out), want) {
		t.Errorf("expected %s in %s", want, out)
	}
}
