package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseJoin(t *testing.T) {
	data := []byte(`{"type":"join","identity":"0xabc123","channel":"dev"}`)

	msgType, msg, err := ParseClientMessage(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if msgType != TypeJoin {
		t.Errorf("expected type %q, got %q", TypeJoin, msgType)
	}
	join, ok := msg.(JoinMsg)
	if !ok {
		t.Fatalf("expected JoinMsg, got %T", msg)
	}
	if join.Identity != "0xabc123" || join.Channel != "dev" {
		t.Errorf("unexpected payload: %+v", join)
	}
}

func TestParseChatMessage(t *testing.T) {
	data := []byte(`{"type":"message","channel":"general","content":"/ai find me a cofounder"}`)

	msgType, msg, err := ParseClientMessage(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if msgType != TypeMessage {
		t.Errorf("expected type %q, got %q", TypeMessage, msgType)
	}
	m := msg.(ChatMsg)
	if m.Content != "/ai find me a cofounder" {
		t.Errorf("content mangled: %q", m.Content)
	}
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, _, err := ParseClientMessage([]byte(`{"type":"bogus"}`))
	if err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestParseRejectsMissingType(t *testing.T) {
	_, _, err := ParseClientMessage([]byte(`{"identity":"0xabc"}`))
	if err == nil {
		t.Fatal("expected error for missing type")
	}
	if !strings.Contains(err.Error(), "type") {
		t.Errorf("error should mention the type field: %v", err)
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, _, err := ParseClientMessage([]byte(`{"type":`))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestNewServerMessageInjectsType(t *testing.T) {
	data, err := NewServerMessage(TypePresenceChanged, PresenceChangedMsg{
		Online: []string{"alice", "bob"},
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["type"] != TypePresenceChanged {
		t.Errorf("expected injected type, got %v", decoded["type"])
	}
	online, _ := decoded["online"].([]interface{})
	if len(online) != 2 {
		t.Errorf("payload lost: %v", decoded)
	}
}
