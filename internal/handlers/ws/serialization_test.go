package ws

import (
	"errors"
	"testing"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/service"
)

func TestSerializeDeserialize(t *testing.T) {
	body := "hello"
	original := &MessageSend{
		ReceiverID:  2,
		Message:     &body,
		MessageType: "text",
		ClientID:    "client-123",
	}

	data, err := Serialize(original)
	if err != nil {
		t.Fatalf("Serialize error = %v", err)
	}

	decoded, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize error = %v", err)
	}

	send, ok := decoded.(*MessageSend)
	if !ok {
		t.Fatalf("Deserialize returned %T, want *MessageSend", decoded)
	}
	if send.ReceiverID != 2 || *send.Message != "hello" || send.ClientID != "client-123" {
		t.Errorf("round trip lost fields: %+v", send)
	}
}

func TestDeserializeUnknownType(t *testing.T) {
	if _, err := Deserialize([]byte(`{"type":"launch_missiles","payload":{}}`)); err == nil {
		t.Error("Deserialize accepted an unknown event type")
	}
	if _, err := Deserialize([]byte(`not json`)); err == nil {
		t.Error("Deserialize accepted malformed JSON")
	}
}

func TestTypeRegistryCoversEvents(t *testing.T) {
	expected := []string{
		"register",
		"send_message",
		"get_chat_history",
		"chat_close",
		"get_inbox",
		"mark_delivered",
		"mark_read",
		"send_group_message",
		"get_group_history",
		"group_mark_read",
		"group_mark_delivered",
		"ping",
		"pong",
	}

	registry := GetTypeRegistry()
	for _, eventType := range expected {
		if _, ok := registry[eventType]; !ok {
			t.Errorf("event type %q not registered", eventType)
		}
	}
}

func TestErrorCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"Blocked", service.ErrBlocked, "blocked"},
		{"Not a member", service.ErrNotMember, "not_a_member"},
		{"Not found", service.ErrNotFound, "not_found"},
		{"Validation", &service.ValidationError{Field: "message", Reason: "required"}, "validation_failed"},
		{"Anything else", errors.New("db down"), "processing_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCodeFor(tt.err); got != tt.code {
				t.Errorf("ErrorCodeFor(%v) = %q, want %q", tt.err, got, tt.code)
			}
		})
	}
}
