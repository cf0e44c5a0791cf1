package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/service"
)

// MessageContext provides all dependencies needed for event processing
type MessageContext struct {
	UserID         uint
	Conn           Socket
	Hub            *Hub
	MessageService *service.MessageService
	GroupService   *service.GroupService
}

// Message interface for all WebSocket event types
type Message interface {
	GetType() string
	Process(ctx *MessageContext) error
}

// SerializedMessage is the wire format wrapper
type SerializedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorResponse is sent when event processing fails
type ErrorResponse struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func ToJson(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func FromJson(jsonBytes []byte, msg Message) error {
	return json.Unmarshal(jsonBytes, msg)
}

func CreateMessage(msgType string, typeRegistry map[string]reflect.Type) (Message, error) {
	msgTypeReflect, ok := typeRegistry[msgType]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %s", msgType)
	}

	instance := reflect.New(msgTypeReflect).Interface()
	return instance.(Message), nil
}

// SendError sends an error response to the client
func SendError(conn Socket, code, message, details string) error {
	errResp := ErrorResponse{
		Type:    "error",
		Error:   message,
		Code:    code,
		Details: details,
	}
	return conn.WriteJSON(errResp)
}

// ErrorCodeFor maps service errors to the codes clients switch on. Blocked
// sends get their own code, distinct from generic failure.
func ErrorCodeFor(err error) string {
	switch {
	case service.IsValidation(err):
		return "validation_failed"
	case errors.Is(err, service.ErrBlocked):
		return "blocked"
	case errors.Is(err, service.ErrNotMember):
		return "not_a_member"
	case errors.Is(err, service.ErrNotFound):
		return "not_found"
	default:
		return "processing_failed"
	}
}
