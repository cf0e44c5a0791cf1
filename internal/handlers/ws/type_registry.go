package ws

import (
	"reflect"
)

var typeRegistry = map[string]reflect.Type{}

func init() {
	// Register all event types
	RegisterType(&MessageRegister{})
	RegisterType(&MessageSend{})
	RegisterType(&MessageGetChatHistory{})
	RegisterType(&MessageChatClose{})
	RegisterType(&MessageGetInbox{})
	RegisterType(&MessageMarkDelivered{})
	RegisterType(&MessageMarkRead{})
	RegisterType(&MessageGroupSend{})
	RegisterType(&MessageGetGroupHistory{})
	RegisterType(&MessageGroupMarkRead{})
	RegisterType(&MessageGroupMarkDelivered{})
	RegisterType(&MessagePing{})
	RegisterType(&MessagePong{})
}

func RegisterType(msg Message) {
	typeRegistry[msg.GetType()] = reflect.TypeOf(msg).Elem()
}

// GetTypeRegistry returns the type registry for testing
func GetTypeRegistry() map[string]reflect.Type {
	return typeRegistry
}
