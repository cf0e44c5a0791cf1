package ws

import (
	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/service"
)

// MessageRegister confirms the connection's identity in the presence
// directory. The hub entry is installed at upgrade time; this event lets the
// client receive an explicit acknowledgment.
type MessageRegister struct {
	UserID uint `json:"user_id"`
}

func (msg *MessageRegister) GetType() string {
	return "register"
}

func (msg *MessageRegister) Process(ctx *MessageContext) error {
	if msg.UserID == 0 {
		return SendError(ctx.Conn, "validation_failed", "user_id is required", "")
	}
	if msg.UserID != ctx.UserID {
		return SendError(ctx.Conn, "validation_failed", "user_id does not match connection identity", "")
	}
	return ctx.Conn.WriteJSON(map[string]interface{}{
		"type":    "registered",
		"user_id": msg.UserID,
	})
}

// MessageSend is an inbound direct send_message event.
type MessageSend struct {
	ReceiverID  uint    `json:"receiver_id"`
	Message     *string `json:"message"`
	MessageType string  `json:"message_type"`
	MediaURL    *string `json:"media_url"`
	ClientID    string  `json:"client_id"`
}

func (msg *MessageSend) GetType() string {
	return "send_message"
}

func (msg *MessageSend) Process(ctx *MessageContext) error {
	created, err := ctx.MessageService.SendDirect(ctx.UserID, service.SendMessageInput{
		ReceiverID:  msg.ReceiverID,
		Message:     msg.Message,
		MediaURL:    msg.MediaURL,
		MessageType: models.MessageType(msg.MessageType),
		ClientID:    msg.ClientID,
	})
	if err != nil {
		return SendError(ctx.Conn, ErrorCodeFor(err), err.Error(), "")
	}

	// Push to the recipient if connected; offline recipients are queued and
	// the failure never propagates to the sender.
	_ = ctx.Hub.SendToUserWithID(created.ReceiverID, created.ID, map[string]interface{}{
		"type":    "receive_message",
		"message": created.ToResponse(),
	})

	// Always echo the ack to the sender, whatever the recipient's state.
	if err := ctx.Conn.WriteJSON(map[string]interface{}{
		"type":    "message_sent",
		"message": created.ToResponse(),
	}); err != nil {
		return err
	}

	update := models.StatusUpdate{
		ID:         created.ID,
		Status:     created.Status,
		SenderID:   created.SenderID,
		ReceiverID: created.ReceiverID,
	}
	statusEvent := map[string]interface{}{
		"type":     "status_update",
		"statuses": []models.StatusUpdate{update},
	}
	_ = ctx.Conn.WriteJSON(statusEvent)
	_ = ctx.Hub.SendToUser(created.ReceiverID, statusEvent)
	return nil
}

// MessageGetChatHistory opens the chat window with a peer: it marks the
// viewer as actively viewing that conversation, auto-reads everything the
// peer sent, and returns the assembled history.
type MessageGetChatHistory struct {
	WithUserID uint `json:"with_user_id"`
}

func (msg *MessageGetChatHistory) GetType() string {
	return "get_chat_history"
}

func (msg *MessageGetChatHistory) Process(ctx *MessageContext) error {
	if msg.WithUserID == 0 {
		return SendError(ctx.Conn, "validation_failed", "with_user_id is required", "")
	}

	ctx.Hub.SetActiveChat(ctx.UserID, msg.WithUserID)

	updates, err := ctx.MessageService.MarkConversationRead(ctx.UserID, msg.WithUserID)
	if err != nil {
		return SendError(ctx.Conn, ErrorCodeFor(err), err.Error(), "")
	}

	history, err := ctx.MessageService.ChatHistory(ctx.UserID, msg.WithUserID)
	if err != nil {
		return SendError(ctx.Conn, ErrorCodeFor(err), err.Error(), "")
	}

	if err := ctx.Conn.WriteJSON(map[string]interface{}{
		"type":         "chat_history",
		"with_user_id": msg.WithUserID,
		"messages":     history,
	}); err != nil {
		return err
	}

	if len(updates) > 0 {
		statusEvent := map[string]interface{}{
			"type":     "status_update",
			"statuses": updates,
		}
		_ = ctx.Conn.WriteJSON(statusEvent)
		_ = ctx.Hub.SendToUser(msg.WithUserID, statusEvent)
	}
	return nil
}

// MessageChatClose signals the viewer closed the chat window with a peer.
type MessageChatClose struct {
	WithUserID uint `json:"with_user_id"`
}

func (msg *MessageChatClose) GetType() string {
	return "chat_close"
}

func (msg *MessageChatClose) Process(ctx *MessageContext) error {
	ctx.Hub.ClearActiveChat(ctx.UserID, msg.WithUserID)
	return nil
}

// MessageGetInbox returns the viewer's conversation list.
type MessageGetInbox struct {
}

func (msg *MessageGetInbox) GetType() string {
	return "get_inbox"
}

func (msg *MessageGetInbox) Process(ctx *MessageContext) error {
	inbox, err := ctx.MessageService.Inbox(ctx.UserID)
	if err != nil {
		return SendError(ctx.Conn, ErrorCodeFor(err), err.Error(), "")
	}
	return ctx.Conn.WriteJSON(map[string]interface{}{
		"type":          "inbox_list",
		"conversations": inbox,
	})
}

// MessageMarkDelivered is a client's bulk delivery receipt.
type MessageMarkDelivered struct {
	MessageIDs []uint `json:"message_ids"`
}

func (msg *MessageMarkDelivered) GetType() string {
	return "mark_delivered"
}

func (msg *MessageMarkDelivered) Process(ctx *MessageContext) error {
	count, err := ctx.MessageService.MarkDelivered(ctx.UserID, msg.MessageIDs)
	if err != nil {
		return SendError(ctx.Conn, ErrorCodeFor(err), err.Error(), "")
	}
	return notifyStatuses(ctx, msg.MessageIDs, count)
}

// MessageMarkRead is a client's bulk read receipt.
type MessageMarkRead struct {
	MessageIDs []uint `json:"message_ids"`
}

func (msg *MessageMarkRead) GetType() string {
	return "mark_read"
}

func (msg *MessageMarkRead) Process(ctx *MessageContext) error {
	count, err := ctx.MessageService.MarkRead(ctx.UserID, msg.MessageIDs)
	if err != nil {
		return SendError(ctx.Conn, ErrorCodeFor(err), err.Error(), "")
	}
	return notifyStatuses(ctx, msg.MessageIDs, count)
}

// notifyStatuses pushes the post-mark statuses to the receipt issuer and to
// each message's sender. A zero affected count still acks with an empty list.
func notifyStatuses(ctx *MessageContext, messageIDs []uint, affected int64) error {
	updates := ctx.MessageService.StatusUpdatesFor(ctx.UserID, messageIDs)
	statusEvent := map[string]interface{}{
		"type":     "status_update",
		"affected": affected,
		"statuses": updates,
	}
	if err := ctx.Conn.WriteJSON(statusEvent); err != nil {
		return err
	}
	notified := map[uint]bool{}
	for _, u := range updates {
		if !notified[u.SenderID] {
			notified[u.SenderID] = true
			_ = ctx.Hub.SendToUser(u.SenderID, statusEvent)
		}
	}
	return nil
}
