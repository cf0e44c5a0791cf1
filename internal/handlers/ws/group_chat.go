package ws

import (
	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/service"
)

// MessageGroupSend is an inbound group send event.
type MessageGroupSend struct {
	GroupID     uint    `json:"group_id"`
	Message     *string `json:"message"`
	MessageType string  `json:"message_type"`
	MediaURL    *string `json:"media_url"`
	ClientID    string  `json:"client_id"`
}

func (msg *MessageGroupSend) GetType() string {
	return "send_group_message"
}

func (msg *MessageGroupSend) Process(ctx *MessageContext) error {
	result, err := ctx.GroupService.SendGroup(msg.GroupID, ctx.UserID, service.SendGroupMessageInput{
		Message:     msg.Message,
		MediaURL:    msg.MediaURL,
		MessageType: models.MessageType(msg.MessageType),
		ClientID:    msg.ClientID,
	})
	if err != nil {
		return SendError(ctx.Conn, ErrorCodeFor(err), err.Error(), "")
	}

	// Push to every connected recipient whose row is not hidden by the
	// send-time block snapshot. Offline members get queued payloads.
	payload := map[string]interface{}{
		"type":    "receive_group_message",
		"message": result.Message.ToResponse(),
	}
	for _, row := range result.Statuses {
		if row.ReceiverID == ctx.UserID || row.HiddenForReceiver {
			continue
		}
		_ = ctx.Hub.SendToUserWithID(row.ReceiverID, result.Message.ID, payload)
	}

	return ctx.Conn.WriteJSON(map[string]interface{}{
		"type":        "group_message_sent",
		"message":     result.Message.ToResponse(),
		"club_status": result.ClubStatus,
	})
}

// MessageGetGroupHistory returns the viewer's interval-filtered group history.
type MessageGetGroupHistory struct {
	GroupID uint `json:"group_id"`
}

func (msg *MessageGetGroupHistory) GetType() string {
	return "get_group_history"
}

func (msg *MessageGetGroupHistory) Process(ctx *MessageContext) error {
	if msg.GroupID == 0 {
		return SendError(ctx.Conn, "validation_failed", "group_id is required", "")
	}
	history, err := ctx.GroupService.GroupHistory(msg.GroupID, ctx.UserID)
	if err != nil {
		return SendError(ctx.Conn, ErrorCodeFor(err), err.Error(), "")
	}
	return ctx.Conn.WriteJSON(map[string]interface{}{
		"type":     "group_history",
		"group_id": msg.GroupID,
		"messages": history,
	})
}

// MessageGroupMarkRead is a bulk read receipt for group messages.
type MessageGroupMarkRead struct {
	GroupID    uint   `json:"group_id"`
	MessageIDs []uint `json:"message_ids"`
}

func (msg *MessageGroupMarkRead) GetType() string {
	return "group_mark_read"
}

func (msg *MessageGroupMarkRead) Process(ctx *MessageContext) error {
	count, err := ctx.GroupService.MarkRead(msg.GroupID, ctx.UserID, msg.MessageIDs)
	if err != nil {
		return SendError(ctx.Conn, ErrorCodeFor(err), err.Error(), "")
	}
	return notifyGroupStatuses(ctx, msg.GroupID, msg.MessageIDs, count)
}

// MessageGroupMarkDelivered is a bulk delivery receipt for group messages.
type MessageGroupMarkDelivered struct {
	GroupID    uint   `json:"group_id"`
	MessageIDs []uint `json:"message_ids"`
}

func (msg *MessageGroupMarkDelivered) GetType() string {
	return "group_mark_delivered"
}

func (msg *MessageGroupMarkDelivered) Process(ctx *MessageContext) error {
	count, err := ctx.GroupService.MarkDelivered(msg.GroupID, ctx.UserID, msg.MessageIDs)
	if err != nil {
		return SendError(ctx.Conn, ErrorCodeFor(err), err.Error(), "")
	}
	return notifyGroupStatuses(ctx, msg.GroupID, msg.MessageIDs, count)
}

// notifyGroupStatuses acks the receipt issuer and pushes recomputed club
// statuses to each affected message's sender.
func notifyGroupStatuses(ctx *MessageContext, groupID uint, messageIDs []uint, affected int64) error {
	updates, err := ctx.GroupService.ClubStatuses(groupID, messageIDs)
	if err != nil {
		return SendError(ctx.Conn, ErrorCodeFor(err), err.Error(), "")
	}
	statusEvent := map[string]interface{}{
		"type":     "group_status_update",
		"group_id": groupID,
		"affected": affected,
		"statuses": updates,
	}
	if err := ctx.Conn.WriteJSON(statusEvent); err != nil {
		return err
	}
	notified := map[uint]bool{}
	for _, u := range updates {
		if u.SenderID != ctx.UserID && !notified[u.SenderID] {
			notified[u.SenderID] = true
			_ = ctx.Hub.SendToUser(u.SenderID, statusEvent)
		}
	}
	return nil
}
