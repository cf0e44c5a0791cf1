package handlers

import (
	"strconv"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/cache"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/handlers/ws"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/httpx"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/repository"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/service"
	"github.com/gofiber/fiber/v2"
)

type MessageHandler struct {
	messageService *service.MessageService
	messageCache   *cache.MessageCache
	userCache      *cache.UserCache
	hub            *ws.Hub
}

func NewMessageHandler(messageService *service.MessageService, messageCache *cache.MessageCache, userCache *cache.UserCache, hub *ws.Hub) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		messageCache:   messageCache,
		userCache:      userCache,
		hub:            hub,
	}
}

func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case service.IsValidation(err):
		return httpx.BadRequest(c, "validation_failed", err.Error())
	case service.IsAuthorization(err):
		return httpx.Forbidden(c, ws.ErrorCodeFor(err), err.Error())
	default:
		return httpx.Internal(c, "internal_error")
	}
}

func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.SendMessageInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	message, err := h.messageService.SendDirect(userID, input)
	if err != nil {
		return serviceError(c, err)
	}

	h.messageCache.InvalidateInbox(userID)
	h.messageCache.InvalidateInbox(message.ReceiverID)

	// Push to the recipient socket; offline recipients get queued.
	_ = h.hub.SendToUserWithID(message.ReceiverID, message.ID, fiber.Map{
		"type":    "receive_message",
		"message": message.ToResponse(),
	})

	return c.Status(fiber.StatusCreated).JSON(message.ToResponse())
}

func (h *MessageHandler) GetChatHistory(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	peerID, err := strconv.ParseUint(c.Query("with_user_id"), 10, 32)
	if err != nil || peerID == 0 {
		return httpx.BadRequest(c, "missing_peer", "with_user_id is required")
	}

	history, err := h.messageService.ChatHistory(userID, uint(peerID))
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages": history,
		"count":    len(history),
	})
}

func (h *MessageHandler) GetUnseen(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var messages []models.Message
	if fromStr := c.Query("from_user_id"); fromStr != "" {
		fromID, parseErr := strconv.ParseUint(fromStr, 10, 32)
		if parseErr != nil || fromID == 0 {
			return httpx.BadRequest(c, "invalid_user", "Invalid from_user_id")
		}
		messages, err = h.messageService.UnseenFrom(userID, uint(fromID))
	} else {
		messages, err = h.messageService.UnseenMessages(userID)
	}
	if err != nil {
		return httpx.Internal(c, "fetch_unseen_failed")
	}

	responses := make([]models.MessageResponse, 0, len(messages))
	for _, m := range messages {
		responses = append(responses, m.ToResponse())
	}
	return c.JSON(fiber.Map{"messages": responses, "count": len(responses)})
}

func (h *MessageHandler) GetInbox(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	if cached, ok := h.messageCache.GetInbox(userID); ok {
		h.annotatePeerPresence(cached)
		return c.JSON(fiber.Map{"conversations": cached, "cached": true})
	}

	inbox, err := h.messageService.Inbox(userID)
	if err != nil {
		return httpx.Internal(c, "fetch_inbox_failed")
	}
	_ = h.messageCache.SetInbox(userID, inbox)
	h.annotatePeerPresence(inbox)

	return c.JSON(fiber.Map{"conversations": inbox})
}

// annotatePeerPresence stamps each row with the peer's live presence, taken
// from the cross-instance Redis set with the local hub as fallback.
func (h *MessageHandler) annotatePeerPresence(rows []repository.InboxRow) {
	for i := range rows {
		rows[i].PeerOnline = h.userCache.IsUserOnline(rows[i].PeerID) || h.hub.IsOnline(rows[i].PeerID)
	}
}

type markInput struct {
	MessageIDs []uint `json:"message_ids"`
}

// MarkRead is the bulk read receipt. Unknown or foreign ids no-op with a
// zero affected count; this is not an error.
func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	return h.mark(c, h.messageService.MarkRead)
}

func (h *MessageHandler) MarkDelivered(c *fiber.Ctx) error {
	return h.mark(c, h.messageService.MarkDelivered)
}

func (h *MessageHandler) mark(c *fiber.Ctx, op func(uint, []uint) (int64, error)) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input markInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	affected, err := op(userID, input.MessageIDs)
	if err != nil {
		return httpx.Internal(c, "mark_failed")
	}

	h.messageCache.InvalidateInbox(userID)

	updates := h.messageService.StatusUpdatesFor(userID, input.MessageIDs)
	statusEvent := fiber.Map{"type": "status_update", "statuses": updates}
	notified := map[uint]bool{}
	for _, u := range updates {
		if !notified[u.SenderID] {
			notified[u.SenderID] = true
			_ = h.hub.SendToUser(u.SenderID, statusEvent)
		}
	}

	return c.JSON(fiber.Map{"affected": affected, "statuses": updates})
}

func (h *MessageHandler) BlockUser(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	if err := h.messageService.Block(userID, input.UserID); err != nil {
		return serviceError(c, err)
	}
	h.messageCache.InvalidateInbox(userID)
	return c.JSON(fiber.Map{"blocked": true})
}

func (h *MessageHandler) UnblockUser(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	blockedID, err := strconv.ParseUint(c.Params("user_id"), 10, 32)
	if err != nil || blockedID == 0 {
		return httpx.BadRequest(c, "invalid_user", "Invalid user_id")
	}

	if err := h.messageService.Unblock(userID, uint(blockedID)); err != nil {
		return httpx.Internal(c, "unblock_failed")
	}
	h.messageCache.InvalidateInbox(userID)
	return c.JSON(fiber.Map{"blocked": false})
}
