package handlers

import (
	"strconv"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/cache"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/handlers/ws"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/httpx"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/service"
	"github.com/gofiber/fiber/v2"
)

type GroupHandler struct {
	groupService *service.GroupService
	messageCache *cache.MessageCache
	hub          *ws.Hub
}

func NewGroupHandler(groupService *service.GroupService, messageCache *cache.MessageCache, hub *ws.Hub) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
		messageCache: messageCache,
		hub:          hub,
	}
}

func groupIDParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, err
	}
	return uint(id), nil
}

func (h *GroupHandler) CreateGroup(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	group, err := h.groupService.CreateGroup(input.Name, input.Description, userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

func (h *GroupHandler) AddMember(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := groupIDParam(c)
	if err != nil {
		return httpx.BadRequest(c, "invalid_group", "Invalid group id")
	}

	var input struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&input); err != nil || input.UserID == 0 {
		return httpx.BadRequest(c, "invalid_request_body", "user_id is required")
	}

	if err := h.groupService.AddMember(groupID, userID, input.UserID); err != nil {
		return serviceError(c, err)
	}
	h.messageCache.InvalidateGroupConversation(groupID)
	h.notifyMembers(groupID, "member_added", input.UserID)
	return c.JSON(fiber.Map{"added": true})
}

func (h *GroupHandler) RemoveMember(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := groupIDParam(c)
	if err != nil {
		return httpx.BadRequest(c, "invalid_group", "Invalid group id")
	}
	memberID, err := strconv.ParseUint(c.Params("user_id"), 10, 32)
	if err != nil || memberID == 0 {
		return httpx.BadRequest(c, "invalid_user", "Invalid user_id")
	}

	if err := h.groupService.RemoveMember(groupID, userID, uint(memberID)); err != nil {
		return serviceError(c, err)
	}
	h.messageCache.InvalidateGroupConversation(groupID)
	h.notifyMembers(groupID, "member_removed", uint(memberID))
	return c.JSON(fiber.Map{"removed": true})
}

func (h *GroupHandler) LeaveGroup(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := groupIDParam(c)
	if err != nil {
		return httpx.BadRequest(c, "invalid_group", "Invalid group id")
	}

	if err := h.groupService.LeaveGroup(groupID, userID); err != nil {
		return serviceError(c, err)
	}
	h.messageCache.InvalidateGroupConversation(groupID)
	h.notifyMembers(groupID, "member_left", userID)
	return c.JSON(fiber.Map{"left": true})
}

// notifyMembers pushes a membership-change event to every online member
// still active in the group.
func (h *GroupHandler) notifyMembers(groupID uint, change string, subjectID uint) {
	memberIDs, err := h.groupService.ActiveMemberIDs(groupID)
	if err != nil {
		return
	}
	h.hub.BroadcastToUsers(memberIDs, fiber.Map{
		"type":     "group_member_update",
		"group_id": groupID,
		"change":   change,
		"user_id":  subjectID,
	})
}

func (h *GroupHandler) GetMembers(c *fiber.Ctx) error {
	groupID, err := groupIDParam(c)
	if err != nil {
		return httpx.BadRequest(c, "invalid_group", "Invalid group id")
	}
	members, err := h.groupService.GetMembers(groupID)
	if err != nil {
		return httpx.Internal(c, "fetch_members_failed")
	}
	return c.JSON(fiber.Map{"members": members})
}

func (h *GroupHandler) SendGroupMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := groupIDParam(c)
	if err != nil {
		return httpx.BadRequest(c, "invalid_group", "Invalid group id")
	}

	var input service.SendGroupMessageInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	result, err := h.groupService.SendGroup(groupID, userID, input)
	if err != nil {
		return serviceError(c, err)
	}
	h.messageCache.InvalidateGroupConversation(groupID)

	payload := fiber.Map{
		"type":    "receive_group_message",
		"message": result.Message.ToResponse(),
	}
	for _, row := range result.Statuses {
		if row.ReceiverID == userID || row.HiddenForReceiver {
			continue
		}
		_ = h.hub.SendToUserWithID(row.ReceiverID, result.Message.ID, payload)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":     result.Message.ToResponse(),
		"club_status": result.ClubStatus,
	})
}

func (h *GroupHandler) GetGroupHistory(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := groupIDParam(c)
	if err != nil {
		return httpx.BadRequest(c, "invalid_group", "Invalid group id")
	}

	history, err := h.groupService.GroupHistory(groupID, userID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"messages": history, "count": len(history)})
}

func (h *GroupHandler) MarkGroupRead(c *fiber.Ctx) error {
	return h.mark(c, h.groupService.MarkRead)
}

func (h *GroupHandler) MarkGroupDelivered(c *fiber.Ctx) error {
	return h.mark(c, h.groupService.MarkDelivered)
}

func (h *GroupHandler) mark(c *fiber.Ctx, op func(uint, uint, []uint) (int64, error)) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	groupID, err := groupIDParam(c)
	if err != nil {
		return httpx.BadRequest(c, "invalid_group", "Invalid group id")
	}

	var input struct {
		MessageIDs []uint `json:"message_ids"`
	}
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	affected, err := op(groupID, userID, input.MessageIDs)
	if err != nil {
		return httpx.Internal(c, "mark_failed")
	}

	updates, err := h.groupService.ClubStatuses(groupID, input.MessageIDs)
	if err == nil {
		statusEvent := fiber.Map{"type": "group_status_update", "group_id": groupID, "statuses": updates}
		notified := map[uint]bool{}
		for _, u := range updates {
			if u.SenderID != userID && !notified[u.SenderID] {
				notified[u.SenderID] = true
				_ = h.hub.SendToUser(u.SenderID, statusEvent)
			}
		}
	}

	return c.JSON(fiber.Map{"affected": affected})
}

func (h *GroupHandler) GetMyGroups(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	summaries, err := h.groupService.ListGroups(userID)
	if err != nil {
		return httpx.Internal(c, "fetch_groups_failed")
	}
	return c.JSON(fiber.Map{"groups": summaries})
}
