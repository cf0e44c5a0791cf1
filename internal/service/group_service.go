package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/repository"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupService is the group side of the fan-out router, the membership
// lifecycle and the interval-aware history assembler.
type GroupService struct {
	groupRepo        repository.GroupRepositoryInterface
	groupMessageRepo repository.GroupMessageRepositoryInterface
	blockRepo        repository.BlockRepositoryInterface
	userRepo         repository.UserRepositoryInterface
	delivery         *DeliveryService
}

func NewGroupService(
	groupRepo repository.GroupRepositoryInterface,
	groupMessageRepo repository.GroupMessageRepositoryInterface,
	blockRepo repository.BlockRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	delivery *DeliveryService,
) *GroupService {
	return &GroupService{
		groupRepo:        groupRepo,
		groupMessageRepo: groupMessageRepo,
		blockRepo:        blockRepo,
		userRepo:         userRepo,
		delivery:         delivery,
	}
}

func (s *GroupService) CreateGroup(name, description string, creatorID uint) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "required")
	}
	if creatorID == 0 {
		return nil, invalid("creator_id", "required")
	}

	group := &models.Group{
		Name:        name,
		Description: description,
		CreatorID:   creatorID,
	}
	if err := s.groupRepo.Create(group); err != nil {
		return nil, transient("create group", err)
	}

	// Creator opens the first membership interval as host.
	if err := s.groupRepo.Join(group.ID, creatorID, models.RoleHost, true); err != nil {
		return nil, transient("add host", err)
	}

	return s.groupRepo.FindByID(group.ID)
}

// AddMember opens a membership interval for userID, authorized by actorID's
// role. A rejoining user starts a fresh interval; past messages stay outside
// it unless can_see_past_messages was granted.
func (s *GroupService) AddMember(groupID, actorID, userID uint) error {
	member, err := s.groupRepo.GetMember(groupID, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return transient("member lookup", err)
	}
	if !member.IsActive || !member.Role.CanManageMembers() {
		return ErrNotMember
	}
	if err := s.groupRepo.Join(groupID, userID, models.RoleMember, false); err != nil {
		return transient("join group", err)
	}
	s.announce(groupID, actorID, fmt.Sprintf("user %d joined the group", userID))
	return nil
}

func (s *GroupService) RemoveMember(groupID, actorID, userID uint) error {
	member, err := s.groupRepo.GetMember(groupID, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return transient("member lookup", err)
	}
	if !member.IsActive || !member.Role.CanManageMembers() {
		return ErrNotMember
	}
	if err := s.groupRepo.Leave(groupID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return transient("leave group", err)
	}
	s.announce(groupID, actorID, fmt.Sprintf("user %d was removed from the group", userID))
	return nil
}

func (s *GroupService) LeaveGroup(groupID, userID uint) error {
	// Announce first so the leaving member's own status row is still created.
	s.announce(groupID, userID, fmt.Sprintf("user %d left the group", userID))
	if err := s.groupRepo.Leave(groupID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return transient("leave group", err)
	}
	return nil
}

// announce posts a best-effort system message for membership changes.
func (s *GroupService) announce(groupID, senderID uint, text string) {
	_, _ = s.sendGroup(groupID, senderID, SendGroupMessageInput{
		Message:     &text,
		MessageType: models.SystemMessage,
	}, true)
}

type SendGroupMessageInput struct {
	Message     *string            `json:"message"`
	MediaURL    *string            `json:"media_url"`
	MessageType models.MessageType `json:"message_type"`
	ClientID    string             `json:"client_id"`
}

// GroupSendResult carries everything the router needs to push: the message,
// its per-recipient rows and the sender-facing club status.
type GroupSendResult struct {
	Message    *models.GroupMessage
	Statuses   []models.GroupMessageStatus
	ClubStatus models.MessageStatus
}

// SendGroup fans a message out to every member active at send time, sender
// included. The whole fan-out is one transaction: all rows or none.
func (s *GroupService) SendGroup(groupID, senderID uint, input SendGroupMessageInput) (*GroupSendResult, error) {
	return s.sendGroup(groupID, senderID, input, false)
}

func (s *GroupService) sendGroup(groupID, senderID uint, input SendGroupMessageInput, system bool) (*GroupSendResult, error) {
	if groupID == 0 {
		return nil, invalid("group_id", "required")
	}
	if senderID == 0 {
		return nil, invalid("sender_id", "required")
	}

	body := normalizeBody(input.Message)
	if body == nil && emptyRef(input.MediaURL) {
		return nil, invalid("message", "message or media_url is required")
	}
	if input.MessageType == "" {
		input.MessageType = models.TextMessage
	}
	if system {
		input.MessageType = models.SystemMessage
	} else if !models.ValidDirectType(input.MessageType) {
		return nil, invalid("message_type", "unknown type")
	}
	if body != nil {
		trimmed := validation.TrimAndLimit(*body, validation.MaxMessageLength())
		body = &trimmed
	}

	active, err := s.groupRepo.IsActiveMember(groupID, senderID)
	if err != nil {
		return nil, transient("membership check", err)
	}
	if !active {
		return nil, ErrNotMember
	}

	memberIDs, err := s.groupRepo.ActiveMemberIDs(groupID)
	if err != nil {
		return nil, transient("member list", err)
	}

	clientID := input.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	} else if existing, err := s.groupMessageRepo.FindByClientID(groupID, clientID); err == nil {
		// Retransmission of an already persisted message; return the
		// original instead of fanning out again.
		return s.resultFor(existing)
	}

	message := &models.GroupMessage{
		ClientID:    clientID,
		GroupID:     groupID,
		SenderID:    senderID,
		Message:     body,
		MediaURL:    input.MediaURL,
		MessageType: input.MessageType,
	}

	statuses := make([]models.GroupMessageStatus, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		hidden := false
		if memberID != senderID {
			// Point-in-time snapshot; never re-evaluated later.
			hidden, err = s.blockRepo.HasActiveBlock(senderID, memberID)
			if err != nil {
				return nil, transient("block check", err)
			}
		}
		statuses = append(statuses, models.GroupMessageStatus{
			GroupID:           groupID,
			SenderID:          senderID,
			ReceiverID:        memberID,
			Status:            s.delivery.InitialGroupStatus(senderID, memberID),
			HiddenForReceiver: hidden,
		})
	}

	if err := s.groupMessageRepo.CreateWithStatuses(message, statuses); err != nil {
		return nil, transient("group fan-out", err)
	}

	return &GroupSendResult{
		Message:    message,
		Statuses:   statuses,
		ClubStatus: models.ClubStatus(statuses, senderID),
	}, nil
}

// resultFor rebuilds a send result from the stored status rows of an
// existing message.
func (s *GroupService) resultFor(message *models.GroupMessage) (*GroupSendResult, error) {
	statuses, err := s.groupMessageRepo.StatusesForMessages([]uint{message.ID})
	if err != nil {
		return nil, transient("fetch statuses", err)
	}
	return &GroupSendResult{
		Message:    message,
		Statuses:   statuses,
		ClubStatus: models.ClubStatus(statuses, message.SenderID),
	}, nil
}

// GroupHistoryEntry is one message annotated for a specific viewer.
type GroupHistoryEntry struct {
	models.GroupMessageResponse
	ClubStatus    models.MessageStatus  `json:"club_status"`
	ViewerStatus  *models.MessageStatus `json:"viewer_status"`
	SenderDeleted bool                  `json:"sender_deleted"`
	IsLeft        bool                  `json:"is_left"`
}

// GroupHistory reconstructs the viewer's visible message list: a message is
// included only when its timestamp falls inside one of the viewer's
// membership intervals (or the member was granted can_see_past_messages),
// and rows hidden by a send-time block snapshot stay hidden.
func (s *GroupService) GroupHistory(groupID, viewerID uint) ([]GroupHistoryEntry, error) {
	intervals, err := s.groupRepo.MembershipIntervals(groupID, viewerID)
	if err != nil {
		return nil, transient("membership intervals", err)
	}
	if len(intervals) == 0 {
		return nil, ErrNotMember
	}

	seeAll := false
	if member, err := s.groupRepo.GetMember(groupID, viewerID); err == nil {
		seeAll = member.IsActive && member.CanSeePastMessages
	}

	messages, err := s.groupMessageRepo.FindGroupMessages(groupID, 0)
	if err != nil {
		return nil, transient("fetch group messages", err)
	}

	ids := make([]uint, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	statuses, err := s.groupMessageRepo.StatusesForMessages(ids)
	if err != nil {
		return nil, transient("fetch statuses", err)
	}
	byMessage := make(map[uint][]models.GroupMessageStatus, len(messages))
	for _, st := range statuses {
		byMessage[st.GroupMessageID] = append(byMessage[st.GroupMessageID], st)
	}

	viewerRows, err := s.groupMessageRepo.StatusesForReceiver(groupID, viewerID, ids)
	if err != nil {
		return nil, transient("fetch viewer statuses", err)
	}
	ownRow := make(map[uint]models.GroupMessageStatus, len(viewerRows))
	for _, st := range viewerRows {
		ownRow[st.GroupMessageID] = st
	}

	deletedSenders := map[uint]bool{}

	entries := make([]GroupHistoryEntry, 0, len(messages))
	for _, m := range messages {
		covered := false
		for i := range intervals {
			if intervals[i].Covers(m.CreatedAt) {
				covered = true
				break
			}
		}
		if !covered && !seeAll {
			continue
		}

		rows := byMessage[m.ID]
		var viewerStatus *models.MessageStatus
		if row, ok := ownRow[m.ID]; ok {
			if row.HiddenForReceiver {
				continue
			}
			if m.SenderID != viewerID {
				st := row.Status
				viewerStatus = &st
			}
		}

		if _, ok := deletedSenders[m.SenderID]; !ok {
			del, err := s.userRepo.IsDeleted(m.SenderID)
			if err != nil {
				del = false
			}
			deletedSenders[m.SenderID] = del
		}

		entries = append(entries, GroupHistoryEntry{
			GroupMessageResponse: m.ToResponse(),
			ClubStatus:           models.ClubStatus(rows, m.SenderID),
			ViewerStatus:         viewerStatus,
			SenderDeleted:        deletedSenders[m.SenderID],
			IsLeft:               !covered,
		})
	}
	return entries, nil
}

// MarkDelivered advances the viewer's own rows; foreign or unknown ids no-op.
func (s *GroupService) MarkDelivered(groupID, receiverID uint, messageIDs []uint) (int64, error) {
	return s.groupMessageRepo.MarkDelivered(groupID, receiverID, messageIDs)
}

func (s *GroupService) MarkRead(groupID, receiverID uint, messageIDs []uint) (int64, error) {
	return s.groupMessageRepo.MarkRead(groupID, receiverID, messageIDs)
}

// GroupStatusUpdate carries the sender-facing club status of one message
// after a recipient advanced their row.
type GroupStatusUpdate struct {
	MessageID  uint                 `json:"id"`
	GroupID    uint                 `json:"group_id"`
	SenderID   uint                 `json:"sender_id"`
	ClubStatus models.MessageStatus `json:"status"`
}

// ClubStatuses recomputes the weakest-link aggregate for each message from
// its current status rows.
func (s *GroupService) ClubStatuses(groupID uint, messageIDs []uint) ([]GroupStatusUpdate, error) {
	statuses, err := s.groupMessageRepo.StatusesForMessages(messageIDs)
	if err != nil {
		return nil, transient("fetch statuses", err)
	}
	byMessage := make(map[uint][]models.GroupMessageStatus)
	for _, st := range statuses {
		if st.GroupID == groupID {
			byMessage[st.GroupMessageID] = append(byMessage[st.GroupMessageID], st)
		}
	}
	updates := make([]GroupStatusUpdate, 0, len(byMessage))
	for _, id := range messageIDs {
		rows, ok := byMessage[id]
		if !ok {
			continue
		}
		updates = append(updates, GroupStatusUpdate{
			MessageID:  id,
			GroupID:    groupID,
			SenderID:   rows[0].SenderID,
			ClubStatus: models.ClubStatus(rows, rows[0].SenderID),
		})
	}
	return updates, nil
}

func (s *GroupService) IsActiveMember(groupID, userID uint) (bool, error) {
	return s.groupRepo.IsActiveMember(groupID, userID)
}

func (s *GroupService) ActiveMemberIDs(groupID uint) ([]uint, error) {
	return s.groupRepo.ActiveMemberIDs(groupID)
}

func (s *GroupService) GetGroup(groupID uint) (*models.Group, error) {
	group, err := s.groupRepo.FindByID(groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return group, nil
}

func (s *GroupService) GetMembers(groupID uint) ([]models.GroupMember, error) {
	return s.groupRepo.GetMembers(groupID)
}

// GroupSummary is one row of the "my groups" listing.
type GroupSummary struct {
	Group       models.Group                 `json:"group"`
	LastMessage *models.GroupMessageResponse `json:"last_message"`
	UnreadCount int64                        `json:"unread_count"`
}

func (s *GroupService) ListGroups(userID uint) ([]GroupSummary, error) {
	groupIDs, err := s.groupRepo.UserGroupIDs(userID)
	if err != nil {
		return nil, transient("list groups", err)
	}

	summaries := make([]GroupSummary, 0, len(groupIDs))
	for _, id := range groupIDs {
		group, err := s.groupRepo.FindByID(id)
		if err != nil {
			continue
		}
		summary := GroupSummary{Group: *group}
		if last, err := s.groupMessageRepo.LastMessage(id); err == nil {
			resp := last.ToResponse()
			summary.LastMessage = &resp
		}
		if unread, err := s.groupMessageRepo.UnreadCount(id, userID); err == nil {
			summary.UnreadCount = unread
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
