package service

import (
	"errors"
	"strings"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/cache"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/repository"
	"github.com/Majid-s-Team/celebrate-now-chat/internal/validation"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageService is the direct-message side of the fan-out router plus the
// direct history assembler.
type MessageService struct {
	messageRepo  repository.MessageRepositoryInterface
	blockRepo    repository.BlockRepositoryInterface
	userRepo     repository.UserRepositoryInterface
	delivery     *DeliveryService
	messageCache *cache.MessageCache
}

// NewMessageService wires the direct-message service. messageCache may be
// nil; caching then degrades to straight repository reads.
func NewMessageService(
	messageRepo repository.MessageRepositoryInterface,
	blockRepo repository.BlockRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	delivery *DeliveryService,
	messageCache *cache.MessageCache,
) *MessageService {
	return &MessageService{
		messageRepo:  messageRepo,
		blockRepo:    blockRepo,
		userRepo:     userRepo,
		delivery:     delivery,
		messageCache: messageCache,
	}
}

type SendMessageInput struct {
	ReceiverID  uint               `json:"receiver_id"`
	Message     *string            `json:"message"`
	MediaURL    *string            `json:"media_url"`
	MessageType models.MessageType `json:"message_type"`
	ClientID    string             `json:"client_id"`
}

// SendDirect validates, applies the block policy and persists the message
// with its presence-derived initial status.
//
// The block check is deliberately asymmetric: a receiver who blocked the
// sender rejects the send outright, while a sender who blocked the receiver
// still sends — the message is merely hidden from the sender's own inbox
// until they unblock.
func (s *MessageService) SendDirect(senderID uint, input SendMessageInput) (*models.Message, error) {
	if senderID == 0 {
		return nil, invalid("sender_id", "required")
	}
	if input.ReceiverID == 0 {
		return nil, invalid("receiver_id", "required")
	}
	if senderID == input.ReceiverID {
		return nil, invalid("receiver_id", "cannot message yourself")
	}

	body := normalizeBody(input.Message)
	if body == nil && emptyRef(input.MediaURL) {
		return nil, invalid("message", "message or media_url is required")
	}
	if input.MessageType == "" {
		input.MessageType = models.TextMessage
	}
	if !models.ValidDirectType(input.MessageType) {
		return nil, invalid("message_type", "unknown type")
	}
	if body != nil {
		trimmed := validation.TrimAndLimit(*body, validation.MaxMessageLength())
		body = &trimmed
	}

	clientID := input.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	} else if existing, err := s.messageRepo.FindByClientID(clientID, senderID); err == nil {
		// Retransmission of an already persisted message; don't write a
		// duplicate row.
		return existing, nil
	}

	blocked, err := s.blockRepo.IsBlocked(input.ReceiverID, senderID)
	if err != nil {
		return nil, transient("block check", err)
	}
	if blocked {
		return nil, ErrBlocked
	}

	message := &models.Message{
		ClientID:    clientID,
		SenderID:    senderID,
		ReceiverID:  input.ReceiverID,
		Message:     body,
		MediaURL:    input.MediaURL,
		MessageType: input.MessageType,
		Status:      s.delivery.InitialDirectStatus(senderID, input.ReceiverID),
	}

	if err := s.messageRepo.Create(message); err != nil {
		return nil, transient("create message", err)
	}
	_ = s.messageCache.InvalidateConversation(senderID, input.ReceiverID)

	created, err := s.messageRepo.FindByID(message.ID)
	if err != nil {
		return message, nil
	}
	return created, nil
}

// DirectHistoryEntry annotates one message with read-time snapshots of the
// viewer's block state and the peer's account state.
type DirectHistoryEntry struct {
	models.MessageResponse
	BlockedByViewer bool `json:"blocked_by_viewer"`
	PeerDeleted     bool `json:"peer_deleted"`
}

// ChatHistory returns the full ordered conversation between viewer and peer.
// The message list is served cache-aside; the block and deleted-account
// flags are evaluated on every read, never cached.
func (s *MessageService) ChatHistory(viewerID, peerID uint) ([]DirectHistoryEntry, error) {
	messages, ok := s.messageCache.GetConversation(viewerID, peerID)
	if !ok {
		var err error
		messages, err = s.messageRepo.FindConversation(viewerID, peerID, 0)
		if err != nil {
			return nil, transient("fetch conversation", err)
		}
		_ = s.messageCache.SetConversation(viewerID, peerID, messages)
	}

	blockedByViewer, err := s.blockRepo.IsBlocked(viewerID, peerID)
	if err != nil {
		return nil, transient("block check", err)
	}
	peerDeleted, err := s.userRepo.IsDeleted(peerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, transient("peer lookup", err)
	}

	entries := make([]DirectHistoryEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, DirectHistoryEntry{
			MessageResponse: m.ToResponse(),
			BlockedByViewer: blockedByViewer,
			PeerDeleted:     peerDeleted,
		})
	}
	return entries, nil
}

// MarkDelivered advances the receiver's sent rows. Unknown or foreign ids
// are a zero-count no-op, never an error.
func (s *MessageService) MarkDelivered(receiverID uint, messageIDs []uint) (int64, error) {
	return s.messageRepo.MarkDelivered(receiverID, messageIDs)
}

func (s *MessageService) MarkRead(receiverID uint, messageIDs []uint) (int64, error) {
	return s.messageRepo.MarkRead(receiverID, messageIDs)
}

// MarkConversationRead marks everything the peer sent to the viewer as read
// and returns status updates for the messages that transitioned, so the
// caller can notify both sockets.
func (s *MessageService) MarkConversationRead(viewerID, peerID uint) ([]models.StatusUpdate, error) {
	ids, err := s.messageRepo.MarkConversationRead(viewerID, peerID)
	if err != nil {
		return nil, transient("mark conversation read", err)
	}
	if len(ids) > 0 {
		_ = s.messageCache.InvalidateConversation(viewerID, peerID)
	}
	updates := make([]models.StatusUpdate, 0, len(ids))
	for _, id := range ids {
		updates = append(updates, models.StatusUpdate{
			ID:         id,
			Status:     models.StatusRead,
			SenderID:   peerID,
			ReceiverID: viewerID,
		})
	}
	return updates, nil
}

// StatusUpdatesFor builds status_update payloads for the given ids, limited
// to messages the receiver actually owns. Unknown and foreign ids are
// silently skipped.
func (s *MessageService) StatusUpdatesFor(receiverID uint, messageIDs []uint) []models.StatusUpdate {
	updates := make([]models.StatusUpdate, 0, len(messageIDs))
	for _, id := range messageIDs {
		m, err := s.messageRepo.FindByID(id)
		if err != nil || m.ReceiverID != receiverID {
			continue
		}
		updates = append(updates, models.StatusUpdate{
			ID:         m.ID,
			Status:     m.Status,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
		})
	}
	return updates
}

func (s *MessageService) UnseenMessages(receiverID uint) ([]models.Message, error) {
	return s.messageRepo.FindUnseenForUser(receiverID)
}

// UnseenFrom narrows the unseen listing to one sender.
func (s *MessageService) UnseenFrom(receiverID, senderID uint) ([]models.Message, error) {
	return s.messageRepo.FindUnseenFrom(receiverID, senderID)
}

func (s *MessageService) Inbox(userID uint) ([]repository.InboxRow, error) {
	return s.messageRepo.ListInbox(userID)
}

// Block creates or reactivates a directional block. Idempotent.
func (s *MessageService) Block(blockerID, blockedID uint) error {
	if blockerID == 0 || blockedID == 0 {
		return invalid("user_id", "required")
	}
	if blockerID == blockedID {
		return invalid("user_id", "cannot block yourself")
	}
	return s.blockRepo.Block(blockerID, blockedID)
}

func (s *MessageService) Unblock(blockerID, blockedID uint) error {
	return s.blockRepo.Unblock(blockerID, blockedID)
}

func normalizeBody(body *string) *string {
	if body == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*body)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func emptyRef(ref *string) bool {
	return ref == nil || strings.TrimSpace(*ref) == ""
}
