package repository

import (
	"time"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
)

// UserRepositoryInterface defines the contract for user lookups
type UserRepositoryInterface interface {
	FindByID(id uint) (*models.User, error)
	IsDeleted(id uint) (bool, error)
	UpdateOnlineStatus(userID uint, isOnline bool) error
}

// MessageRepositoryInterface defines the contract for the direct message store
type MessageRepositoryInterface interface {
	Create(message *models.Message) error
	FindByID(id uint) (*models.Message, error)
	FindByClientID(clientID string, senderID uint) (*models.Message, error)
	FindConversation(userID1, userID2 uint, limit int) ([]models.Message, error)
	FindUnseenFrom(receiverID, senderID uint) ([]models.Message, error)
	FindUnseenForUser(receiverID uint) ([]models.Message, error)
	// MarkDelivered and MarkRead only advance status rank and only touch rows
	// owned by receiverID; they report how many rows actually changed.
	MarkDelivered(receiverID uint, messageIDs []uint) (int64, error)
	MarkRead(receiverID uint, messageIDs []uint) (int64, error)
	// MarkConversationRead returns the ids that transitioned so callers can
	// emit status updates for exactly those messages.
	MarkConversationRead(receiverID, senderID uint) ([]uint, error)
	ListInbox(userID uint) ([]InboxRow, error)
}

// BlockRepositoryInterface defines the contract for the block side of the
// membership ledger. Blocks are directional; callers wanting symmetric
// exclusion must check both directions (or use HasActiveBlock).
type BlockRepositoryInterface interface {
	Block(blockerID, blockedID uint) error
	Unblock(blockerID, blockedID uint) error
	IsBlocked(blockerID, blockedID uint) (bool, error)
	HasActiveBlock(userID1, userID2 uint) (bool, error)
}

// GroupRepositoryInterface defines the contract for groups and the
// membership-interval side of the ledger
type GroupRepositoryInterface interface {
	Create(group *models.Group) error
	FindByID(id uint) (*models.Group, error)
	// Join opens a new membership interval and syncs the member cache.
	// Joining while an interval is already open is a no-op.
	Join(groupID, userID uint, role models.GroupRole, canSeePast bool) error
	// Leave closes the open interval and deactivates the member cache row.
	Leave(groupID, userID uint) error
	IsActiveMember(groupID, userID uint) (bool, error)
	ActiveMemberIDs(groupID uint) ([]uint, error)
	GetMember(groupID, userID uint) (*models.GroupMember, error)
	GetMembers(groupID uint) ([]models.GroupMember, error)
	MembershipIntervals(groupID, userID uint) ([]models.GroupMembership, error)
	UserGroupIDs(userID uint) ([]uint, error)
}

// GroupMessageRepositoryInterface defines the contract for the group message
// store and its per-recipient status rows
type GroupMessageRepositoryInterface interface {
	// CreateWithStatuses persists the message and all of its status rows in
	// one transaction: either everything is written or nothing is.
	CreateWithStatuses(message *models.GroupMessage, statuses []models.GroupMessageStatus) error
	FindByID(id uint) (*models.GroupMessage, error)
	FindByClientID(groupID uint, clientID string) (*models.GroupMessage, error)
	FindGroupMessages(groupID uint, limit int) ([]models.GroupMessage, error)
	StatusesForMessages(messageIDs []uint) ([]models.GroupMessageStatus, error)
	StatusesForReceiver(groupID, receiverID uint, messageIDs []uint) ([]models.GroupMessageStatus, error)
	MarkDelivered(groupID, receiverID uint, messageIDs []uint) (int64, error)
	MarkRead(groupID, receiverID uint, messageIDs []uint) (int64, error)
	LastMessage(groupID uint) (*models.GroupMessage, error)
	UnreadCount(groupID, receiverID uint) (int64, error)
}

// PendingMessageRepositoryInterface defines the contract for the offline
// push queue
type PendingMessageRepositoryInterface interface {
	Enqueue(userID, messageID uint, payload string, priority int) error
	GetPendingForUser(userID uint, limit int) ([]models.PendingMessage, error)
	GetRetryable(limit int) ([]models.PendingMessage, error)
	MarkAttempted(id uint, attempts int, nextRetry *time.Time) error
	Delete(id uint) error
	DeleteBatch(ids []uint) error
	CountPendingForUser(userID uint) (int64, error)
	CleanupOld(olderThan time.Duration) error
}
