package repository

import (
	"time"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
	"gorm.io/gorm"
)

// InboxRow is one conversation in a user's inbox listing: the peer plus the
// latest message and the count of messages the user has not read yet.
type InboxRow struct {
	PeerID        uint                 `json:"peer_id"`
	PeerUsername  string               `json:"peer_username"`
	PeerAvatar    string               `json:"peer_avatar"`
	LastMessageID uint                 `json:"last_message_id"`
	LastMessage   *string              `json:"last_message"`
	LastType      models.MessageType   `json:"last_message_type"`
	LastStatus    models.MessageStatus `json:"last_status"`
	LastSentAt    time.Time            `json:"last_sent_at"`
	UnreadCount   int64                `json:"unread_count"`
	// PeerOnline is annotated per request from live presence, never stored.
	PeerOnline bool `json:"peer_online" gorm:"-"`
}

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(message *models.Message) error {
	return r.db.Create(message).Error
}

func (r *MessageRepository) FindByID(id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.Preload("Sender").First(&message, id).Error
	return &message, err
}

func (r *MessageRepository) FindByClientID(clientID string, senderID uint) (*models.Message, error) {
	var message models.Message
	err := r.db.Where("client_id = ? AND sender_id = ?", clientID, senderID).First(&message).Error
	return &message, err
}

func (r *MessageRepository) FindConversation(userID1, userID2 uint, limit int) ([]models.Message, error) {
	var messages []models.Message
	q := r.db.Preload("Sender").
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userID1, userID2, userID2, userID1).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&messages).Error
	return messages, err
}

func (r *MessageRepository) FindUnseenFrom(receiverID, senderID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("receiver_id = ? AND sender_id = ? AND status <> ?",
		receiverID, senderID, models.StatusRead).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *MessageRepository) FindUnseenForUser(receiverID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Preload("Sender").
		Where("receiver_id = ? AND status <> ?", receiverID, models.StatusRead).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// MarkDelivered advances sent rows to delivered. The status predicate makes
// the update a compare-and-set: rows already delivered or read are untouched,
// so concurrent marks can never regress a status.
func (r *MessageRepository) MarkDelivered(receiverID uint, messageIDs []uint) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res := r.db.Model(&models.Message{}).
		Where("id IN ? AND receiver_id = ? AND status = ?", messageIDs, receiverID, models.StatusSent).
		Updates(map[string]interface{}{
			"status":       models.StatusDelivered,
			"delivered_at": gorm.Expr("NOW()"),
		})
	return res.RowsAffected, res.Error
}

// MarkRead advances sent or delivered rows to read.
func (r *MessageRepository) MarkRead(receiverID uint, messageIDs []uint) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res := r.db.Model(&models.Message{}).
		Where("id IN ? AND receiver_id = ? AND status IN ?",
			messageIDs, receiverID, []models.MessageStatus{models.StatusSent, models.StatusDelivered}).
		Updates(map[string]interface{}{
			"status":  models.StatusRead,
			"read_at": gorm.Expr("NOW()"),
		})
	return res.RowsAffected, res.Error
}

// MarkConversationRead marks every unread message from senderID to receiverID
// as read and returns the ids that actually transitioned.
func (r *MessageRepository) MarkConversationRead(receiverID, senderID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Raw(`
		UPDATE messages
		SET status = ?, read_at = NOW(), updated_at = NOW()
		WHERE receiver_id = ? AND sender_id = ? AND status IN (?, ?) AND deleted_at IS NULL
		RETURNING id
	`, models.StatusRead, receiverID, senderID, models.StatusSent, models.StatusDelivered).
		Scan(&ids).Error
	return ids, err
}

// ListInbox returns the latest message per peer with unread counts.
// Conversations with peers the user has an active block against are excluded
// from the user's own view; being blocked by the peer does not hide history.
func (r *MessageRepository) ListInbox(userID uint) ([]InboxRow, error) {
	var rows []InboxRow
	err := r.db.Raw(`
		SELECT DISTINCT ON (peer_id)
			peer_id,
			u.username AS peer_username,
			u.avatar   AS peer_avatar,
			m.id       AS last_message_id,
			m.message  AS last_message,
			m.message_type AS last_type,
			m.status   AS last_status,
			m.created_at AS last_sent_at,
			(SELECT COUNT(*) FROM messages um
				WHERE um.receiver_id = ? AND um.sender_id = peer_id
				AND um.status <> 'read' AND um.deleted_at IS NULL) AS unread_count
		FROM (
			SELECT *, CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS peer_id
			FROM messages
			WHERE (sender_id = ? OR receiver_id = ?) AND deleted_at IS NULL
		) m
		JOIN users u ON u.id = m.peer_id
		WHERE NOT EXISTS (
			SELECT 1 FROM user_blocks b
			WHERE b.blocker_id = ? AND b.blocked_id = m.peer_id AND b.is_active
		)
		ORDER BY peer_id, m.created_at DESC, m.id DESC
	`, userID, userID, userID, userID, userID).Scan(&rows).Error
	return rows, err
}
