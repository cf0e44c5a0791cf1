package repository

import (
	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
	"gorm.io/gorm"
)

type GroupMessageRepository struct {
	db *gorm.DB
}

func NewGroupMessageRepository(db *gorm.DB) *GroupMessageRepository {
	return &GroupMessageRepository{db: db}
}

// CreateWithStatuses persists the message plus its per-recipient status rows
// atomically. A failure on any row rolls back the whole send: a group message
// is never partially fanned out.
func (r *GroupMessageRepository) CreateWithStatuses(message *models.GroupMessage, statuses []models.GroupMessageStatus) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		for i := range statuses {
			statuses[i].GroupMessageID = message.ID
		}
		if len(statuses) == 0 {
			return nil
		}
		return tx.Create(&statuses).Error
	})
}

func (r *GroupMessageRepository) FindByID(id uint) (*models.GroupMessage, error) {
	var message models.GroupMessage
	err := r.db.Preload("Sender").First(&message, id).Error
	return &message, err
}

func (r *GroupMessageRepository) FindByClientID(groupID uint, clientID string) (*models.GroupMessage, error) {
	var message models.GroupMessage
	err := r.db.Preload("Sender").
		Where("group_id = ? AND client_id = ?", groupID, clientID).
		First(&message).Error
	return &message, err
}

func (r *GroupMessageRepository) FindGroupMessages(groupID uint, limit int) ([]models.GroupMessage, error) {
	var messages []models.GroupMessage
	q := r.db.Preload("Sender").
		Where("group_id = ?", groupID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&messages).Error
	return messages, err
}

func (r *GroupMessageRepository) StatusesForMessages(messageIDs []uint) ([]models.GroupMessageStatus, error) {
	if len(messageIDs) == 0 {
		return []models.GroupMessageStatus{}, nil
	}
	var statuses []models.GroupMessageStatus
	err := r.db.Where("group_message_id IN ?", messageIDs).Find(&statuses).Error
	return statuses, err
}

func (r *GroupMessageRepository) StatusesForReceiver(groupID, receiverID uint, messageIDs []uint) ([]models.GroupMessageStatus, error) {
	var statuses []models.GroupMessageStatus
	q := r.db.Where("group_id = ? AND receiver_id = ?", groupID, receiverID)
	if len(messageIDs) > 0 {
		q = q.Where("group_message_id IN ?", messageIDs)
	}
	err := q.Find(&statuses).Error
	return statuses, err
}

// MarkDelivered advances the receiver's sent rows to delivered. Rank-guarded:
// already-delivered or read rows are untouched, foreign ids simply don't
// match, and the affected count carries the result either way.
func (r *GroupMessageRepository) MarkDelivered(groupID, receiverID uint, messageIDs []uint) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res := r.db.Model(&models.GroupMessageStatus{}).
		Where("group_id = ? AND receiver_id = ? AND group_message_id IN ? AND status = ?",
			groupID, receiverID, messageIDs, models.StatusSent).
		Updates(map[string]interface{}{
			"status":       models.StatusDelivered,
			"delivered_at": gorm.Expr("NOW()"),
		})
	return res.RowsAffected, res.Error
}

func (r *GroupMessageRepository) MarkRead(groupID, receiverID uint, messageIDs []uint) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res := r.db.Model(&models.GroupMessageStatus{}).
		Where("group_id = ? AND receiver_id = ? AND group_message_id IN ? AND status IN ?",
			groupID, receiverID, messageIDs,
			[]models.MessageStatus{models.StatusSent, models.StatusDelivered}).
		Updates(map[string]interface{}{
			"status":  models.StatusRead,
			"read_at": gorm.Expr("NOW()"),
		})
	return res.RowsAffected, res.Error
}

func (r *GroupMessageRepository) LastMessage(groupID uint) (*models.GroupMessage, error) {
	var message models.GroupMessage
	err := r.db.Preload("Sender").
		Where("group_id = ?", groupID).
		Order("created_at DESC, id DESC").
		First(&message).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// UnreadCount counts the receiver's own unread, non-hidden status rows.
func (r *GroupMessageRepository) UnreadCount(groupID, receiverID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.GroupMessageStatus{}).
		Where("group_id = ? AND receiver_id = ? AND sender_id <> ? AND status <> ? AND NOT hidden_for_receiver",
			groupID, receiverID, receiverID, models.StatusRead).
		Count(&count).Error
	return count, err
}
