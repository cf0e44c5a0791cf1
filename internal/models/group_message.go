package models

import (
	"time"

	"gorm.io/gorm"
)

type GroupMessage struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ClientID string `gorm:"type:varchar(36);uniqueIndex:idx_group_client_sender" json:"client_id"`

	GroupID  uint `gorm:"not null;uniqueIndex:idx_group_client_sender;index" json:"group_id"`
	SenderID uint `gorm:"not null;index" json:"sender_id"`
	Sender   User `gorm:"foreignKey:SenderID" json:"sender"`

	Message     *string     `gorm:"type:text" json:"message"`
	MediaURL    *string     `json:"media_url"`
	MessageType MessageType `gorm:"type:varchar(20);default:'text'" json:"message_type"`
}

// GroupMessageStatus is the per-recipient delivery record for one group
// message: exactly one row per member active at send time, the sender
// included. Status transitions are monotonic and independent across rows.
type GroupMessageStatus struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	GroupID        uint `gorm:"not null;index" json:"group_id"`
	GroupMessageID uint `gorm:"not null;uniqueIndex:idx_status_message_receiver" json:"message_id"`
	SenderID       uint `gorm:"not null" json:"sender_id"`
	ReceiverID     uint `gorm:"not null;uniqueIndex:idx_status_message_receiver;index" json:"receiver_id"`

	Status MessageStatus `gorm:"type:varchar(20);default:'sent'" json:"status"`

	// Snapshot of the sender/receiver block state at send time.
	// Never re-evaluated after creation.
	HiddenForReceiver bool `gorm:"default:false" json:"hidden_for_receiver"`

	DeliveredAt *time.Time `json:"delivered_at"`
	ReadAt      *time.Time `json:"read_at"`
}

// ClubStatus derives the single status shown to a group message's sender:
// the least-advanced status among all non-sender recipient rows. Returns
// StatusRead when there are no such rows (a group of one).
func ClubStatus(rows []GroupMessageStatus, senderID uint) MessageStatus {
	club := StatusRead
	seen := false
	for _, row := range rows {
		if row.ReceiverID == senderID {
			continue
		}
		seen = true
		if StatusRank(row.Status) < StatusRank(club) {
			club = row.Status
		}
	}
	if !seen {
		return StatusRead
	}
	return club
}

type GroupMessageResponse struct {
	ID          uint        `json:"id"`
	ClientID    string      `json:"client_id"`
	GroupID     uint        `json:"group_id"`
	SenderID    uint        `json:"sender_id"`
	Message     *string     `json:"message"`
	MediaURL    *string     `json:"media_url"`
	MessageType MessageType `json:"message_type"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (m *GroupMessage) ToResponse() GroupMessageResponse {
	return GroupMessageResponse{
		ID:          m.ID,
		ClientID:    m.ClientID,
		GroupID:     m.GroupID,
		SenderID:    m.SenderID,
		Message:     m.Message,
		MediaURL:    m.MediaURL,
		MessageType: m.MessageType,
		CreatedAt:   m.CreatedAt,
	}
}
