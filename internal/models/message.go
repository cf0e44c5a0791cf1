package models

import (
	"time"

	"gorm.io/gorm"
)

type MessageType string

const (
	TextMessage  MessageType = "text"
	ImageMessage MessageType = "image"
	VideoMessage MessageType = "video"
	FileMessage  MessageType = "file"
	EmojiMessage MessageType = "emoji"
	LinkMessage  MessageType = "link"
	AudioMessage MessageType = "audio"
	// SystemMessage is only valid for group messages (membership announcements).
	SystemMessage MessageType = "system"
)

// ValidDirectType reports whether t is an accepted type for a direct message.
func ValidDirectType(t MessageType) bool {
	switch t {
	case TextMessage, ImageMessage, VideoMessage, FileMessage, EmojiMessage, LinkMessage, AudioMessage:
		return true
	}
	return false
}

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// StatusRank maps a status to its position in the sent < delivered < read
// progression. Transitions may only increase the rank.
func StatusRank(s MessageStatus) int {
	switch s {
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	default:
		return 0
	}
}

type Message struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Client-side tracking
	ClientID string `gorm:"type:varchar(36);uniqueIndex:idx_client_sender" json:"client_id"` // UUID for deduplication

	SenderID   uint `gorm:"not null;uniqueIndex:idx_client_sender;index" json:"sender_id"`
	Sender     User `gorm:"foreignKey:SenderID" json:"sender"`
	ReceiverID uint `gorm:"not null;index" json:"receiver_id"`

	Message     *string     `gorm:"type:text" json:"message"`
	MediaURL    *string     `json:"media_url"`
	MessageType MessageType `gorm:"type:varchar(20);default:'text'" json:"message_type"`

	// Delivery state. Mutated only through rank-guarded updates.
	Status      MessageStatus `gorm:"type:varchar(20);default:'sent';index" json:"status"`
	DeliveredAt *time.Time    `json:"delivered_at"`
	ReadAt      *time.Time    `json:"read_at"`
}

type MessageResponse struct {
	ID          uint          `json:"id"`
	ClientID    string        `json:"client_id"`
	SenderID    uint          `json:"sender_id"`
	ReceiverID  uint          `json:"receiver_id"`
	Message     *string       `json:"message"`
	MediaURL    *string       `json:"media_url"`
	MessageType MessageType   `json:"message_type"`
	Status      MessageStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

func (m *Message) ToResponse() MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		ClientID:    m.ClientID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Message:     m.Message,
		MediaURL:    m.MediaURL,
		MessageType: m.MessageType,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
	}
}

// StatusUpdate is the per-message payload of a status_update event.
type StatusUpdate struct {
	ID         uint          `json:"id"`
	Status     MessageStatus `json:"status"`
	SenderID   uint          `json:"sender_id"`
	ReceiverID uint          `json:"receiver_id"`
}
