package models

import (
	"time"

	"gorm.io/gorm"
)

// PendingMessage represents a socket payload queued for a user who was
// offline (or whose connection died) when a push was attempted.
type PendingMessage struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Target user who should receive this payload
	UserID uint `gorm:"not null;index:idx_pending_user_priority" json:"user_id"`

	// Reference to the originating direct or group message
	MessageID uint `gorm:"not null" json:"message_id"`

	// Delivery tracking
	Attempts    int        `gorm:"default:0" json:"attempts"`
	LastAttempt *time.Time `json:"last_attempt"`
	NextRetry   *time.Time `gorm:"index" json:"next_retry"` // For exponential backoff

	// Priority for payload ordering (system announcements rank higher)
	Priority int `gorm:"default:0;index:idx_pending_user_priority" json:"priority"`

	// Payload to send (cached JSON to avoid joins on delivery)
	Payload string `gorm:"type:text" json:"payload"`
}
