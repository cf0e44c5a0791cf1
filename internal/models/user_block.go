package models

import "time"

// UserBlock is a directional block: BlockerID blocking BlockedID says nothing
// about the reverse direction. Blocking reactivates an existing row rather
// than duplicating it; unblocking deactivates but keeps the row for history.
type UserBlock struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	BlockerID uint `gorm:"not null;uniqueIndex:idx_blocker_blocked" json:"blocker_id"`
	BlockedID uint `gorm:"not null;uniqueIndex:idx_blocker_blocked" json:"blocked_id"`

	IsActive    bool       `gorm:"default:true;index" json:"is_active"`
	BlockedAt   time.Time  `json:"blocked_at"`
	UnblockedAt *time.Time `json:"unblocked_at"`
}
