package repository

import (
	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
	"gorm.io/gorm"
)

type BlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// Block creates or reactivates the block row. Blocking an already-blocked
// user is idempotent.
func (r *BlockRepository) Block(blockerID, blockedID uint) error {
	return r.db.Exec(`
		INSERT INTO user_blocks (blocker_id, blocked_id, is_active, blocked_at, created_at, updated_at)
		VALUES (?, ?, TRUE, NOW(), NOW(), NOW())
		ON CONFLICT (blocker_id, blocked_id) DO UPDATE
		SET is_active = TRUE, blocked_at = NOW(), unblocked_at = NULL, updated_at = NOW()
	`, blockerID, blockedID).Error
}

// Unblock deactivates the row. The row is retained for history.
func (r *BlockRepository) Unblock(blockerID, blockedID uint) error {
	return r.db.Model(&models.UserBlock{}).
		Where("blocker_id = ? AND blocked_id = ? AND is_active", blockerID, blockedID).
		Updates(map[string]interface{}{
			"is_active":    false,
			"unblocked_at": gorm.Expr("NOW()"),
		}).Error
}

func (r *BlockRepository) IsBlocked(blockerID, blockedID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserBlock{}).
		Where("blocker_id = ? AND blocked_id = ? AND is_active", blockerID, blockedID).
		Count(&count).Error
	return count > 0, err
}

// HasActiveBlock reports whether an active block exists in either direction.
func (r *BlockRepository) HasActiveBlock(userID1, userID2 uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserBlock{}).
		Where("((blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)) AND is_active",
			userID1, userID2, userID2, userID1).
		Count(&count).Error
	return count > 0, err
}
