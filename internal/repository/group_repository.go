package repository

import (
	"time"

	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
	"gorm.io/gorm"
)

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) Create(group *models.Group) error {
	return r.db.Create(group).Error
}

func (r *GroupRepository) FindByID(id uint) (*models.Group, error) {
	var group models.Group
	if err := r.db.Preload("Members", "is_active").Preload("Creator").First(&group, id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// Join opens a new membership interval and upserts the member cache row.
// A user with an interval still open keeps it; intervals are never reused
// after being closed, so a rejoin always gets a fresh row.
func (r *GroupRepository) Join(groupID, userID uint, role models.GroupRole, canSeePast bool) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&models.GroupMembership{}).
			Where("group_id = ? AND user_id = ? AND left_at IS NULL", groupID, userID).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return nil
		}

		membership := models.GroupMembership{
			GroupID:  groupID,
			UserID:   userID,
			Role:     role,
			JoinedAt: time.Now(),
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}

		return tx.Exec(`
			INSERT INTO group_members (group_id, user_id, membership_id, role, is_active, can_see_past_messages, created_at, updated_at)
			VALUES (?, ?, ?, ?, TRUE, ?, NOW(), NOW())
			ON CONFLICT (group_id, user_id) DO UPDATE
			SET membership_id = EXCLUDED.membership_id,
				role = EXCLUDED.role,
				is_active = TRUE,
				can_see_past_messages = EXCLUDED.can_see_past_messages,
				updated_at = NOW()
		`, groupID, userID, membership.ID, role, canSeePast).Error
	})
}

// Leave closes the open interval and deactivates the cache row. Interval rows
// are closed, never deleted.
func (r *GroupRepository) Leave(groupID, userID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.GroupMembership{}).
			Where("group_id = ? AND user_id = ? AND left_at IS NULL", groupID, userID).
			Update("left_at", gorm.Expr("NOW()"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", groupID, userID).
			Update("is_active", false).Error
	})
}

func (r *GroupRepository) IsActiveMember(groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ? AND is_active", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *GroupRepository) ActiveMemberIDs(groupID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND is_active", groupID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *GroupRepository) GetMember(groupID, userID uint) (*models.GroupMember, error) {
	var member models.GroupMember
	if err := r.db.Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *GroupRepository) GetMembers(groupID uint) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := r.db.Preload("User").
		Where("group_id = ? AND is_active", groupID).
		Find(&members).Error
	return members, err
}

func (r *GroupRepository) MembershipIntervals(groupID, userID uint) ([]models.GroupMembership, error) {
	var intervals []models.GroupMembership
	err := r.db.Where("group_id = ? AND user_id = ?", groupID, userID).
		Order("joined_at ASC").
		Find(&intervals).Error
	return intervals, err
}

func (r *GroupRepository) UserGroupIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.GroupMember{}).
		Where("user_id = ? AND is_active", userID).
		Pluck("group_id", &ids).Error
	return ids, err
}
