package repository

import (
	"github.com/Majid-s-Team/celebrate-now-chat/internal/models"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(id uint) (*models.User, error) {
	var user models.User
	// Unscoped so a soft-deleted peer can still be annotated in history.
	err := r.db.Unscoped().First(&user, id).Error
	return &user, err
}

func (r *UserRepository) IsDeleted(id uint) (bool, error) {
	var user models.User
	if err := r.db.Unscoped().Select("deleted_at").First(&user, id).Error; err != nil {
		return false, err
	}
	return user.DeletedAt.Valid, nil
}

func (r *UserRepository) UpdateOnlineStatus(userID uint, isOnline bool) error {
	updates := map[string]interface{}{"is_online": isOnline}
	if !isOnline {
		updates["last_seen"] = gorm.Expr("NOW()")
	}
	return r.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error
}
