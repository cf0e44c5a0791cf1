package models

import (
	"time"

	"gorm.io/gorm"
)

type GroupRole string

const (
	RoleHost   GroupRole = "host"
	RoleCohost GroupRole = "cohost"
	RoleAdmin  GroupRole = "admin"
	RoleMember GroupRole = "member"
)

// CanManageMembers reports whether a role may add or remove other members.
func (r GroupRole) CanManageMembers() bool {
	return r == RoleHost || r == RoleCohost || r == RoleAdmin
}

type Group struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`
	Icon        string `json:"icon"`
	CreatorID   uint   `gorm:"not null" json:"creator_id"`

	Creator User          `gorm:"foreignKey:CreatorID" json:"creator"`
	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members"`
}

// GroupMembership is one continuous period a user belonged to a group.
// A user who leaves and rejoins gets a new row; rows are closed, never deleted.
// At most one row per (group, user) may have a null LeftAt at any time.
type GroupMembership struct {
	ID        uint       `gorm:"primarykey" json:"id"`
	GroupID   uint       `gorm:"not null;index:idx_membership_group_user" json:"group_id"`
	UserID    uint       `gorm:"not null;index:idx_membership_group_user" json:"user_id"`
	Role      GroupRole  `gorm:"type:varchar(20);default:'member'" json:"role"`
	JoinedAt  time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt    *time.Time `json:"left_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Covers reports whether t falls within this membership interval.
// An open interval (LeftAt nil) covers everything from JoinedAt onward.
func (m *GroupMembership) Covers(t time.Time) bool {
	if t.Before(m.JoinedAt) {
		return false
	}
	return m.LeftAt == nil || !t.After(*m.LeftAt)
}

// GroupMember is the current-state projection of the latest GroupMembership
// interval, kept for fast membership checks. It must stay consistent with the
// latest interval row for the (group, user) pair.
type GroupMember struct {
	GroupID            uint      `gorm:"primaryKey" json:"group_id"`
	UserID             uint      `gorm:"primaryKey" json:"user_id"`
	MembershipID       uint      `gorm:"not null" json:"membership_id"`
	Role               GroupRole `gorm:"type:varchar(20);default:'member'" json:"role"`
	IsActive           bool      `gorm:"default:true;index" json:"is_active"`
	CanSeePastMessages bool      `gorm:"default:false" json:"can_see_past_messages"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	User  User  `gorm:"foreignKey:UserID" json:"user"`
	Group Group `gorm:"foreignKey:GroupID" json:"-"`
}
