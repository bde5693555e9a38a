package models

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// 用户状态
const (
	UserStatusNormal = 0
	UserStatusMuted  = 1 // 禁言
	UserStatusBanned = 2 // 封禁
)

// User 用户资料 (profile)
type User struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Username      string     `gorm:"uniqueIndex;size:32;not null" json:"username"`
	Email         string     `gorm:"uniqueIndex;not null" json:"-"`
	Password      string     `gorm:"not null" json:"-"` // bcrypt hash
	DisplayName   string     `gorm:"size:64" json:"display_name"`
	AvatarURL     string     `json:"avatar_url"`
	Bio           string     `gorm:"size:200" json:"bio"`
	Points        int        `gorm:"default:0" json:"points"`
	Role          string     `gorm:"size:20;default:'user';not null" json:"role"`
	Status        int        `gorm:"default:0" json:"status"`
	PunishExpires *time.Time `json:"punish_expires,omitempty"`
	GoogleID      string     `gorm:"index" json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Muted 禁言中且未过期。PunishExpires 为空表示永久禁言
func (u *User) Muted(now time.Time) bool {
	if u.Status != UserStatusMuted {
		return false
	}
	return u.PunishExpires == nil || now.Before(*u.PunishExpires)
}

// Name 展示名，未设置时回退到 username
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
