package models

import (
	"time"
)

// Badge 徽章商店里的商品，用积分购买
type Badge struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Code        string    `gorm:"uniqueIndex;size:40;not null" json:"code"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Price       int       `gorm:"not null;default:0" json:"price"`
	Active      bool      `gorm:"default:true" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserBadge 用户拥有的徽章，每个用户同时最多佩戴一个
type UserBadge struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index;uniqueIndex:idx_user_badge" json:"user_id"`
	User        User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	BadgeID     uint      `gorm:"not null;uniqueIndex:idx_user_badge" json:"badge_id"`
	Badge       Badge     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"badge"`
	Equipped    bool      `gorm:"default:false;index" json:"equipped"`
	PurchasedAt time.Time `gorm:"autoCreateTime" json:"purchased_at"`
}
