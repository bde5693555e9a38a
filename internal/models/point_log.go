package models

import (
	"time"
)

// PointLog 积分流水，Amount 正数为增加，负数为扣除
type PointLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Amount    int       `gorm:"not null" json:"amount"`
	Action    string    `gorm:"size:100;not null;index" json:"action"`
	RefType   string    `gorm:"size:20" json:"ref_type,omitempty"`
	RefID     string    `gorm:"size:32" json:"ref_id,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
