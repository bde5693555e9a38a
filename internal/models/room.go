package models

import (
	"time"
)

// Room 聊天房间。私聊房间的 DirectKey 为 "小ID:大ID"，保证两人之间只有一个私聊
type Room struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	Name          string            `gorm:"size:80" json:"name"`
	IsDirect      bool              `gorm:"not null;default:false" json:"is_direct"`
	DirectKey     *string           `gorm:"uniqueIndex;size:40" json:"-"`
	CreatedByID   uint              `gorm:"not null;index" json:"created_by_id"`
	CreatedBy     User              `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	LastMessageAt *time.Time        `gorm:"index" json:"last_message_at"`
	Participants  []RoomParticipant `json:"participants,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// RoomParticipant 房间成员及其已读位置
type RoomParticipant struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	RoomID     uint       `gorm:"not null;uniqueIndex:idx_room_participant" json:"room_id"`
	Room       Room       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID     uint       `gorm:"not null;index;uniqueIndex:idx_room_participant" json:"user_id"`
	User       User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	LastReadAt *time.Time `json:"last_read_at"` // 只前进不后退
	JoinedAt   time.Time  `gorm:"autoCreateTime" json:"joined_at"`
}

type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"not null;index:idx_message_room_time,priority:1" json:"room_id"`
	Room      Room      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	SenderID  uint      `gorm:"not null;index" json:"sender_id"`
	Sender    User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"sender"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_message_room_time,priority:2" json:"created_at"`
}
