package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeLikePost     NotificationType = "like_post"
	NotificationTypeLikeComment  NotificationType = "like_comment"
	NotificationTypeLikeNews     NotificationType = "like_news"
	NotificationTypeCommentPost  NotificationType = "comment_post"
	NotificationTypeReplyComment NotificationType = "reply_comment"
	NotificationTypeFollow       NotificationType = "follow"
	NotificationTypeMessage      NotificationType = "message"
	NotificationTypeBadge        NotificationType = "badge"
	NotificationTypeSystem       NotificationType = "system"
)

type Notification struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	UserID     uint             `gorm:"not null;index" json:"user_id"` // Receiver
	User       User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ActorID    *uint            `gorm:"index" json:"actor_id"` // Sender, 系统通知为空
	Actor      *User            `gorm:"foreignKey:ActorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"actor,omitempty"`
	Type       NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	TargetType string           `gorm:"size:20" json:"target_type"` // post, comment, news, room, user, badge
	TargetID   string           `gorm:"size:32" json:"target_id"`
	Message    string           `gorm:"type:text" json:"message"`
	IsRead     bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt  time.Time        `gorm:"index" json:"created_at"`
}
