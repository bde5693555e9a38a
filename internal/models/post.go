package models

import (
	"time"
)

type PostKind string

const (
	PostKindCommunity PostKind = "community"
	PostKindPrompt    PostKind = "prompt" // 分享 prompt 的帖子，Prompt 字段必填
)

func (k PostKind) Valid() bool {
	return k == PostKindCommunity || k == PostKindPrompt
}

type Post struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Pid           string    `gorm:"uniqueIndex;size:8;not null" json:"pid"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	User          User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	CategoryID    uint      `gorm:"not null;index;default:1" json:"category_id"`
	Category      Category  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category"`
	Kind          PostKind  `gorm:"type:varchar(20);not null;default:'community';index" json:"kind"`
	Title         string    `gorm:"not null" json:"title"`
	URL           string    `json:"url"`
	Content       string    `gorm:"type:text" json:"content"` // markdown 原文
	Prompt        string    `gorm:"type:text" json:"prompt,omitempty"`
	Tags          []string  `gorm:"serializer:json;type:jsonb" json:"tags"`
	Score         int       `gorm:"default:0;index" json:"score"`
	Views         int       `gorm:"default:0" json:"views"`
	LikeCount     int       `gorm:"default:0" json:"like_count"`
	BookmarkCount int       `gorm:"default:0" json:"bookmark_count"`
	CommentCount  int       `gorm:"default:0" json:"comment_count"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
