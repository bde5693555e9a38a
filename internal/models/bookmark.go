package models

import (
	"time"
)

// PostBookmark 收藏帖子
type PostBookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index;uniqueIndex:idx_post_bookmark_user_target" json:"user_id"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	PostID    uint      `gorm:"not null;index;uniqueIndex:idx_post_bookmark_user_target" json:"post_id"`
	Post      Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"post"`
	CreatedAt time.Time `json:"created_at"`
}

// NewsBookmark 收藏新闻
type NewsBookmark struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	UserID        uint        `gorm:"not null;index;uniqueIndex:idx_news_bookmark_user_target" json:"user_id"`
	User          User        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	NewsArticleID uint        `gorm:"not null;index;uniqueIndex:idx_news_bookmark_user_target" json:"news_article_id"`
	NewsArticle   NewsArticle `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"news_article"`
	CreatedAt     time.Time   `json:"created_at"`
}
