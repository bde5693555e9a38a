package models

import (
	"time"
)

const (
	SourceTypeRSS    = "rss"
	SourceTypeIngest = "ingest" // 通过 /api/parse 上传的 HTML
)

// NewsSource RSS/Atom 新闻源
type NewsSource struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	URL         string     `gorm:"uniqueIndex;not null" json:"url"` // 可能带 rsshub:// 前缀
	Title       string     `gorm:"not null" json:"title"`
	SiteURL     string     `json:"site_url"`
	IconURL     string     `json:"icon_url"`
	Enabled     bool       `gorm:"default:true" json:"enabled"`
	LastFetchAt *time.Time `json:"last_fetch_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewsArticle 聚合的新闻条目，来源为 RSS 抓取或 HTML 上传
type NewsArticle struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	SourceID      *uint       `gorm:"index" json:"source_id"`
	Source        *NewsSource `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"source,omitempty"`
	SubmitterID   *uint       `gorm:"index" json:"submitter_id"`
	Submitter     *User       `gorm:"foreignKey:SubmitterID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	SourceType    string      `gorm:"size:20;not null;index" json:"source_type"`
	URL           string      `gorm:"uniqueIndex;not null" json:"url"`
	Title         string      `gorm:"not null" json:"title"`
	Byline        string      `json:"byline"`
	SiteName      string      `json:"site_name"`
	Excerpt       string      `gorm:"type:text" json:"excerpt"`
	Content       string      `gorm:"type:text" json:"content,omitempty"` // 清洗后的 HTML
	TextLength    int         `gorm:"default:0" json:"text_length"`
	ImageURL      string      `json:"image_url"`
	Images        []string    `gorm:"serializer:json;type:jsonb" json:"images"`
	Videos        []string    `gorm:"serializer:json;type:jsonb" json:"videos"`
	PublishedAt   time.Time   `gorm:"not null;index" json:"published_at"`
	LikeCount     int         `gorm:"default:0" json:"like_count"`
	BookmarkCount int         `gorm:"default:0" json:"bookmark_count"`
	ViewCount     int         `gorm:"default:0" json:"view_count"`
	Score         int         `gorm:"default:0;index" json:"score"`
	CreatedAt     time.Time   `gorm:"index" json:"created_at"`
}

// NewsView 登录用户的首次浏览记录，用于浏览数去重
type NewsView struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	NewsArticleID uint        `gorm:"not null;uniqueIndex:idx_news_view_article_user" json:"news_article_id"`
	NewsArticle   NewsArticle `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	UserID        uint        `gorm:"not null;index;uniqueIndex:idx_news_view_article_user" json:"user_id"`
	CreatedAt     time.Time   `json:"created_at"`
}
