package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	MaxPageSize     = 100
	DefaultPageSize = 20
	feedCacheTTL    = time.Minute
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	return likeEscaper.Replace(strings.TrimSpace(s))
}

// 排序方式
const (
	SortNew     = "new"
	SortTop     = "top"
	SortLiked   = "liked"
	SortPopular = "popular" // 仅新闻
)

// PageRequest 分页参数，Page 从 1 开始，优先于 Offset
type PageRequest struct {
	Offset int    `form:"offset"`
	Page   int    `form:"page"`
	Size   int    `form:"size"`
	Sort   string `form:"sort"`
}

// Normalize 把 Size 限制在 [1, MaxPageSize]，Page 折算为 Offset
func (r PageRequest) Normalize(defaultSize int) PageRequest {
	if r.Size <= 0 {
		r.Size = defaultSize
	}
	if r.Size <= 0 {
		r.Size = DefaultPageSize
	}
	if r.Size > MaxPageSize {
		r.Size = MaxPageSize
	}
	if r.Page > 0 {
		r.Offset = (r.Page - 1) * r.Size
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	return r
}

// Page 一页数据。多取一行来判断 HasMore，最后一页恰好满页时也为 false
type Page[T any] struct {
	Items      []T  `json:"items"`
	HasMore    bool `json:"has_more"`
	NextOffset int  `json:"next_offset"`
}

// NewPage rows 为按 Size+1 查询的结果
func NewPage[T any](rows []T, req PageRequest) Page[T] {
	req = req.Normalize(DefaultPageSize)
	p := Page[T]{Items: rows, NextOffset: req.Offset + len(rows)}
	if len(rows) > req.Size {
		p.Items = rows[:req.Size]
		p.HasMore = true
		p.NextOffset = req.Offset + req.Size
	}
	if p.Items == nil {
		p.Items = []T{}
	}
	return p
}

// Paginate 在已排序的查询上取一页；未 Normalize 的 req 按 DefaultPageSize 处理
func Paginate[T any](ctx context.Context, q *gorm.DB, req PageRequest) (Page[T], error) {
	req = req.Normalize(DefaultPageSize)
	var rows []T
	if err := q.WithContext(ctx).Offset(req.Offset).Limit(req.Size + 1).Find(&rows).Error; err != nil {
		return Page[T]{}, err
	}
	return NewPage(rows, req), nil
}

// MapPage 转换一页的元素类型
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	items := make([]U, len(p.Items))
	for i, it := range p.Items {
		items[i] = fn(it)
	}
	return Page[U]{Items: items, HasMore: p.HasMore, NextOffset: p.NextOffset}
}

// postOrder 帖子排序，未知排序回退到 new
func postOrder(sort string) []string {
	switch sort {
	case SortTop:
		return []string{"posts.score DESC", "posts.created_at DESC", "posts.id DESC"}
	case SortLiked:
		return []string{"posts.like_count DESC", "posts.created_at DESC", "posts.id DESC"}
	default:
		return []string{"posts.created_at DESC", "posts.id DESC"}
	}
}

func newsOrder(sort string) []string {
	switch sort {
	case SortTop:
		return []string{"news_articles.score DESC", "news_articles.published_at DESC", "news_articles.id DESC"}
	case SortLiked:
		return []string{"news_articles.like_count DESC", "news_articles.published_at DESC", "news_articles.id DESC"}
	case SortPopular:
		return []string{"news_articles.view_count DESC", "news_articles.published_at DESC", "news_articles.id DESC"}
	default:
		return []string{"news_articles.published_at DESC", "news_articles.id DESC"}
	}
}

func applyOrder(q *gorm.DB, order []string) *gorm.DB {
	for _, o := range order {
		q = q.Order(o)
	}
	return q
}
