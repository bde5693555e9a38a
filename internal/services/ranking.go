package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hearth/internal/models"
	"hearth/internal/utils"

	"gorm.io/gorm"
)

// RankKind 参与排名的内容种类
type RankKind string

const (
	RankPost RankKind = "post"
	RankNews RankKind = "news"
)

type rankKey struct {
	kind RankKind
	id   uint
}

// RankingService 提供异步计算和更新 Score 的服务
type RankingService struct {
	db      *gorm.DB
	logger  *slog.Logger
	queue   chan rankKey // 待更新队列
	pending map[rankKey]bool
	mu      sync.Mutex
	now     func() time.Time
}

func NewRankingService(db *gorm.DB, logger *slog.Logger) *RankingService {
	return &RankingService{
		db:      db,
		logger:  logger.With("component", "ranking"),
		queue:   make(chan rankKey, 1000), // 缓冲队列，防止阻塞
		pending: make(map[rankKey]bool),
		now:     time.Now,
	}
}

// Schedule 加入更新队列（异步），短时间内同一条内容只排队一次
func (s *RankingService) Schedule(kind RankKind, id uint) {
	key := rankKey{kind: kind, id: id}

	s.mu.Lock()
	if s.pending[key] {
		s.mu.Unlock()
		return
	}
	s.pending[key] = true
	s.mu.Unlock()

	select {
	case s.queue <- key:
	default:
		// 队列满了，移除 pending 标记
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
		s.logger.Warn("Ranking queue full, skipping", "kind", kind, "id", id)
	}
}

// Run 后台批量处理队列：满 50 条或每 500ms 处理一次，ctx 取消时退出
func (s *RankingService) Run(ctx context.Context) {
	batch := make([]rankKey, 0, 50)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case key := <-s.queue:
			batch = append(batch, key)
			if len(batch) >= 50 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *RankingService) processBatch(ctx context.Context, keys []rankKey) {
	for _, key := range keys {
		if err := s.Rescore(ctx, key.kind, key.id); err != nil {
			s.logger.Warn("Failed to update score", "kind", key.kind, "id", key.id, "error", err)
		}

		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()
	}
}

// Rescore 同步计算并写回 Score
func (s *RankingService) Rescore(ctx context.Context, kind RankKind, id uint) error {
	tx := s.db.WithContext(ctx)
	now := s.now()

	switch kind {
	case RankPost:
		var post models.Post
		if err := tx.Select("id", "created_at", "like_count", "bookmark_count", "comment_count").First(&post, id).Error; err != nil {
			return err
		}
		score := utils.CalculateScore(utils.PostRankConfig, post.CreatedAt, now, utils.Engagement{
			Likes:     post.LikeCount,
			Comments:  post.CommentCount,
			Bookmarks: post.BookmarkCount,
		})
		return tx.Model(&models.Post{}).Where("id = ?", id).UpdateColumn("score", int(score)).Error
	case RankNews:
		var article models.NewsArticle
		if err := tx.Select("id", "published_at", "like_count", "bookmark_count", "view_count").First(&article, id).Error; err != nil {
			return err
		}
		score := utils.CalculateScore(utils.NewsRankConfig, article.PublishedAt, now, utils.Engagement{
			Likes:     article.LikeCount,
			Bookmarks: article.BookmarkCount,
			Views:     article.ViewCount,
		})
		return tx.Model(&models.NewsArticle{}).Where("id = ?", id).UpdateColumn("score", int(score)).Error
	}
	return invalid("unknown rank kind %q", kind)
}

// RescoreHot 更新最近 7 天和分数最高的 30 条内容（帖子和新闻各自处理），返回更新条数
func (s *RankingService) RescoreHot(ctx context.Context) int {
	since := s.now().AddDate(0, 0, -7)
	count := 0

	tables := []struct {
		kind    RankKind
		model   any
		timeCol string
	}{
		{RankPost, &models.Post{}, "created_at"},
		{RankNews, &models.NewsArticle{}, "published_at"},
	}

	for _, t := range tables {
		var recent, top []uint
		s.db.WithContext(ctx).Model(t.model).Where(t.timeCol+" >= ?", since).Pluck("id", &recent)
		s.db.WithContext(ctx).Model(t.model).Order("score DESC").Limit(30).Pluck("id", &top)

		processed := make(map[uint]bool, len(recent)+len(top))
		for _, id := range append(recent, top...) {
			if processed[id] {
				continue
			}
			processed[id] = true
			if err := s.Rescore(ctx, t.kind, id); err != nil {
				s.logger.Warn("Failed to update score", "kind", t.kind, "id", id, "error", err)
				continue
			}
			count++
		}
	}

	s.logger.Info("Scheduled rescore finished", "updated", count)
	return count
}

// RunDaily 每天凌晨 3 点执行 RescoreHot
func (s *RankingService) RunDaily(ctx context.Context) {
	runDailyAt(ctx, 3, s.now, func() { s.RescoreHot(ctx) })
}

// runDailyAt 每天 hour 点执行一次 fn，ctx 取消时退出
func runDailyAt(ctx context.Context, hour int, now func() time.Time, fn func()) {
	for {
		timer := time.NewTimer(untilNextHour(now(), hour))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			fn()
		}
	}
}

// untilNextHour 距离下一个 hour:00 的时长
func untilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !now.Before(next) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}
