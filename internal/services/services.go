package services

import (
	"context"
	"log/slog"
	"time"

	"hearth/internal/config"
	"hearth/internal/models"
	"hearth/internal/realtime"
	"hearth/internal/storage"
	"hearth/internal/utils"

	"gorm.io/gorm"
)

// Services 进程内所有业务服务，由 main 和 CLI 共用
type Services struct {
	Users         *UserService
	Follows       *FollowService
	Posts         *PostService
	Comments      *CommentService
	News          *NewsService
	Ingest        *IngestService
	Badges        *BadgeService
	Chat          *ChatService
	Notifications *NotificationService
	Points        *PointsService
	Ranking       *RankingService
	Crawler       *CrawlerService
	Broker        realtime.Broker

	PostLikes     *Toggler
	PostBookmarks *Toggler
	CommentLikes  *Toggler
	NewsLikes     *Toggler
	NewsBookmarks *Toggler

	logger *slog.Logger
}

// New 组装服务并注册点赞/收藏的提交后副作用
func New(conn *gorm.DB, cfg *config.Config, broker realtime.Broker, bucket storage.Bucket, logger *slog.Logger) *Services {
	cache := utils.GetCache()

	s := &Services{
		Broker:        broker,
		PostLikes:     NewToggler(conn, PostLikeSpec),
		PostBookmarks: NewToggler(conn, PostBookmarkSpec),
		CommentLikes:  NewToggler(conn, CommentLikeSpec),
		NewsLikes:     NewToggler(conn, NewsLikeSpec),
		NewsBookmarks: NewToggler(conn, NewsBookmarkSpec),
		logger:        logger,
	}

	s.Notifications = NewNotificationService(conn, broker, logger)
	s.Points = NewPointsService(conn, logger)
	s.Ranking = NewRankingService(conn, logger)
	s.Badges = NewBadgeService(conn, s.Points, s.Notifications, logger)
	s.Follows = NewFollowService(conn, s.Notifications)
	s.Users = NewUserService(conn, bucket, s.Follows, s.Badges, logger)
	s.Chat = NewChatService(conn, broker, logger)
	s.Crawler = NewCrawlerService(int(cfg.IngestMaxBytes))

	s.Posts = &PostService{
		db:        conn,
		cache:     cache,
		likes:     s.PostLikes,
		bookmarks: s.PostBookmarks,
		badges:    s.Badges,
		points:    s.Points,
		ranking:   s.Ranking,
		notifier:  s.Notifications,
		pageSize:  cfg.FeedPageSize,
		logger:    logger.With("component", "posts"),
	}
	s.Comments = &CommentService{
		db:       conn,
		likes:    s.CommentLikes,
		badges:   s.Badges,
		points:   s.Points,
		ranking:  s.Ranking,
		notifier: s.Notifications,
		logger:   logger.With("component", "comments"),
	}
	s.News = &NewsService{
		db:        conn,
		parser:    newFeedParser(),
		cache:     cache,
		likes:     s.NewsLikes,
		bookmarks: s.NewsBookmarks,
		ranking:   s.Ranking,
		cfg: NewsConfig{
			RSSHubURL:     cfg.RSSHubInstanceURL,
			FetchInterval: cfg.NewsFetchInterval,
			RetentionDays: cfg.NewsRetentionDays,
			PageSize:      cfg.FeedPageSize,
		},
		logger: logger.With("component", "news"),
		now:    time.Now,
	}
	s.Ingest = &IngestService{
		db:       conn,
		crawler:  s.Crawler,
		ranking:  s.Ranking,
		maxBytes: int(cfg.IngestMaxBytes),
		logger:   logger.With("component", "ingest"),
		now:      time.Now,
	}

	s.wireToggles(conn, cache)
	return s
}

// wireToggles 积分、通知、热度和缓存都在事务提交后执行，失败只记日志
func (s *Services) wireToggles(conn *gorm.DB, cache *utils.Cache) {
	s.PostLikes.OnChange(func(ctx context.Context, ev ToggleEvent) {
		s.Ranking.Schedule(RankPost, ev.TargetID)
		cache.Delete(postTopCacheKey)
		if ev.OwnerID == 0 || ev.OwnerID == ev.UserID {
			return
		}
		pid := lookupString(ctx, conn, "posts", "pid", ev.TargetID)
		s.awardOwner(ctx, ev, PointsPostLiked, ActionPostLiked, ActionPostUnliked, "post", pid)
		if ev.Active {
			s.notifyOwner(ctx, ev, models.NotificationTypeLikePost, "post", pid, "赞了你的帖子")
		}
	})

	s.PostBookmarks.OnChange(func(ctx context.Context, ev ToggleEvent) {
		s.Ranking.Schedule(RankPost, ev.TargetID)
		cache.Delete(postTopCacheKey)
		if ev.OwnerID == 0 || ev.OwnerID == ev.UserID {
			return
		}
		pid := lookupString(ctx, conn, "posts", "pid", ev.TargetID)
		s.awardOwner(ctx, ev, PointsPostBookmarked, ActionPostBookmarked, ActionPostUnbookmark, "post", pid)
	})

	s.CommentLikes.OnChange(func(ctx context.Context, ev ToggleEvent) {
		if ev.OwnerID == 0 || ev.OwnerID == ev.UserID {
			return
		}
		cid := lookupString(ctx, conn, "comments", "cid", ev.TargetID)
		s.awardOwner(ctx, ev, PointsCommentLiked, ActionCommentLiked, ActionCommentUnliked, "comment", cid)
		if ev.Active {
			s.notifyOwner(ctx, ev, models.NotificationTypeLikeComment, "comment", cid, "赞了你的评论")
		}
	})

	// notify 为空时不发通知
	newsChanged := func(action string, points int, notify models.NotificationType) func(context.Context, ToggleEvent) {
		return func(ctx context.Context, ev ToggleEvent) {
			s.Ranking.Schedule(RankNews, ev.TargetID)
			cache.Delete(newsTopCacheKey)
			if ev.OwnerID == 0 || ev.OwnerID == ev.UserID {
				return
			}
			id := utils.UintToString(ev.TargetID)
			amount := points
			if !ev.Active {
				amount = -points
			}
			s.Points.AddLogged(ctx, PointChange{
				UserID: ev.OwnerID, Amount: amount, Action: action,
				RefType: "news", RefID: id,
			})
			if notify != "" && ev.Active {
				s.notifyOwner(ctx, ev, notify, "news", id, "赞了你的投稿")
			}
		}
	}
	s.NewsLikes.OnChange(newsChanged(ActionNewsLiked, PointsPostLiked, models.NotificationTypeLikeNews))
	s.NewsBookmarks.OnChange(newsChanged(ActionNewsBookmarked, PointsPostBookmarked, ""))
}

func (s *Services) awardOwner(ctx context.Context, ev ToggleEvent, points int, onAction, offAction, refType, refID string) {
	c := PointChange{UserID: ev.OwnerID, Amount: points, Action: onAction, RefType: refType, RefID: refID}
	if !ev.Active {
		c.Amount = -points
		c.Action = offAction
	}
	s.Points.AddLogged(ctx, c)
}

func (s *Services) notifyOwner(ctx context.Context, ev ToggleEvent, typ models.NotificationType, targetType, targetID, message string) {
	actor := ev.UserID
	s.Notifications.NotifyLogged(ctx, &models.Notification{
		UserID:     ev.OwnerID,
		ActorID:    &actor,
		Type:       typ,
		TargetType: targetType,
		TargetID:   targetID,
		Message:    message,
	})
}

// lookupString 取目标的公开短 ID，查不到时退回数字 ID
func lookupString(ctx context.Context, conn *gorm.DB, table, column string, id uint) string {
	var values []string
	conn.WithContext(ctx).Table(table).Where("id = ?", id).Limit(1).Pluck(column, &values)
	if len(values) == 0 {
		return utils.UintToString(id)
	}
	return values[0]
}

// Start 启动后台任务，ctx 取消时全部退出
func (s *Services) Start(ctx context.Context) {
	go s.Ranking.Run(ctx)
	go s.Ranking.RunDaily(ctx)
	go s.News.RunFetcher(ctx)
	go s.News.RunCleanup(ctx)
	s.logger.Info("Background workers started")
}

// Close 释放外部连接
func (s *Services) Close() error {
	if err := s.Crawler.Close(); err != nil {
		s.logger.Warn("Failed to close crawler", "error", err)
	}
	return s.Broker.Close()
}
