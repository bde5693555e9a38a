package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"hearth/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 积分动作常量
const (
	ActionPostCreate     = "发布帖子"
	ActionPostLiked      = "帖子获赞"
	ActionPostUnliked    = "帖子取消点赞"
	ActionPostBookmarked = "帖子被收藏"
	ActionPostUnbookmark = "帖子取消收藏"
	ActionPostDeleted    = "删除帖子"
	ActionCommentCreate  = "发布评论"
	ActionCommentLiked   = "评论获赞"
	ActionCommentUnliked = "评论取消点赞"
	ActionCommentDeleted = "删除评论"
	ActionNewsLiked      = "投稿获赞"
	ActionNewsBookmarked = "投稿被收藏"
	ActionCheckIn        = "每日签到"
	ActionCheckInBonus   = "签到额外奖励"
	ActionBadgePurchase  = "购买徽章"
)

// 积分值常量
const (
	PointsPostCreate     = 1
	PointsPostLiked      = 1
	PointsPostBookmarked = 3
	PointsPostDeleted    = -10
	PointsCommentCreate  = 1
	PointsCommentLiked   = 1
	PointsCommentDeleted = -3
	PointsCheckIn        = 1
)

// 每日限制
const (
	DailyPostLimit    = 3 // 每天前3篇帖子有积分
	DailyCommentLimit = 3 // 每天前3条评论有积分
)

// CheckInResult 签到结果
type CheckInResult struct {
	Points int `json:"points"`
	Bonus  int `json:"bonus"`
	Total  int `json:"total"` // 签到后的余额
}

// PointsService 积分账本：余额变动和流水写在同一个事务里
type PointsService struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
	roll   func(n int) int
}

func NewPointsService(db *gorm.DB, logger *slog.Logger) *PointsService {
	return &PointsService{
		db:     db,
		logger: logger.With("component", "points"),
		now:    time.Now,
		roll:   rand.Intn,
	}
}

// PointChange 一笔积分变动
type PointChange struct {
	UserID  uint
	Amount  int
	Action  string
	RefType string
	RefID   string
}

// AddTx 在调用方的事务里记账
func (s *PointsService) AddTx(tx *gorm.DB, c PointChange) error {
	entry := models.PointLog{
		UserID:  c.UserID,
		Amount:  c.Amount,
		Action:  c.Action,
		RefType: c.RefType,
		RefID:   c.RefID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}

	return tx.Model(&models.User{}).
		Where("id = ?", c.UserID).
		UpdateColumn("points", gorm.Expr("points + ?", c.Amount)).
		Error
}

// Add 使用事务添加积分并记录明细
func (s *PointsService) Add(ctx context.Context, c PointChange) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.AddTx(tx, c)
	})
}

// AddLogged 副作用场景使用，失败只记日志
func (s *PointsService) AddLogged(ctx context.Context, c PointChange) {
	if c.UserID == 0 || c.Amount == 0 {
		return
	}
	if err := s.Add(ctx, c); err != nil {
		s.logger.Error("Failed to add points", "user_id", c.UserID, "action", c.Action, "error", err)
	}
}

// SpendTx 余额不足时返回 ErrInsufficientPoints，余额不变
func (s *PointsService) SpendTx(tx *gorm.DB, c PointChange) error {
	if c.Amount <= 0 {
		return nil
	}
	res := tx.Model(&models.User{}).
		Where("id = ? AND points >= ?", c.UserID, c.Amount).
		UpdateColumn("points", gorm.Expr("points - ?", c.Amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientPoints
	}
	return tx.Create(&models.PointLog{
		UserID:  c.UserID,
		Amount:  -c.Amount,
		Action:  c.Action,
		RefType: c.RefType,
		RefID:   c.RefID,
	}).Error
}

// todayRange 获取今日的开始和结束时间
func (s *PointsService) todayRange() (time.Time, time.Time) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return startOfDay, startOfDay.Add(24 * time.Hour)
}

// countToday 统计今日指定动作的积分记录数
func (s *PointsService) countToday(tx *gorm.DB, userID uint, action string) (int64, error) {
	start, end := s.todayRange()
	var count int64
	err := tx.Model(&models.PointLog{}).
		Where("user_id = ? AND action = ? AND created_at >= ? AND created_at < ?", userID, action, start, end).
		Count(&count).Error
	return count, err
}

// CanEarnTx 今日该动作的得分次数是否还没到上限
func (s *PointsService) CanEarnTx(tx *gorm.DB, userID uint, action string, limit int) bool {
	count, err := s.countToday(tx, userID, action)
	if err != nil {
		s.logger.Warn("Failed to count point logs", "user_id", userID, "action", action, "error", err)
		return false
	}
	return count < int64(limit)
}

// CheckIn 每日签到：基础 1 分，约 30% 概率额外获得 1-3 分
func (s *PointsService) CheckIn(ctx context.Context, userID uint) (CheckInResult, error) {
	result := CheckInResult{Points: PointsCheckIn}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁住用户行，避免同一用户并发签到两次
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; err != nil {
			return err
		}
		done, err := s.countToday(tx, userID, ActionCheckIn)
		if err != nil {
			return err
		}
		if done > 0 {
			return ErrAlreadyCheckedIn
		}

		if err := s.AddTx(tx, PointChange{UserID: userID, Amount: result.Points, Action: ActionCheckIn}); err != nil {
			return err
		}

		if s.roll(100) < 30 {
			result.Bonus = s.roll(3) + 1
			if err := s.AddTx(tx, PointChange{UserID: userID, Amount: result.Bonus, Action: ActionCheckInBonus}); err != nil {
				return err
			}
		}
		result.Total = user.Points + result.Points + result.Bonus
		return nil
	})
	if err != nil {
		return CheckInResult{}, fmt.Errorf("check in: %w", err)
	}
	return result, nil
}

// CheckedInToday 今日是否已签到
func (s *PointsService) CheckedInToday(ctx context.Context, userID uint) (bool, error) {
	count, err := s.countToday(s.db.WithContext(ctx), userID, ActionCheckIn)
	return count > 0, err
}

// Logs 积分流水，新的在前
func (s *PointsService) Logs(ctx context.Context, userID uint, req PageRequest) (Page[models.PointLog], error) {
	q := s.db.Model(&models.PointLog{}).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC")
	return Paginate[models.PointLog](ctx, q, req)
}
