package services

import (
	"context"
	"fmt"
	"log/slog"

	"hearth/internal/models"
	"hearth/internal/realtime"

	"gorm.io/gorm"
)

// NotificationService 站内通知：写库后推送到接收者的实时 topic
type NotificationService struct {
	db     *gorm.DB
	broker realtime.Broker
	logger *slog.Logger
}

func NewNotificationService(db *gorm.DB, broker realtime.Broker, logger *slog.Logger) *NotificationService {
	return &NotificationService{db: db, broker: broker, logger: logger.With("component", "notifications")}
}

// Notify 创建通知，自己触发的动作不通知自己
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) error {
	if n.UserID == 0 || (n.ActorID != nil && *n.ActorID == n.UserID) {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	ev, err := realtime.NewEvent(realtime.EventNotificationCreated, realtime.UserTopic(n.UserID), n)
	if err == nil {
		err = s.broker.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warn("Failed to publish notification", "user_id", n.UserID, "error", err)
	}
	return nil
}

// NotifyLogged 副作用场景使用，失败只记日志
func (s *NotificationService) NotifyLogged(ctx context.Context, n *models.Notification) {
	if err := s.Notify(ctx, n); err != nil {
		s.logger.Error("Failed to notify", "user_id", n.UserID, "type", n.Type, "error", err)
	}
}

// List 新的在前；unreadOnly 只看未读
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, req PageRequest) (Page[models.Notification], error) {
	q := s.db.Model(&models.Notification{}).Preload("Actor").Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	q = q.Order("created_at DESC").Order("id DESC")
	return Paginate[models.Notification](ctx, q, req)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead 只能标记自己的通知
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead 返回被标记的条数
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
