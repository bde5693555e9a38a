package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"hearth/internal/models"

	"gorm.io/gorm"
)

// FollowState 关注操作后的权威状态
type FollowState struct {
	Following bool  `json:"following"`
	Followers int64 `json:"followers"`
}

type FollowService struct {
	db       *gorm.DB
	notifier *NotificationService
}

func NewFollowService(db *gorm.DB, notifier *NotificationService) *FollowService {
	return &FollowService{db: db, notifier: notifier}
}

func (s *FollowService) checkPair(tx *gorm.DB, followerID, followeeID uint) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}
	var user models.User
	err := tx.Select("id").First(&user, followeeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("user %d: %w", followeeID, ErrNotFound)
	}
	return err
}

func (s *FollowService) follow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var created bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkPair(tx, followerID, followeeID); err != nil {
			return err
		}
		res := tx.Exec(
			"INSERT INTO follows (follower_id, followee_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
			followerID, followeeID, time.Now(),
		)
		created = res.RowsAffected > 0
		return res.Error
	})
	if err != nil {
		return false, err
	}

	if created {
		actor := followerID
		s.notifier.NotifyLogged(ctx, &models.Notification{
			UserID:     followeeID,
			ActorID:    &actor,
			Type:       models.NotificationTypeFollow,
			TargetType: "user",
			TargetID:   strconv.FormatUint(uint64(followerID), 10),
			Message:    "关注了你",
		})
	}
	return created, nil
}

func (s *FollowService) unfollow(ctx context.Context, followerID, followeeID uint) error {
	return s.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{}).Error
}

func (s *FollowService) state(ctx context.Context, followerID, followeeID uint) (FollowState, error) {
	var st FollowState
	var err error
	if st.Following, err = s.IsFollowing(ctx, followerID, followeeID); err != nil {
		return st, err
	}
	st.Followers, _, err = s.Counts(ctx, followeeID)
	return st, err
}

// Follow 幂等，重复关注不会重复通知
func (s *FollowService) Follow(ctx context.Context, followerID, followeeID uint) (FollowState, error) {
	if _, err := s.follow(ctx, followerID, followeeID); err != nil {
		return FollowState{}, err
	}
	return s.state(ctx, followerID, followeeID)
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID uint) (FollowState, error) {
	if followerID == followeeID {
		return FollowState{}, ErrSelfFollow
	}
	if err := s.unfollow(ctx, followerID, followeeID); err != nil {
		return FollowState{}, err
	}
	return s.state(ctx, followerID, followeeID)
}

// Toggle 乐观 UI 使用
func (s *FollowService) Toggle(ctx context.Context, followerID, followeeID uint) (FollowState, error) {
	following, err := s.IsFollowing(ctx, followerID, followeeID)
	if err != nil {
		return FollowState{}, err
	}
	if following {
		return s.Unfollow(ctx, followerID, followeeID)
	}
	return s.Follow(ctx, followerID, followeeID)
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	return count > 0, err
}

// Counts 粉丝数和关注数
func (s *FollowService) Counts(ctx context.Context, userID uint) (followers, following int64, err error) {
	if err = s.db.WithContext(ctx).Model(&models.Follow{}).Where("followee_id = ?", userID).Count(&followers).Error; err != nil {
		return
	}
	err = s.db.WithContext(ctx).Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&following).Error
	return
}

// Followers 关注 userID 的用户，最近关注的在前
func (s *FollowService) Followers(ctx context.Context, userID uint, req PageRequest) (Page[models.User], error) {
	q := s.db.Model(&models.User{}).
		Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.followee_id = ?", userID).
		Order("follows.created_at DESC").Order("users.id DESC")
	return Paginate[models.User](ctx, q, req)
}

// Following userID 关注的用户
func (s *FollowService) Following(ctx context.Context, userID uint, req PageRequest) (Page[models.User], error) {
	q := s.db.Model(&models.User{}).
		Joins("JOIN follows ON follows.followee_id = users.id").
		Where("follows.follower_id = ?", userID).
		Order("follows.created_at DESC").Order("users.id DESC")
	return Paginate[models.User](ctx, q, req)
}
