package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"hearth/internal/models"
	"hearth/internal/utils"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

const maxCommentLength = 5000

type CommentInput struct {
	Content   string `json:"content"`
	ParentCid string `json:"parent_cid"`
}

// CommentItem 带楼层号的评论
type CommentItem struct {
	models.Comment
	Floor       int           `json:"floor"`
	Liked       bool          `json:"liked"`
	HTML        template.HTML `json:"html"`
	AuthorBadge *models.Badge `json:"author_badge,omitempty"`
}

type CommentService struct {
	db       *gorm.DB
	likes    *Toggler
	badges   *BadgeService
	points   *PointsService
	ranking  *RankingService
	notifier *NotificationService
	logger   *slog.Logger
}

// Create 发表评论，可回复同一帖子下的另一条评论
func (s *CommentService) Create(ctx context.Context, user *models.User, pid string, in CommentInput) (*models.Comment, error) {
	if err := ensureCanWrite(ctx, s.db, user); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, invalid("评论内容不能为空")
	}
	if len([]rune(content)) > maxCommentLength {
		return nil, invalid("评论最多 %d 个字符", maxCommentLength)
	}

	var post models.Post
	err := s.db.WithContext(ctx).Where("pid = ?", pid).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("post %s: %w", pid, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var parent *models.Comment
	if in.ParentCid != "" {
		var p models.Comment
		err := s.db.WithContext(ctx).Where("cid = ?", in.ParentCid).First(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && p.PostID != post.ID) {
			return nil, invalid("回复的评论不存在")
		}
		if err != nil {
			return nil, err
		}
		parent = &p
	}

	comment := models.Comment{
		Cid:     utils.RandString(8),
		PostID:  post.ID,
		UserID:  user.ID,
		Content: content,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Post", "User", "Parent").Create(&comment).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error; err != nil {
			return err
		}
		if s.points.CanEarnTx(tx, user.ID, ActionCommentCreate, DailyCommentLimit) {
			return s.points.AddTx(tx, PointChange{
				UserID: user.ID, Amount: PointsCommentCreate, Action: ActionCommentCreate,
				RefType: "comment", RefID: comment.Cid,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.ranking.Schedule(RankPost, post.ID)
	s.notifyComment(ctx, user, &post, parent, &comment)

	comment.User = *user
	return &comment, nil
}

// notifyComment 回复通知被回复者；帖子作者收到评论通知（已作为被回复者通知过的不再重复）
func (s *CommentService) notifyComment(ctx context.Context, actor *models.User, post *models.Post, parent *models.Comment, c *models.Comment) {
	actorID := actor.ID
	target := post.Pid + "#" + c.Cid

	if parent != nil {
		s.notifier.NotifyLogged(ctx, &models.Notification{
			UserID:     parent.UserID,
			ActorID:    &actorID,
			Type:       models.NotificationTypeReplyComment,
			TargetType: "comment",
			TargetID:   target,
			Message:    fmt.Sprintf("在《%s》中回复了你的评论", post.Title),
		})
		if parent.UserID == post.UserID {
			return
		}
	}
	s.notifier.NotifyLogged(ctx, &models.Notification{
		UserID:     post.UserID,
		ActorID:    &actorID,
		Type:       models.NotificationTypeCommentPost,
		TargetType: "comment",
		TargetID:   target,
		Message:    fmt.Sprintf("评论了你的帖子《%s》", post.Title),
	})
}

// List 按时间正序，楼层从 1 开始
func (s *CommentService) List(ctx context.Context, viewerID uint, pid string) ([]CommentItem, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Select("id").Where("pid = ?", pid).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("post %s: %w", pid, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var comments []models.Comment
	if err := s.db.WithContext(ctx).Preload("User").
		Where("post_id = ?", post.ID).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}

	ids := lo.Map(comments, func(c models.Comment, _ int) uint { return c.ID })
	liked, err := s.likes.ActiveSet(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	badges, err := s.badges.Equipped(ctx, lo.Uniq(lo.Map(comments, func(c models.Comment, _ int) uint { return c.UserID })))
	if err != nil {
		return nil, err
	}

	items := make([]CommentItem, len(comments))
	for i, c := range comments {
		items[i] = CommentItem{Comment: c, Floor: i + 1, Liked: liked[c.ID], HTML: utils.RenderMarkdown(c.Content)}
		if b, ok := badges[c.UserID]; ok {
			items[i].AuthorBadge = &b
		}
	}
	return items, nil
}

// Delete 软删除：替换内容、保留楼层，评论数 -1，作者扣积分
func (s *CommentService) Delete(ctx context.Context, user *models.User, cid string) error {
	var comment models.Comment
	err := s.db.WithContext(ctx).Where("cid = ?", cid).First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("comment %s: %w", cid, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if !canModify(user, comment.UserID) {
		return ErrForbidden
	}
	if comment.Deleted {
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Comment{}).Where("id = ? AND deleted = ?", comment.ID, false).
			Updates(map[string]any{"content": models.DeletedCommentContent, "deleted": true})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comment_count", gorm.Expr("GREATEST(comment_count - 1, 0)")).Error; err != nil {
			return err
		}
		return s.points.AddTx(tx, PointChange{
			UserID: comment.UserID, Amount: PointsCommentDeleted, Action: ActionCommentDeleted,
			RefType: "comment", RefID: comment.Cid,
		})
	})
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	s.ranking.Schedule(RankPost, comment.PostID)
	return nil
}

// ResolveID cid -> 内部 ID
func (s *CommentService) ResolveID(ctx context.Context, cid string) (uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Comment{}).Where("cid = ?", cid).Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("comment %s: %w", cid, ErrNotFound)
	}
	return ids[0], nil
}
