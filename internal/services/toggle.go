package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ToggleSpec 描述一种 (user, target) 关系表及其在目标表上的计数列
type ToggleSpec struct {
	Name          string
	JoinTable     string // post_likes
	TargetTable   string // posts
	TargetColumn  string // post_id
	CounterColumn string // like_count
	OwnerColumn   string // 目标作者列，可为 nullable
}

var (
	PostLikeSpec = ToggleSpec{
		Name: "post_like", JoinTable: "post_likes", TargetTable: "posts",
		TargetColumn: "post_id", CounterColumn: "like_count", OwnerColumn: "user_id",
	}
	PostBookmarkSpec = ToggleSpec{
		Name: "post_bookmark", JoinTable: "post_bookmarks", TargetTable: "posts",
		TargetColumn: "post_id", CounterColumn: "bookmark_count", OwnerColumn: "user_id",
	}
	CommentLikeSpec = ToggleSpec{
		Name: "comment_like", JoinTable: "comment_likes", TargetTable: "comments",
		TargetColumn: "comment_id", CounterColumn: "like_count", OwnerColumn: "user_id",
	}
	NewsLikeSpec = ToggleSpec{
		Name: "news_like", JoinTable: "news_likes", TargetTable: "news_articles",
		TargetColumn: "news_article_id", CounterColumn: "like_count", OwnerColumn: "submitter_id",
	}
	NewsBookmarkSpec = ToggleSpec{
		Name: "news_bookmark", JoinTable: "news_bookmarks", TargetTable: "news_articles",
		TargetColumn: "news_article_id", CounterColumn: "bookmark_count", OwnerColumn: "submitter_id",
	}
)

// ToggleResult 切换后的权威状态，客户端据此确认或回滚乐观更新
type ToggleResult struct {
	Active bool  `json:"active"`
	Count  int64 `json:"count"`
}

// ToggleEvent 提交后触发的变更
type ToggleEvent struct {
	Spec     ToggleSpec
	UserID   uint
	TargetID uint
	OwnerID  uint // 0 表示没有作者（例如 RSS 新闻）
	Active   bool
}

// Toggler 点赞、收藏等开关关系的通用实现
type Toggler struct {
	db       *gorm.DB
	spec     ToggleSpec
	onChange []func(ctx context.Context, ev ToggleEvent)
}

func NewToggler(db *gorm.DB, spec ToggleSpec) *Toggler {
	return &Toggler{db: db, spec: spec}
}

// OnChange 注册提交后的回调，只有状态真的变化时才调用
func (t *Toggler) OnChange(fn func(ctx context.Context, ev ToggleEvent)) {
	t.onChange = append(t.onChange, fn)
}

type toggleTarget struct {
	Count   int64
	OwnerID uint
}

// lockTarget 锁住目标行，计数更新按行串行
func (t *Toggler) lockTarget(tx *gorm.DB, targetID uint) (toggleTarget, error) {
	var target toggleTarget
	owner := "0"
	if t.spec.OwnerColumn != "" {
		owner = "COALESCE(" + t.spec.OwnerColumn + ", 0)"
	}
	res := tx.Raw(
		fmt.Sprintf("SELECT %s AS count, %s AS owner_id FROM %s WHERE id = ? FOR UPDATE",
			t.spec.CounterColumn, owner, t.spec.TargetTable),
		targetID,
	).Scan(&target)
	if res.Error != nil {
		return target, res.Error
	}
	if res.RowsAffected == 0 {
		return target, fmt.Errorf("%s %d: %w", t.spec.TargetTable, targetID, ErrNotFound)
	}
	return target, nil
}

func (t *Toggler) insert(tx *gorm.DB, userID, targetID uint) (bool, error) {
	res := tx.Exec(
		fmt.Sprintf("INSERT INTO %s (user_id, %s, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING",
			t.spec.JoinTable, t.spec.TargetColumn),
		userID, targetID, time.Now(),
	)
	return res.RowsAffected > 0, res.Error
}

func (t *Toggler) delete(tx *gorm.DB, userID, targetID uint) (bool, error) {
	res := tx.Exec(
		fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND %s = ?", t.spec.JoinTable, t.spec.TargetColumn),
		userID, targetID,
	)
	return res.RowsAffected > 0, res.Error
}

// adjust 计数 ±1，不会小于 0
func (t *Toggler) adjust(tx *gorm.DB, targetID uint, delta int) (int64, error) {
	var count int64
	err := tx.Raw(
		fmt.Sprintf("UPDATE %s SET %s = GREATEST(%s + ?, 0) WHERE id = ? RETURNING %s",
			t.spec.TargetTable, t.spec.CounterColumn, t.spec.CounterColumn, t.spec.CounterColumn),
		delta, targetID,
	).Scan(&count).Error
	return count, err
}

// apply want 为 nil 时取反，否则设为指定状态
func (t *Toggler) apply(ctx context.Context, userID, targetID uint, want *bool) (ToggleResult, error) {
	var (
		result  ToggleResult
		changed bool
		ownerID uint
	)

	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target, err := t.lockTarget(tx, targetID)
		if err != nil {
			return err
		}
		ownerID = target.OwnerID
		result.Count = target.Count

		delta := 0
		switch {
		case want == nil:
			removed, err := t.delete(tx, userID, targetID)
			if err != nil {
				return err
			}
			if removed {
				delta = -1
				break
			}
			inserted, err := t.insert(tx, userID, targetID)
			if err != nil {
				return err
			}
			// 并发插入冲突按已激活处理
			result.Active = true
			if inserted {
				delta = 1
			}
		case *want:
			inserted, err := t.insert(tx, userID, targetID)
			if err != nil {
				return err
			}
			result.Active = true
			if inserted {
				delta = 1
			}
		default:
			removed, err := t.delete(tx, userID, targetID)
			if err != nil {
				return err
			}
			if removed {
				delta = -1
			}
		}

		if delta == 0 {
			return nil
		}
		changed = true
		result.Count, err = t.adjust(tx, targetID, delta)
		return err
	})
	if err != nil {
		return ToggleResult{}, err
	}

	if changed {
		ev := ToggleEvent{Spec: t.spec, UserID: userID, TargetID: targetID, OwnerID: ownerID, Active: result.Active}
		for _, fn := range t.onChange {
			fn(ctx, ev)
		}
	}
	return result, nil
}

// Toggle 有则删、无则加
func (t *Toggler) Toggle(ctx context.Context, userID, targetID uint) (ToggleResult, error) {
	return t.apply(ctx, userID, targetID, nil)
}

// Set 幂等地设置状态，重复调用不会重复计数
func (t *Toggler) Set(ctx context.Context, userID, targetID uint, active bool) (ToggleResult, error) {
	return t.apply(ctx, userID, targetID, &active)
}

// IsActive 单个目标的状态
func (t *Toggler) IsActive(ctx context.Context, userID, targetID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	var count int64
	err := t.db.WithContext(ctx).Table(t.spec.JoinTable).
		Where("user_id = ? AND "+t.spec.TargetColumn+" = ?", userID, targetID).
		Count(&count).Error
	return count > 0, err
}

// ActiveSet 返回 ids 中用户已激活的那些，用于一次性标注整页数据
func (t *Toggler) ActiveSet(ctx context.Context, userID uint, ids []uint) (map[uint]bool, error) {
	set := make(map[uint]bool)
	if userID == 0 || len(ids) == 0 {
		return set, nil
	}
	var active []uint
	err := t.db.WithContext(ctx).Table(t.spec.JoinTable).
		Where("user_id = ? AND "+t.spec.TargetColumn+" IN ?", userID, ids).
		Pluck(t.spec.TargetColumn, &active).Error
	if err != nil {
		return nil, err
	}
	for _, id := range active {
		set[id] = true
	}
	return set, nil
}
