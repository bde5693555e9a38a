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

const (
	maxTitleLength = 200
	maxTags        = 5

	postTopCacheKey = "feed:posts:top"
)

// PostInput 创建和编辑帖子的参数
type PostInput struct {
	Title      string          `json:"title"`
	URL        string          `json:"url"`
	Content    string          `json:"content"`
	Prompt     string          `json:"prompt"`
	Kind       models.PostKind `json:"kind"`
	CategoryID uint            `json:"category_id"`
	Tags       []string        `json:"tags"`
}

// PostFilter 帖子列表的筛选条件，零值表示全部
type PostFilter struct {
	CategoryID   uint
	CategorySlug string
	Kind         models.PostKind
	AuthorID     uint
	FollowingOf  uint // 只看该用户关注的人的帖子
	Query        string
	BookmarkedBy uint
}

func (f PostFilter) IsZero() bool {
	return f == PostFilter{}
}

// PostItem 列表中的帖子，带当前用户的点赞/收藏状态
type PostItem struct {
	models.Post
	Liked       bool          `json:"liked"`
	Bookmarked  bool          `json:"bookmarked"`
	AuthorBadge *models.Badge `json:"author_badge,omitempty"`
}

// PostDetail 详情页，Content 渲染为清洗后的 HTML
type PostDetail struct {
	PostItem
	HTML template.HTML `json:"html"`
}

type PostService struct {
	db        *gorm.DB
	cache     *utils.Cache
	likes     *Toggler
	bookmarks *Toggler
	badges    *BadgeService
	points    *PointsService
	ranking   *RankingService
	notifier  *NotificationService
	pageSize  int
	logger    *slog.Logger
}

func (s *PostService) normalizeInput(ctx context.Context, in *PostInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.URL = strings.TrimSpace(in.URL)
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Title == "" {
		return invalid("标题不能为空")
	}
	if len([]rune(in.Title)) > maxTitleLength {
		return invalid("标题最多 %d 个字符", maxTitleLength)
	}
	if in.Kind == "" {
		in.Kind = models.PostKindCommunity
	}
	if !in.Kind.Valid() {
		return invalid("未知的帖子类型 %q", in.Kind)
	}
	if in.Kind == models.PostKindPrompt && in.Prompt == "" {
		return invalid("Prompt 帖子需要填写 prompt 内容")
	}
	if in.URL != "" && !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
		return invalid("链接必须以 http:// 或 https:// 开头")
	}

	if in.CategoryID == 0 {
		in.CategoryID = 1
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", in.CategoryID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return invalid("分类不存在")
	}

	tags := lo.Map(in.Tags, func(t string, _ int) string { return strings.ToLower(strings.TrimSpace(t)) })
	tags = lo.Uniq(lo.Reject(tags, func(t string, _ int) bool { return t == "" }))
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	in.Tags = tags
	return nil
}

// Create 发帖，每天前 3 篇加积分
func (s *PostService) Create(ctx context.Context, author *models.User, in PostInput) (*models.Post, error) {
	if err := ensureCanWrite(ctx, s.db, author); err != nil {
		return nil, err
	}
	if err := s.normalizeInput(ctx, &in); err != nil {
		return nil, err
	}

	post := models.Post{
		Pid:        utils.RandString(8),
		UserID:     author.ID,
		CategoryID: in.CategoryID,
		Kind:       in.Kind,
		Title:      in.Title,
		URL:        in.URL,
		Content:    in.Content,
		Prompt:     in.Prompt,
		Tags:       in.Tags,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User", "Category").Create(&post).Error; err != nil {
			return err
		}
		if s.points.CanEarnTx(tx, author.ID, ActionPostCreate, DailyPostLimit) {
			return s.points.AddTx(tx, PointChange{
				UserID: author.ID, Amount: PointsPostCreate, Action: ActionPostCreate,
				RefType: "post", RefID: post.Pid,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.cache.Delete(postTopCacheKey)
	s.ranking.Schedule(RankPost, post.ID)
	s.logger.Info("Post created", "pid", post.Pid, "user_id", author.ID, "kind", post.Kind)
	return &post, nil
}

func (s *PostService) byPid(ctx context.Context, pid string) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Preload("User").Preload("Category").Where("pid = ?", pid).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("post %s: %w", pid, ErrNotFound)
	}
	return &post, err
}

// Update 只有作者可以编辑
func (s *PostService) Update(ctx context.Context, user *models.User, pid string, in PostInput) (*models.Post, error) {
	post, err := s.byPid(ctx, pid)
	if err != nil {
		return nil, err
	}
	if post.UserID != user.ID {
		return nil, ErrForbidden
	}
	if err := ensureCanWrite(ctx, s.db, user); err != nil {
		return nil, err
	}
	if err := s.normalizeInput(ctx, &in); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(&models.Post{ID: post.ID}).
		Select("title", "url", "content", "prompt", "kind", "category_id", "tags").
		Updates(models.Post{
			Title:      in.Title,
			URL:        in.URL,
			Content:    in.Content,
			Prompt:     in.Prompt,
			Kind:       in.Kind,
			CategoryID: in.CategoryID,
			Tags:       in.Tags,
		}).Error
	if err != nil {
		return nil, err
	}
	s.cache.Delete(postTopCacheKey)
	return s.byPid(ctx, pid)
}

// Delete 作者或管理员硬删除，作者扣积分
func (s *PostService) Delete(ctx context.Context, user *models.User, pid string) error {
	post, err := s.byPid(ctx, pid)
	if err != nil {
		return err
	}
	if !canModify(user, post.UserID) {
		return ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Post{}, post.ID).Error; err != nil {
			return err
		}
		return s.points.AddTx(tx, PointChange{
			UserID: post.UserID, Amount: PointsPostDeleted, Action: ActionPostDeleted,
			RefType: "post", RefID: post.Pid,
		})
	})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}

	s.cache.Delete(postTopCacheKey)
	if user.ID != post.UserID {
		s.notifier.NotifyLogged(ctx, &models.Notification{
			UserID:     post.UserID,
			Type:       models.NotificationTypeSystem,
			TargetType: "post",
			TargetID:   post.Pid,
			Message:    "你的帖子《" + post.Title + "》因违规已被管理员删除",
		})
	}
	s.logger.Info("Post deleted", "pid", pid, "by", user.ID)
	return nil
}

// Detail 浏览数 +1 并安排重新计算热度
func (s *PostService) Detail(ctx context.Context, viewerID uint, pid string) (*PostDetail, error) {
	post, err := s.byPid(ctx, pid)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", post.ID).
		UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
		s.logger.Warn("Failed to count view", "pid", pid, "error", err)
	} else {
		post.Views++
	}
	s.ranking.Schedule(RankPost, post.ID)

	items, err := s.annotate(ctx, viewerID, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &PostDetail{PostItem: items[0], HTML: utils.RenderMarkdown(post.Content)}, nil
}

// Feed 帖子列表；匿名用户 top 第一页走缓存
func (s *PostService) Feed(ctx context.Context, viewerID uint, f PostFilter, req PageRequest) (Page[PostItem], error) {
	req = req.Normalize(s.pageSize)
	if req.Sort == "" {
		req.Sort = SortNew
	}

	cacheable := viewerID == 0 && f.IsZero() && req.Sort == SortTop && req.Offset == 0 && req.Size == s.pageSize
	if cacheable {
		if cached, ok := s.cache.Get(postTopCacheKey).(Page[PostItem]); ok {
			return cached, nil
		}
	}

	q := s.db.Model(&models.Post{}).Preload("User").Preload("Category")
	switch {
	case f.CategoryID != 0:
		q = q.Where("posts.category_id = ?", f.CategoryID)
	case f.CategorySlug != "":
		q = q.Joins("JOIN categories ON categories.id = posts.category_id").Where("categories.slug = ?", f.CategorySlug)
	}
	if f.Kind != "" {
		q = q.Where("posts.kind = ?", f.Kind)
	}
	if f.AuthorID != 0 {
		q = q.Where("posts.user_id = ?", f.AuthorID)
	}
	if f.FollowingOf != 0 {
		q = q.Where("posts.user_id IN (?)",
			s.db.Model(&models.Follow{}).Select("followee_id").Where("follower_id = ?", f.FollowingOf))
	}
	if f.Query != "" {
		like := "%" + escapeLike(f.Query) + "%"
		q = q.Where("posts.title ILIKE ? OR posts.content ILIKE ? OR posts.prompt ILIKE ?", like, like, like)
	}
	if f.BookmarkedBy != 0 {
		q = q.Where("posts.id IN (?)",
			s.db.Model(&models.PostBookmark{}).Select("post_id").Where("user_id = ?", f.BookmarkedBy))
	}
	q = applyOrder(q, postOrder(req.Sort))

	page, err := Paginate[models.Post](ctx, q, req)
	if err != nil {
		return Page[PostItem]{}, err
	}
	items, err := s.annotate(ctx, viewerID, page.Items)
	if err != nil {
		return Page[PostItem]{}, err
	}

	out := Page[PostItem]{Items: items, HasMore: page.HasMore, NextOffset: page.NextOffset}
	if cacheable {
		s.cache.Set(postTopCacheKey, out, feedCacheTTL)
	}
	return out, nil
}

// annotate 每种标注一条查询
func (s *PostService) annotate(ctx context.Context, viewerID uint, posts []models.Post) ([]PostItem, error) {
	ids := lo.Map(posts, func(p models.Post, _ int) uint { return p.ID })
	authors := lo.Uniq(lo.Map(posts, func(p models.Post, _ int) uint { return p.UserID }))

	liked, err := s.likes.ActiveSet(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	bookmarked, err := s.bookmarks.ActiveSet(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	badges, err := s.badges.Equipped(ctx, authors)
	if err != nil {
		return nil, err
	}

	items := make([]PostItem, len(posts))
	for i, p := range posts {
		items[i] = PostItem{Post: p, Liked: liked[p.ID], Bookmarked: bookmarked[p.ID]}
		if b, ok := badges[p.UserID]; ok {
			items[i].AuthorBadge = &b
		}
	}
	return items, nil
}

// ResolveID pid -> 内部 ID，供点赞收藏使用
func (s *PostService) ResolveID(ctx context.Context, pid string) (uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("pid = ?", pid).Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("post %s: %w", pid, ErrNotFound)
	}
	return ids[0], nil
}

// Categories 全部分类
func (s *PostService) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.WithContext(ctx).Order("id ASC").Find(&categories).Error
	return categories, err
}
