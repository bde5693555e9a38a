package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hearth/internal/models"
	"hearth/internal/utils"

	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	rsshubScheme     = "rsshub://"
	newsTopCacheKey  = "feed:news:top"
	excerptMaxLength = 200
)

// NewsFilter 新闻列表筛选，零值表示全部
type NewsFilter struct {
	SourceID     uint
	SourceType   string
	Query        string
	BookmarkedBy uint
}

func (f NewsFilter) IsZero() bool {
	return f == NewsFilter{}
}

type NewsItem struct {
	models.NewsArticle
	Liked      bool `json:"liked"`
	Bookmarked bool `json:"bookmarked"`
}

type NewsDetail struct {
	NewsItem
	HTML template.HTML `json:"html"`
}

// NewsConfig 抓取相关配置
type NewsConfig struct {
	RSSHubURL     string
	FetchInterval time.Duration
	RetentionDays int
	PageSize      int
}

// NewsService 新闻源管理、RSS 抓取和新闻列表
type NewsService struct {
	db        *gorm.DB
	parser    *gofeed.Parser
	cache     *utils.Cache
	likes     *Toggler
	bookmarks *Toggler
	ranking   *RankingService
	cfg       NewsConfig
	logger    *slog.Logger
	now       func() time.Time
}

func newFeedParser() *gofeed.Parser {
	parser := gofeed.NewParser()
	parser.UserAgent = browserUserAgent
	parser.Client = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 2,
		},
	}
	return parser
}

// ExpandSourceURL rsshub:// 前缀替换为 RSSHub 实例地址
func ExpandSourceURL(raw, rsshubInstance string) string {
	path, ok := strings.CutPrefix(raw, rsshubScheme)
	if !ok {
		return raw
	}
	if rsshubInstance == "" {
		rsshubInstance = "https://rsshub.app"
	}
	return strings.TrimSuffix(rsshubInstance, "/") + "/" + strings.TrimPrefix(path, "/")
}

func validSourceURL(raw string) bool {
	if strings.HasPrefix(raw, rsshubScheme) {
		return len(raw) > len(rsshubScheme)
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// AddSource 已存在则直接返回；新源会立即抓取一次
func (s *NewsService) AddSource(ctx context.Context, rawURL string) (*models.NewsSource, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !validSourceURL(rawURL) {
		return nil, invalid("订阅地址必须是 http(s):// 或 rsshub:// 开头")
	}

	var existing models.NewsSource
	err := s.db.WithContext(ctx).Where("url = ?", rawURL).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	feed, err := s.parser.ParseURLWithContext(ExpandSourceURL(rawURL, s.cfg.RSSHubURL), ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: 解析 RSS 失败: %v", ErrInvalidInput, err)
	}

	src := models.NewsSource{
		URL:     rawURL,
		Title:   strings.TrimSpace(feed.Title),
		SiteURL: feed.Link,
		Enabled: true,
	}
	if src.Title == "" {
		src.Title = rawURL
	}
	if feed.Image != nil {
		src.IconURL = feed.Image.URL
	}
	if err := s.db.WithContext(ctx).Create(&src).Error; err != nil {
		return nil, fmt.Errorf("保存订阅源失败: %w", err)
	}

	n := s.storeItems(ctx, &src, feed)
	s.touchSource(ctx, src.ID)
	s.logger.Info("News source added", "source_id", src.ID, "url", rawURL, "items", n)
	return &src, nil
}

func (s *NewsService) Sources(ctx context.Context) ([]models.NewsSource, error) {
	var sources []models.NewsSource
	err := s.db.WithContext(ctx).Order("id ASC").Find(&sources).Error
	return sources, err
}

func (s *NewsService) SetSourceEnabled(ctx context.Context, id uint, enabled bool) error {
	res := s.db.WithContext(ctx).Model(&models.NewsSource{}).Where("id = ?", id).Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteSource 已抓取的新闻保留，source_id 置空
func (s *NewsService) DeleteSource(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.NewsSource{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *NewsService) touchSource(ctx context.Context, id uint) {
	now := s.now()
	if err := s.db.WithContext(ctx).Model(&models.NewsSource{}).Where("id = ?", id).
		Update("last_fetch_at", &now).Error; err != nil {
		s.logger.Warn("Failed to update last fetch time", "source_id", id, "error", err)
	}
}

// FetchSource 抓取单个源，返回新增条数
func (s *NewsService) FetchSource(ctx context.Context, src *models.NewsSource) (int, error) {
	feed, err := s.parser.ParseURLWithContext(ExpandSourceURL(src.URL, s.cfg.RSSHubURL), ctx)
	if err != nil {
		return 0, fmt.Errorf("解析 RSS 失败: %w", err)
	}
	n := s.storeItems(ctx, src, feed)
	s.touchSource(ctx, src.ID)
	return n, nil
}

// articleFromItem RSS 条目转换为新闻；没有链接或标题的条目跳过
func articleFromItem(sourceID uint, item *gofeed.Item, now time.Time) (models.NewsArticle, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" && strings.HasPrefix(item.GUID, "http") {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return models.NewsArticle{}, false
	}

	publishedAt := now
	if item.PublishedParsed != nil {
		publishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		publishedAt = *item.UpdatedParsed
	}
	if publishedAt.After(now) {
		publishedAt = now
	}

	// 优先使用 content:encoded，其次是 description
	body := item.Content
	if body == "" {
		body = item.Description
	}

	article := models.NewsArticle{
		SourceID:    &sourceID,
		SourceType:  models.SourceTypeRSS,
		URL:         link,
		Title:       title,
		Excerpt:     utils.StripHTML(item.Description, excerptMaxLength),
		Content:     utils.Sanitize(body),
		PublishedAt: publishedAt,
	}
	article.TextLength = len([]rune(utils.StripHTML(article.Content, 0)))
	if item.Author != nil {
		article.Byline = item.Author.Name
	}
	if item.Image != nil {
		article.ImageURL = item.Image.URL
	}
	for _, enc := range item.Enclosures {
		switch {
		case strings.HasPrefix(enc.Type, "image/"):
			article.Images = append(article.Images, enc.URL)
		case strings.HasPrefix(enc.Type, "video/"):
			article.Videos = append(article.Videos, enc.URL)
		}
	}
	if article.ImageURL == "" && len(article.Images) > 0 {
		article.ImageURL = article.Images[0]
	}
	return article, true
}

// storeItems 按 URL 去重入库
func (s *NewsService) storeItems(ctx context.Context, src *models.NewsSource, feed *gofeed.Feed) int {
	now := s.now()
	stored := 0
	for _, item := range feed.Items {
		article, ok := articleFromItem(src.ID, item, now)
		if !ok {
			continue
		}
		article.SiteName = src.Title

		res := s.db.WithContext(ctx).Omit("Source", "Submitter").
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
			Create(&article)
		if res.Error != nil {
			s.logger.Warn("Failed to store feed item", "source_id", src.ID, "url", article.URL, "error", res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			stored++
			s.ranking.Schedule(RankNews, article.ID)
		}
	}
	if stored > 0 {
		s.cache.Delete(newsTopCacheKey)
	}
	return stored
}

// FetchAll 刷新所有启用的订阅源，单个源失败不影响其他
func (s *NewsService) FetchAll(ctx context.Context) (int, error) {
	var sources []models.NewsSource
	if err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&sources).Error; err != nil {
		return 0, err
	}

	total := 0
	for i := range sources {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, err := s.FetchSource(ctx, &sources[i])
		if err != nil {
			s.logger.Warn("Failed to refresh source", "source_id", sources[i].ID, "title", sources[i].Title, "error", err)
			continue
		}
		total += n
	}
	return total, nil
}

// Cleanup 清除超过保留天数的 RSS 新闻，投稿的保留
func (s *NewsService) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	res := s.db.WithContext(ctx).
		Where("source_type = ? AND published_at < ?", models.SourceTypeRSS, cutoff).
		Delete(&models.NewsArticle{})
	if res.Error != nil {
		return 0, fmt.Errorf("清除过期新闻失败: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.cache.Delete(newsTopCacheKey)
	}
	return res.RowsAffected, nil
}

// RunFetcher 启动时立即抓取一次，之后按间隔定时抓取
func (s *NewsService) RunFetcher(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FetchInterval)
	defer ticker.Stop()

	for {
		n, err := s.FetchAll(ctx)
		if err != nil && ctx.Err() == nil {
			s.logger.Error("News fetch failed", "error", err)
		} else {
			s.logger.Info("News fetch finished", "new_items", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunCleanup 每天凌晨 2 点清除过期新闻
func (s *NewsService) RunCleanup(ctx context.Context) {
	runDailyAt(ctx, 2, s.now, func() {
		n, err := s.Cleanup(ctx)
		if err != nil {
			s.logger.Error("News cleanup failed", "error", err)
			return
		}
		s.logger.Info("News cleanup finished", "deleted", n, "retention_days", s.cfg.RetentionDays)
	})
}

// Feed 新闻列表（不含正文）；匿名 top 第一页走缓存
func (s *NewsService) Feed(ctx context.Context, viewerID uint, f NewsFilter, req PageRequest) (Page[NewsItem], error) {
	req = req.Normalize(s.cfg.PageSize)
	if req.Sort == "" {
		req.Sort = SortNew
	}

	cacheable := viewerID == 0 && f.IsZero() && req.Sort == SortTop && req.Offset == 0 && req.Size == s.cfg.PageSize
	if cacheable {
		if cached, ok := s.cache.Get(newsTopCacheKey).(Page[NewsItem]); ok {
			return cached, nil
		}
	}

	q := s.db.Model(&models.NewsArticle{}).Omit("content").Preload("Source")
	if f.SourceID != 0 {
		q = q.Where("news_articles.source_id = ?", f.SourceID)
	}
	if f.SourceType != "" {
		q = q.Where("news_articles.source_type = ?", f.SourceType)
	}
	if f.Query != "" {
		like := "%" + escapeLike(f.Query) + "%"
		q = q.Where("news_articles.title ILIKE ? OR news_articles.excerpt ILIKE ?", like, like)
	}
	if f.BookmarkedBy != 0 {
		q = q.Where("news_articles.id IN (?)",
			s.db.Model(&models.NewsBookmark{}).Select("news_article_id").Where("user_id = ?", f.BookmarkedBy))
	}
	q = applyOrder(q, newsOrder(req.Sort))

	page, err := Paginate[models.NewsArticle](ctx, q, req)
	if err != nil {
		return Page[NewsItem]{}, err
	}
	items, err := s.annotate(ctx, viewerID, page.Items)
	if err != nil {
		return Page[NewsItem]{}, err
	}

	out := Page[NewsItem]{Items: items, HasMore: page.HasMore, NextOffset: page.NextOffset}
	if cacheable {
		s.cache.Set(newsTopCacheKey, out, feedCacheTTL)
	}
	return out, nil
}

func (s *NewsService) annotate(ctx context.Context, viewerID uint, articles []models.NewsArticle) ([]NewsItem, error) {
	ids := lo.Map(articles, func(a models.NewsArticle, _ int) uint { return a.ID })
	liked, err := s.likes.ActiveSet(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	bookmarked, err := s.bookmarks.ActiveSet(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}
	return lo.Map(articles, func(a models.NewsArticle, _ int) NewsItem {
		return NewsItem{NewsArticle: a, Liked: liked[a.ID], Bookmarked: bookmarked[a.ID]}
	}), nil
}

// Detail 记录浏览：登录用户每篇只算一次，匿名每次都算
func (s *NewsService) Detail(ctx context.Context, viewerID, id uint) (*NewsDetail, error) {
	var article models.NewsArticle
	err := s.db.WithContext(ctx).Preload("Source").First(&article, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("news %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	counted, err := s.recordView(ctx, viewerID, id)
	if err != nil {
		s.logger.Warn("Failed to record view", "news_id", id, "error", err)
	}
	if counted {
		article.ViewCount++
		s.ranking.Schedule(RankNews, id)
	}

	items, err := s.annotate(ctx, viewerID, []models.NewsArticle{article})
	if err != nil {
		return nil, err
	}
	return &NewsDetail{NewsItem: items[0], HTML: utils.EnhanceHTMLContent(article.Content)}, nil
}

func (s *NewsService) recordView(ctx context.Context, viewerID, id uint) (bool, error) {
	counted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if viewerID != 0 {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("NewsArticle").
				Create(&models.NewsView{NewsArticleID: id, UserID: viewerID})
			if res.Error != nil || res.RowsAffected == 0 {
				return res.Error
			}
		}
		counted = true
		return tx.Model(&models.NewsArticle{}).Where("id = ?", id).
			UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
	})
	return counted && err == nil, err
}
