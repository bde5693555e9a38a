package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hearth/internal/extract"
	"hearth/internal/metrics"
	"hearth/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ingestURNPrefix 没有页面地址时用内容哈希作为唯一 URL
const ingestURNPrefix = "urn:hearth:ingest:"

type IngestInput struct {
	HTML        string
	URL         string
	SubmitterID uint
}

// IngestResult 重复提交时也会带上已有的 ID
type IngestResult struct {
	ID     uint           `json:"id"`
	Title  string         `json:"title"`
	Counts extract.Counts `json:"counts"`
}

// IngestService HTML 解析入库
type IngestService struct {
	db       *gorm.DB
	crawler  *CrawlerService
	ranking  *RankingService
	maxBytes int
	logger   *slog.Logger
	now      func() time.Time
}

func ingestURL(doc *extract.Document, rawHTML string) string {
	if doc.URL != "" {
		return doc.URL
	}
	sum := sha256.Sum256([]byte(rawHTML))
	return ingestURNPrefix + hex.EncodeToString(sum[:16])
}

// Ingest readability 正文 + meta + 媒体地址，写入 news_articles
func (s *IngestService) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	res, err := s.ingest(ctx, in)
	switch {
	case err == nil:
		metrics.IngestTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrAlreadyIngested):
		metrics.IngestTotal.WithLabelValues("duplicate").Inc()
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrTooLarge), errors.Is(err, ErrEmptyDocument):
		metrics.IngestTotal.WithLabelValues("rejected").Inc()
	default:
		metrics.IngestTotal.WithLabelValues("error").Inc()
	}
	return res, err
}

func (s *IngestService) ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if strings.TrimSpace(in.HTML) == "" {
		return nil, invalid("html 不能为空")
	}
	if s.maxBytes > 0 && len(in.HTML) > s.maxBytes {
		return nil, ErrTooLarge
	}
	pageURL := strings.TrimSpace(in.URL)
	if pageURL != "" && !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return nil, invalid("url 必须以 http:// 或 https:// 开头")
	}

	doc, err := extract.Parse(in.HTML, pageURL)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Title: doc.Title, Counts: doc.Counts()}
	articleURL := ingestURL(doc, in.HTML)

	if id, ok, err := s.existing(ctx, articleURL); err != nil {
		return nil, err
	} else if ok {
		result.ID = id
		return result, ErrAlreadyIngested
	}

	publishedAt := s.now()
	if doc.PublishedAt != nil && doc.PublishedAt.Before(publishedAt) {
		publishedAt = *doc.PublishedAt
	}
	article := models.NewsArticle{
		SourceType:  models.SourceTypeIngest,
		URL:         articleURL,
		Title:       doc.Title,
		Byline:      doc.Byline,
		SiteName:    doc.SiteName,
		Excerpt:     doc.Excerpt,
		Content:     doc.Content,
		TextLength:  len([]rune(doc.TextContent)),
		ImageURL:    doc.LeadImage,
		Images:      doc.Images,
		Videos:      doc.Videos,
		PublishedAt: publishedAt,
	}
	if in.SubmitterID != 0 {
		submitter := in.SubmitterID
		article.SubmitterID = &submitter
	}

	insert := s.db.WithContext(ctx).Omit("Source", "Submitter").
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "url"}}, DoNothing: true}).
		Create(&article)
	if insert.Error != nil {
		return nil, fmt.Errorf("insert article: %w", insert.Error)
	}
	if insert.RowsAffected == 0 {
		// 并发提交同一地址
		id, _, err := s.existing(ctx, articleURL)
		if err != nil {
			return nil, err
		}
		result.ID = id
		return result, ErrAlreadyIngested
	}

	result.ID = article.ID
	s.ranking.Schedule(RankNews, article.ID)
	s.logger.Info("Document ingested", "id", article.ID, "url", articleURL,
		"images", result.Counts.Images, "videos", result.Counts.Videos, "words", result.Counts.Words)
	return result, nil
}

func (s *IngestService) existing(ctx context.Context, articleURL string) (uint, bool, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.NewsArticle{}).
		Where("url = ?", articleURL).Limit(1).Pluck("id", &ids).Error; err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

// IngestURL 先抓取页面再走同样的流程
func (s *IngestService) IngestURL(ctx context.Context, submitterID uint, rawURL string) (*IngestResult, error) {
	page, err := s.crawler.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return s.Ingest(ctx, IngestInput{HTML: page.HTML, URL: page.URL, SubmitterID: submitterID})
}
