// Package extract 把一段完整的 HTML 页面解析为可入库的文章：
// readability 提取正文，goquery 抓取 meta 信息和媒体地址，bluemonday 清洗输出。
package extract

import (
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// ErrEmptyDocument 页面为空或找不到任何标题
var ErrEmptyDocument = errors.New("document has no title or content")

var sanitizer = bluemonday.UGCPolicy()

// Counts /api/parse 返回的统计
type Counts struct {
	Images int `json:"images"`
	Videos int `json:"videos"`
	Links  int `json:"links"`
	Words  int `json:"words"`
}

// Document 解析结果
type Document struct {
	URL         string
	Title       string
	Byline      string
	SiteName    string
	Excerpt     string
	Content     string // 清洗后的正文 HTML
	TextContent string
	LeadImage   string
	PublishedAt *time.Time
	Images      []string
	Videos      []string
	Links       []string
	Words       int
}

func (d *Document) Counts() Counts {
	return Counts{
		Images: len(d.Images),
		Videos: len(d.Videos),
		Links:  len(d.Links),
		Words:  d.Words,
	}
}

// Parse 解析 HTML。pageURL 可为空，用于解析相对地址
func Parse(rawHTML, pageURL string) (*Document, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, ErrEmptyDocument
	}

	dom, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	meta := ScrapeMetadata(dom)

	base := parseHTTPURL(pageURL)
	if base == nil {
		base = parseHTTPURL(meta.Canonical)
	}

	// readability 失败时仍可以只用 meta 信息入库
	var article readability.Article
	if a, err := readability.FromReader(strings.NewReader(rawHTML), base); err == nil {
		article = a
	}

	doc := &Document{
		Title:       firstNonEmpty(meta.OGTitle, article.Title, meta.TwitterTitle, meta.Title),
		Byline:      firstNonEmpty(article.Byline, meta.Author),
		SiteName:    firstNonEmpty(meta.SiteName, article.SiteName),
		Excerpt:     firstNonEmpty(meta.Description, article.Excerpt),
		Content:     sanitizer.Sanitize(article.Content),
		TextContent: strings.TrimSpace(article.TextContent),
		PublishedAt: meta.PublishedAt,
	}
	doc.Title = strings.TrimSpace(doc.Title)
	if doc.Title == "" {
		return nil, ErrEmptyDocument
	}

	if base != nil {
		doc.URL = base.String()
	}
	if canonical, ok := NormalizeURL(meta.Canonical, base); ok {
		doc.URL = canonical
	}

	media := ExtractMedia(dom, base)
	doc.Images = media.Images
	doc.Videos = media.Videos
	doc.Links = media.Links

	for _, candidate := range []string{meta.Image, article.Image} {
		if u, ok := NormalizeURL(candidate, base); ok {
			doc.LeadImage = u
			break
		}
	}
	if doc.LeadImage == "" && len(doc.Images) > 0 {
		doc.LeadImage = doc.Images[0]
	}

	if doc.TextContent == "" {
		doc.TextContent = strings.TrimSpace(dom.Find("body").Text())
	}
	doc.Words = CountWords(doc.TextContent)

	return doc, nil
}

// CountWords 空白分隔的词计为一个，中日韩文字每个字计为一个
func CountWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r):
			count++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				count++
				inWord = true
			}
		case r == '\'' || r == '-':
			// 词内的撇号和连字符不拆词
		default:
			inWord = false
		}
	}
	return count
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func parseHTTPURL(raw string) *url.URL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil
	}
	u.Fragment = ""
	return u
}
