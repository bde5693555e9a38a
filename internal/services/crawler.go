package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hearth/internal/metrics"

	"resty.dev/v3"
)

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// FetchedPage 抓取到的网页
type FetchedPage struct {
	URL  string // 跟随跳转后的最终地址
	HTML string
}

// CrawlerService 网页抓取服务
type CrawlerService struct {
	client   *resty.Client
	maxBytes int
}

// NewCrawlerService 创建抓取服务实例
func NewCrawlerService(maxBytes int) *CrawlerService {
	client := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("User-Agent", browserUserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	client.AddResponseMiddleware(fetchMetricMiddleware)

	return &CrawlerService{client: client, maxBytes: maxBytes}
}

func fetchMetricMiddleware(_ *resty.Client, response *resty.Response) error {
	host := ""
	if u, err := url.Parse(response.Request.URL); err == nil {
		host = u.Hostname()
	}
	metrics.FetchLatency.WithLabelValues(host, strconv.Itoa(response.StatusCode())).
		Observe(response.Duration().Seconds())
	return nil
}

func (s *CrawlerService) Close() error {
	return s.client.Close()
}

// Fetch 获取网页 HTML，只接受 http(s) 和 HTML 响应
func (s *CrawlerService) Fetch(ctx context.Context, rawURL string) (*FetchedPage, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid("链接必须以 http:// 或 https:// 开头")
	}

	resp, err := s.client.R().WithContext(ctx).Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%w: HTTP 状态码 %d", ErrInvalidInput, resp.StatusCode())
	}

	if ct := resp.Header().Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, invalid("不是 HTML 页面: %s", ct)
	}

	body := resp.String()
	if s.maxBytes > 0 && len(body) > s.maxBytes {
		return nil, ErrTooLarge
	}

	final := u.String()
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		final = resp.RawResponse.Request.URL.String()
	}
	return &FetchedPage{URL: final, HTML: body}, nil
}
