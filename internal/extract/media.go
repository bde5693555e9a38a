package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// 这些站点的 iframe 视为视频
var videoHosts = []string{
	"youtube.com",
	"youtube-nocookie.com",
	"youtu.be",
	"vimeo.com",
	"bilibili.com",
	"dailymotion.com",
	"twitch.tv",
}

type Media struct {
	Images []string
	Videos []string
	Links  []string
}

// ExtractMedia 收集图片、视频和链接地址，归一化并保序去重
func ExtractMedia(doc *goquery.Document, base *url.URL) Media {
	var images, videos, links []string

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"src", "data-src"} {
			if v, ok := s.Attr(attr); ok {
				images = append(images, v)
			}
		}
		if srcset, ok := s.Attr("srcset"); ok {
			images = append(images, parseSrcset(srcset)...)
		}
	})

	doc.Find("video[src]").Each(func(_ int, s *goquery.Selection) {
		videos = append(videos, s.AttrOr("src", ""))
	})
	doc.Find("video source[src]").Each(func(_ int, s *goquery.Selection) {
		videos = append(videos, s.AttrOr("src", ""))
	})
	doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		src := s.AttrOr("src", "")
		if u, ok := NormalizeURL(src, base); ok && isVideoHost(u) {
			videos = append(videos, u)
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		links = append(links, s.AttrOr("href", ""))
	})

	return Media{
		Images: NormalizeURLs(images, base),
		Videos: NormalizeURLs(videos, base),
		Links:  NormalizeURLs(links, base),
	}
}

// NormalizeURL 以 base 解析相对地址，去掉 fragment；只接受 http(s)
func NormalizeURL(raw string, base *url.URL) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "data:") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String(), true
}

// NormalizeURLs 对列表逐个 NormalizeURL，丢弃非法项并保序去重
func NormalizeURLs(raws []string, base *url.URL) []string {
	seen := make(map[string]struct{}, len(raws))
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		u, ok := NormalizeURL(raw, base)
		if !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// parseSrcset "a.jpg 1x, b.jpg 2x" -> [a.jpg b.jpg]
func parseSrcset(srcset string) []string {
	var out []string
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

func isVideoHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	for _, h := range videoHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
