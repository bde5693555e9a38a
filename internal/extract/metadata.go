package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// Metadata 页面 <head> 里的信息
type Metadata struct {
	Title        string
	OGTitle      string
	TwitterTitle string
	Description  string
	Author       string
	SiteName     string
	Image        string
	Canonical    string
	PublishedAt  *time.Time
}

// ScrapeMetadata 读取 og:*、twitter:*、description/author、canonical 和 <title>
func ScrapeMetadata(doc *goquery.Document) Metadata {
	props := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("property")
		if key == "" {
			key, _ = s.Attr("name")
		}
		if key == "" {
			key, _ = s.Attr("itemprop")
		}
		key = strings.ToLower(strings.TrimSpace(key))
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if key == "" || content == "" {
			return
		}
		// 同名 meta 以第一个为准
		if _, seen := props[key]; !seen {
			props[key] = content
		}
	})

	m := Metadata{
		Title:        strings.TrimSpace(doc.Find("title").First().Text()),
		OGTitle:      props["og:title"],
		TwitterTitle: props["twitter:title"],
		Description:  firstNonEmpty(props["og:description"], props["description"], props["twitter:description"]),
		Author:       firstNonEmpty(props["author"], props["article:author"], props["twitter:creator"]),
		SiteName:     firstNonEmpty(props["og:site_name"], props["application-name"]),
		Image:        firstNonEmpty(props["og:image"], props["og:image:url"], props["twitter:image"], props["twitter:image:src"]),
	}

	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, rel := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
			if rel == "canonical" {
				m.Canonical = strings.TrimSpace(s.AttrOr("href", ""))
				return false
			}
		}
		return true
	})

	published := firstNonEmpty(
		props["article:published_time"],
		props["og:published_time"],
		props["datepublished"],
		props["pubdate"],
		doc.Find("time[datetime]").First().AttrOr("datetime", ""),
	)
	if published != "" {
		if t, err := dateparse.ParseAny(published); err == nil {
			t = t.UTC()
			m.PublishedAt = &t
		}
	}

	return m
}
