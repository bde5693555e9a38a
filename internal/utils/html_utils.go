package utils

import (
	"html/template"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const videoFrame = `<div class="video-container"><iframe src="%s" frameborder="0" allowfullscreen allow="accelerometer; autoplay; clipboard-write; encrypted-media; gyroscope; picture-in-picture"></iframe></div>`

// EnhanceHTMLContent 为图片加上懒加载/防盗链属性，并把单独成段的视频链接转换为嵌入式播放器
func EnhanceHTMLContent(htmlStr string) template.HTML {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return template.HTML(htmlStr)
	}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		s.SetAttr("referrerpolicy", "no-referrer")
		s.SetAttr("loading", "lazy")
	})

	doc.Find("p").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(text, "http") || strings.Contains(text, " ") {
			return
		}
		if embed := VideoEmbedURL(text); embed != "" {
			s.ReplaceWithHtml(strings.Replace(videoFrame, "%s", template.HTMLEscapeString(embed), 1))
		}
	})

	// goquery 会补全 html/body，这里只要 body 内容
	out, _ := doc.Find("body").Html()
	if out == "" {
		out, _ = doc.Html()
	}

	return template.HTML(out)
}

// VideoEmbedURL 把 YouTube / Bilibili / Vimeo 的页面链接转换为播放器地址，不识别时返回空串
func VideoEmbedURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.Trim(u.Path, "/")

	switch {
	case host == "youtube.com" || host == "m.youtube.com":
		if strings.HasPrefix(path, "embed/") {
			return "https://www.youtube.com/" + path
		}
		if id := u.Query().Get("v"); id != "" {
			return "https://www.youtube.com/embed/" + id
		}
	case host == "youtu.be":
		if path != "" {
			return "https://www.youtube.com/embed/" + path
		}
	case host == "bilibili.com":
		if bvid, ok := strings.CutPrefix(path, "video/"); ok && bvid != "" {
			return "https://player.bilibili.com/player.html?bvid=" + strings.Split(bvid, "/")[0] + "&high_quality=1&autoplay=0"
		}
	case host == "vimeo.com":
		if path != "" && !strings.Contains(path, "/") {
			return "https://player.vimeo.com/video/" + path
		}
	}
	return ""
}

// StripHTML 去掉标签并截断到 maxRunes 个字符
func StripHTML(htmlStr string, maxRunes int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	runes := []rune(text)
	if maxRunes > 0 && len(runes) > maxRunes {
		return string(runes[:maxRunes]) + "..."
	}
	return text
}
