package extract

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Fallback Title | Example</title>
  <meta property="og:title" content="Open Graph Title">
  <meta property="og:site_name" content="Example News">
  <meta property="og:image" content="/images/lead.jpg">
  <meta name="description" content="A short summary of the story.">
  <meta name="author" content="Jane Reporter">
  <meta property="article:published_time" content="2024-03-05T10:30:00Z">
  <link rel="canonical" href="https://example.com/story/42#top">
</head>
<body>
  <article>
    <h1>Open Graph Title</h1>
    <p>The quick brown fox jumps over the lazy dog. This paragraph is long enough to look like
    real article content so the extractor keeps it around as the main body of the page.</p>
    <p>Second paragraph with a <a href="/related">related link</a>, an <a href="#footnote">anchor</a>
    and an <a href="mailto:tips@example.com">email</a>.</p>
    <img src="/images/one.jpg">
    <img data-src="https://cdn.example.com/two.jpg" srcset="/images/two-small.jpg 1x, /images/two-large.jpg 2x">
    <img src="data:image/png;base64,AAAA">
    <img src="/images/one.jpg#dup">
    <video src="/media/clip.mp4"><source src="/media/clip.webm"></video>
    <iframe src="https://www.youtube.com/embed/abc123"></iframe>
    <iframe src="https://ads.example.net/frame"></iframe>
    <script>alert("x")</script>
  </article>
</body>
</html>`

func TestParseArticle(t *testing.T) {
	doc, err := Parse(articleHTML, "")
	require.NoError(t, err)

	assert.Equal(t, "Open Graph Title", doc.Title)
	assert.Equal(t, "https://example.com/story/42", doc.URL)
	assert.Equal(t, "Example News", doc.SiteName)
	assert.Equal(t, "A short summary of the story.", doc.Excerpt)
	assert.Equal(t, "https://example.com/images/lead.jpg", doc.LeadImage)
	require.NotNil(t, doc.PublishedAt)
	assert.Equal(t, 2024, doc.PublishedAt.Year())

	assert.Equal(t, []string{
		"https://example.com/images/one.jpg",
		"https://cdn.example.com/two.jpg",
		"https://example.com/images/two-small.jpg",
		"https://example.com/images/two-large.jpg",
	}, doc.Images)
	assert.Equal(t, []string{
		"https://example.com/media/clip.mp4",
		"https://example.com/media/clip.webm",
		"https://www.youtube.com/embed/abc123",
	}, doc.Videos)
	assert.Equal(t, []string{
		"https://example.com/related",
		"https://example.com/story/42",
	}, doc.Links)

	counts := doc.Counts()
	assert.Equal(t, 4, counts.Images)
	assert.Equal(t, 3, counts.Videos)
	assert.Equal(t, 2, counts.Links)
	assert.Greater(t, counts.Words, 20)

	assert.NotContains(t, doc.Content, "<script")
}

func TestParseTitleFallsBackToTitleTag(t *testing.T) {
	doc, err := Parse(`<html><head><title>Plain Title</title></head><body><p>short</p></body></html>`, "https://example.org/a")
	require.NoError(t, err)
	assert.Equal(t, "Plain Title", doc.Title)
	assert.Equal(t, "https://example.org/a", doc.URL)
}

func TestParseEmptyDocument(t *testing.T) {
	_, err := Parse("   ", "")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = Parse(`<html><head></head><body></body></html>`, "")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestNormalizeURL(t *testing.T) {
	base, _ := url.Parse("https://Example.com/dir/page.html")

	cases := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"img.png", "https://example.com/dir/img.png", true},
		{"/root.png#frag", "https://example.com/root.png", true},
		{"//cdn.example.com/x.png", "https://cdn.example.com/x.png", true},
		{"javascript:void(0)", "", false},
		{"data:image/gif;base64,R0lG", "", false},
		{"ftp://example.com/file", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeURL(tc.raw, base)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}

	_, ok := NormalizeURL("relative.png", nil)
	assert.False(t, ok, "relative URL without base is rejected")
}

func TestScrapeMetadataTwitterFallback(t *testing.T) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><head>
		<meta name="twitter:title" content="Tweet Title">
		<meta name="twitter:image" content="https://example.com/t.jpg">
		<meta name="twitter:description" content="tweet summary">
		</head></html>`))
	require.NoError(t, err)

	m := ScrapeMetadata(dom)
	assert.Equal(t, "Tweet Title", m.TwitterTitle)
	assert.Equal(t, "https://example.com/t.jpg", m.Image)
	assert.Equal(t, "tweet summary", m.Description)
	assert.Nil(t, m.PublishedAt)
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 4, CountWords("don't stop the well-known"))
	assert.Equal(t, 4, CountWords("你好世界"))
	assert.Equal(t, 3, CountWords("Go 语言"))
}
