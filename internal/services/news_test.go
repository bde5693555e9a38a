package services

import (
	"testing"
	"time"

	"hearth/internal/models"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandSourceURL(t *testing.T) {
	assert.Equal(t, "https://rsshub.app/github/trending/daily", ExpandSourceURL("rsshub://github/trending/daily", ""))
	assert.Equal(t, "https://hub.example.com/v2ex/topics/hot", ExpandSourceURL("rsshub:///v2ex/topics/hot", "https://hub.example.com/"))
	assert.Equal(t, "https://example.com/feed.xml", ExpandSourceURL("https://example.com/feed.xml", "https://hub.example.com"))
}

func TestValidSourceURL(t *testing.T) {
	assert.True(t, validSourceURL("https://example.com/rss"))
	assert.True(t, validSourceURL("rsshub://github/trending"))
	assert.False(t, validSourceURL("rsshub://"))
	assert.False(t, validSourceURL("ftp://example.com/rss"))
	assert.False(t, validSourceURL("example.com/rss"))
}

func TestArticleFromItem(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	published := now.Add(-time.Hour)
	future := now.Add(48 * time.Hour)

	item := &gofeed.Item{
		Title:           "  Hello  ",
		Link:            "https://example.com/a",
		Description:     "<p>Summary <b>text</b></p>",
		Content:         `<p>Body</p><script>bad()</script>`,
		PublishedParsed: &published,
		Author:          &gofeed.Person{Name: "Ann"},
		Enclosures: []*gofeed.Enclosure{
			{URL: "https://example.com/a.jpg", Type: "image/jpeg"},
			{URL: "https://example.com/a.mp4", Type: "video/mp4"},
		},
	}

	a, ok := articleFromItem(7, item, now)
	require.True(t, ok)
	assert.Equal(t, "Hello", a.Title)
	assert.Equal(t, uint(7), *a.SourceID)
	assert.Equal(t, models.SourceTypeRSS, a.SourceType)
	assert.Equal(t, "Summary text", a.Excerpt)
	assert.NotContains(t, a.Content, "script")
	assert.Equal(t, published, a.PublishedAt)
	assert.Equal(t, "Ann", a.Byline)
	assert.Equal(t, "https://example.com/a.jpg", a.ImageURL)
	assert.Equal(t, []string{"https://example.com/a.mp4"}, a.Videos)

	item.PublishedParsed = &future
	a, _ = articleFromItem(7, item, now)
	assert.Equal(t, now, a.PublishedAt, "future dates are clamped")

	_, ok = articleFromItem(7, &gofeed.Item{Title: "no link"}, now)
	assert.False(t, ok)

	a, ok = articleFromItem(7, &gofeed.Item{Title: "guid only", GUID: "https://example.com/g"}, now)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/g", a.URL)
}
