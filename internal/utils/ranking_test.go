package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateScore(t *testing.T) {
	now := time.Now()

	assert.Zero(t, CalculateScore(PostRankConfig, now, now, Engagement{}))

	fresh := CalculateScore(PostRankConfig, now.Add(-time.Hour), now, Engagement{Likes: 10, Comments: 2})
	stale := CalculateScore(PostRankConfig, now.Add(-48*time.Hour), now, Engagement{Likes: 10, Comments: 2})
	assert.Greater(t, fresh, stale, "older items decay")

	liked := CalculateScore(PostRankConfig, now, now, Engagement{Likes: 3})
	bookmarked := CalculateScore(PostRankConfig, now, now, Engagement{Bookmarks: 3})
	assert.Greater(t, bookmarked, liked, "bookmarks weigh more than likes")

	views := CalculateScore(NewsRankConfig, now, now, Engagement{Views: 200})
	assert.Greater(t, views, 0.0)
	assert.Zero(t, CalculateScore(PostRankConfig, now, now, Engagement{Views: 200}), "posts ignore views")
}
