package utils

import (
	"math"
	"time"
)

type RankConfig struct {
	Gravity        float64 // 时间重力
	WeightLike     float64
	WeightComment  float64
	WeightBookmark float64
	WeightView     float64
	ScaleFactor    float64 // 放大系数
}

// PostRankConfig 帖子热度：收藏 > 评论 > 点赞，浏览量不计
var PostRankConfig = RankConfig{
	Gravity:        1.5,
	WeightLike:     1.0,
	WeightComment:  2.0,
	WeightBookmark: 3.0,
	ScaleFactor:    100.0,
}

// NewsRankConfig 新闻热度：没有评论，浏览量给一个很小的权重
var NewsRankConfig = RankConfig{
	Gravity:        1.5,
	WeightLike:     1.0,
	WeightBookmark: 3.0,
	WeightView:     0.05,
	ScaleFactor:    100.0,
}

// Engagement 一条内容的互动计数
type Engagement struct {
	Likes     int
	Comments  int
	Bookmarks int
	Views     int
}

// CalculateScore log10(加权互动+1)*Scale / (小时+2)^Gravity
func CalculateScore(cfg RankConfig, createdAt, now time.Time, e Engagement) float64 {
	hours := now.Sub(createdAt).Hours()
	if hours < 0 {
		hours = 0
	}

	weightedSum := float64(e.Likes)*cfg.WeightLike +
		float64(e.Comments)*cfg.WeightComment +
		float64(e.Bookmarks)*cfg.WeightBookmark +
		float64(e.Views)*cfg.WeightView

	if weightedSum < 0 {
		weightedSum = 0
	}

	numerator := math.Log10(weightedSum+1) * cfg.ScaleFactor
	decay := math.Pow(hours+2, cfg.Gravity)

	return numerator / decay
}
