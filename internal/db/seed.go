package db

import (
	"log/slog"

	"hearth/internal/models"

	"gorm.io/gorm"
)

var defaultCategories = []models.Category{
	{Name: "综合", Slug: "general", Description: "什么都可以聊"},
	{Name: "Prompt", Slug: "prompts", Description: "分享好用的 prompt"},
	{Name: "技术", Slug: "tech", Description: "技术相关的讨论和分享"},
	{Name: "新闻", Slug: "news", Description: "新闻讨论"},
	{Name: "展示", Slug: "showcase", Description: "作品展示、项目分享"},
}

var defaultBadges = []models.Badge{
	{Code: "sprout", Name: "新芽", Description: "刚刚加入社区", Icon: "🌱", Price: 0, Active: true},
	{Code: "quill", Name: "笔耕", Description: "热爱写作的人", Icon: "🪶", Price: 30, Active: true},
	{Code: "prompt-smith", Name: "Prompt 工匠", Description: "打磨 prompt 的手艺人", Icon: "🛠️", Price: 80, Active: true},
	{Code: "night-owl", Name: "夜猫子", Description: "深夜依然在线", Icon: "🦉", Price: 120, Active: true},
	{Code: "newshound", Name: "新闻猎犬", Description: "第一时间发现新闻", Icon: "🐕", Price: 150, Active: true},
	{Code: "bonfire", Name: "篝火", Description: "社区的温暖来源", Icon: "🔥", Price: 300, Active: true},
}

// Seed 初始化分类与徽章（仅在表为空时执行）
func Seed(conn *gorm.DB) error {
	if err := seedTable(conn, &models.Category{}, defaultCategories); err != nil {
		return err
	}
	return seedTable(conn, &models.Badge{}, defaultBadges)
}

func seedTable[T any](conn *gorm.DB, model any, rows []T) error {
	var count int64
	if err := conn.Model(model).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		slog.Debug("Table already seeded, skipping", "rows", count)
		return nil
	}

	for i := range rows {
		row := rows[i]
		if err := conn.Create(&row).Error; err != nil {
			slog.Error("Failed to seed row", "error", err)
			return err
		}
	}
	slog.Info("Seed data created", "rows", len(rows))
	return nil
}
