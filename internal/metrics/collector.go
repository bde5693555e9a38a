package metrics

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// 定期采集行数的表
var collectedTables = []string{"users", "posts", "comments", "news_articles", "messages", "notifications"}

// Collector 定期用 pg_class 的估算值更新表行数指标
type Collector struct {
	DB       *gorm.DB
	Interval time.Duration
	Logger   *slog.Logger
}

func (c *Collector) Run(ctx context.Context) error {
	interval := c.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, table := range collectedTables {
				if err := c.collectTableEstimatedCount(ctx, table); err != nil {
					c.Logger.Warn("Failed to collect table count", "table", table, "error", err)
				}
			}
		}
	}
}

func (c *Collector) collectTableEstimatedCount(ctx context.Context, table string) error {
	var count float64
	err := c.DB.WithContext(ctx).
		Raw("SELECT reltuples FROM pg_class WHERE relname = ?", table).
		Scan(&count).Error
	if err != nil {
		return err
	}
	tableCount.WithLabelValues(table).Set(count)
	return nil
}
