package utils

import (
	"time"
)

// GetUserLevel 根据积分数量返回用户等级
func GetUserLevel(points int) (name string, icon string) {
	switch {
	case points >= 1000:
		return "篝火", "🔥"
	case points >= 201:
		return "火焰", "🕯️"
	case points >= 51:
		return "余烬", "🪵"
	case points >= 11:
		return "火星", "✨"
	default:
		return "火种", "🌱"
	}
}

// GetDaysSinceJoined 计算注册天数
func GetDaysSinceJoined(createdAt time.Time) int {
	return int(time.Since(createdAt).Hours() / 24)
}
