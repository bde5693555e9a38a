package models

import (
	"time"
)

// Follow 关注关系（Follower 关注 Followee），同一对只允许一条
type Follow struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FollowerID uint      `gorm:"not null;uniqueIndex:idx_follow_pair" json:"follower_id"`
	Follower   User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	FolloweeID uint      `gorm:"not null;index;uniqueIndex:idx_follow_pair" json:"followee_id"`
	Followee   User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
