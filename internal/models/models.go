package models

// All 需要 AutoMigrate 的模型，顺序满足外键依赖
func All() []any {
	return []any{
		&User{},
		&Follow{},
		&Category{},
		&Post{},
		&Comment{},
		&PostLike{},
		&PostBookmark{},
		&CommentLike{},
		&NewsSource{},
		&NewsArticle{},
		&NewsLike{},
		&NewsBookmark{},
		&NewsView{},
		&Room{},
		&RoomParticipant{},
		&Message{},
		&Notification{},
		&Badge{},
		&UserBadge{},
		&PointLog{},
	}
}
