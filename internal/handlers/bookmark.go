package handlers

import (
	"hearth/internal/services"

	"github.com/gin-gonic/gin"
)

// BookmarkHandler 我的收藏
type BookmarkHandler struct {
	posts *services.PostService
	news  *services.NewsService
}

func NewBookmarkHandler(posts *services.PostService, news *services.NewsService) *BookmarkHandler {
	return &BookmarkHandler{posts: posts, news: news}
}

func (h *BookmarkHandler) Posts(c *gin.Context) {
	req, ok := bindPage(c)
	if !ok {
		return
	}
	me := currentUser(c).ID
	page, err := h.posts.Feed(c.Request.Context(), me, services.PostFilter{BookmarkedBy: me}, req)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"page": page})
}

func (h *BookmarkHandler) News(c *gin.Context) {
	req, ok := bindPage(c)
	if !ok {
		return
	}
	me := currentUser(c).ID
	page, err := h.news.Feed(c.Request.Context(), me, services.NewsFilter{BookmarkedBy: me}, req)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"page": page})
}
