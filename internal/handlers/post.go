package handlers

import (
	"net/http"

	"hearth/internal/models"
	"hearth/internal/services"
	"hearth/internal/utils"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	posts    *services.PostService
	comments *services.CommentService
}

func NewPostHandler(posts *services.PostService, comments *services.CommentService) *PostHandler {
	return &PostHandler{posts: posts, comments: comments}
}

// Feed 帖子列表：?category=&kind=&q=&following=1&sort=&page=&size=
func (h *PostHandler) Feed(c *gin.Context) {
	req, ok := bindPage(c)
	if !ok {
		return
	}

	var f services.PostFilter
	if category := c.Query("category"); category != "" {
		if id, ok := utils.StringToUint(category); ok {
			f.CategoryID = id
		} else {
			f.CategorySlug = category
		}
	}
	f.Kind = models.PostKind(c.Query("kind"))
	f.Query = c.Query("q")
	if c.Query("following") == "1" {
		me := viewerID(c)
		if me == 0 {
			Fail(c, http.StatusUnauthorized, "请先登录")
			return
		}
		f.FollowingOf = me
	}

	page, err := h.posts.Feed(c.Request.Context(), viewerID(c), f, req)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"page": page})
}

func (h *PostHandler) Categories(c *gin.Context) {
	categories, err := h.posts.Categories(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"categories": categories})
}

func (h *PostHandler) Detail(c *gin.Context) {
	post, err := h.posts.Detail(c.Request.Context(), viewerID(c), c.Param("pid"))
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"post": post})
}

func (h *PostHandler) Create(c *gin.Context) {
	var in services.PostInput
	if !bindJSON(c, &in) {
		return
	}
	post, err := h.posts.Create(c.Request.Context(), currentUser(c), in)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "post": post})
}

func (h *PostHandler) Update(c *gin.Context) {
	var in services.PostInput
	if !bindJSON(c, &in) {
		return
	}
	post, err := h.posts.Update(c.Request.Context(), currentUser(c), c.Param("pid"), in)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"post": post})
}

func (h *PostHandler) Delete(c *gin.Context) {
	if err := h.posts.Delete(c.Request.Context(), currentUser(c), c.Param("pid")); err != nil {
		Error(c, err)
		return
	}
	OK(c, nil)
}

func (h *PostHandler) Comments(c *gin.Context) {
	comments, err := h.comments.List(c.Request.Context(), viewerID(c), c.Param("pid"))
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"comments": comments})
}

func (h *PostHandler) CreateComment(c *gin.Context) {
	var in services.CommentInput
	if !bindJSON(c, &in) {
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), currentUser(c), c.Param("pid"), in)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "comment": comment})
}

func (h *PostHandler) DeleteComment(c *gin.Context) {
	if err := h.comments.Delete(c.Request.Context(), currentUser(c), c.Param("cid")); err != nil {
		Error(c, err)
		return
	}
	OK(c, nil)
}
