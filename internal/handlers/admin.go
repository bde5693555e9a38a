package handlers

import (
	"hearth/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler 订阅源管理和用户处罚，路由上已挂 AdminRequired
type AdminHandler struct {
	news  *services.NewsService
	users *services.UserService
}

func NewAdminHandler(news *services.NewsService, users *services.UserService) *AdminHandler {
	return &AdminHandler{news: news, users: users}
}

type addSourceRequest struct {
	URL string `json:"url" binding:"required"`
}

func (h *AdminHandler) AddSource(c *gin.Context) {
	var req addSourceRequest
	if !bindJSON(c, &req) {
		return
	}
	source, err := h.news.AddSource(c.Request.Context(), req.URL)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"source": source})
}

type sourceUpdateRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *AdminHandler) UpdateSource(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req sourceUpdateRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.news.SetSourceEnabled(c.Request.Context(), id, *req.Enabled); err != nil {
		Error(c, err)
		return
	}
	OK(c, nil)
}

func (h *AdminHandler) DeleteSource(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.news.DeleteSource(c.Request.Context(), id); err != nil {
		Error(c, err)
		return
	}
	OK(c, nil)
}

// FetchNow 手动触发一次全部订阅源抓取
func (h *AdminHandler) FetchNow(c *gin.Context) {
	n, err := h.news.FetchAll(c.Request.Context())
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"stored": n})
}

type punishRequest struct {
	Status int `json:"status"` // 0: 正常, 1: 禁言, 2: 封禁
	Days   int `json:"days"`   // <= 0 为永久
}

// PunishUser 惩罚用户（禁言、封禁）
func (h *AdminHandler) PunishUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req punishRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.Punish(c.Request.Context(), id, req.Status, req.Days)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"user": user})
}
