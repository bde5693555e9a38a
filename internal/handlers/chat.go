package handlers

import (
	"net/http"
	"time"

	"hearth/internal/services"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chat  *services.ChatService
	users *services.UserService
}

func NewChatHandler(chat *services.ChatService, users *services.UserService) *ChatHandler {
	return &ChatHandler{chat: chat, users: users}
}

func (h *ChatHandler) Rooms(c *gin.Context) {
	rooms, err := h.chat.Rooms(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"rooms": rooms})
}

func (h *ChatHandler) UnreadTotal(c *gin.Context) {
	n, err := h.chat.UnreadTotal(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"unread": n})
}

// Direct POST /api/chat/direct/:username 获取或创建私聊
func (h *ChatHandler) Direct(c *gin.Context) {
	ctx := c.Request.Context()
	other, err := h.users.ByUsername(ctx, c.Param("username"))
	if err != nil {
		Error(c, err)
		return
	}
	room, err := h.chat.DirectRoom(ctx, currentUser(c).ID, other.ID)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"room": room})
}

type createGroupRequest struct {
	Name    string `json:"name" binding:"required"`
	Members []uint `json:"members"`
}

func (h *ChatHandler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if !bindJSON(c, &req) {
		return
	}
	room, err := h.chat.CreateGroup(c.Request.Context(), currentUser(c).ID, req.Name, req.Members)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "room": room})
}

type addMemberRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

func (h *ChatHandler) AddMember(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req addMemberRequest
	if !bindJSON(c, &req) {
		return
	}
	room, err := h.chat.AddMember(c.Request.Context(), roomID, currentUser(c).ID, req.UserID)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"room": room})
}

func (h *ChatHandler) Leave(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.chat.Leave(c.Request.Context(), roomID, currentUser(c).ID); err != nil {
		Error(c, err)
		return
	}
	OK(c, nil)
}

type messagesQuery struct {
	Before   *time.Time `form:"before" time_format:"2006-01-02T15:04:05.999999999Z07:00"`
	BeforeID uint       `form:"before_id"`
	Limit    int        `form:"limit"`
}

// Messages ?before=<RFC3339>&before_id=&limit=，取上一页的 next_cursor，按时间正序返回
func (h *ChatHandler) Messages(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var q messagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		Fail(c, http.StatusBadRequest, "无效的查询参数")
		return
	}
	var cursor *services.MessageCursor
	if q.Before != nil {
		cursor = &services.MessageCursor{Before: *q.Before, BeforeID: q.BeforeID}
	}
	page, err := h.chat.Messages(c.Request.Context(), roomID, currentUser(c).ID, cursor, q.Limit)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"page": page})
}

type sendRequest struct {
	Content string `json:"content"`
}

func (h *ChatHandler) Send(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req sendRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.chat.Send(c.Request.Context(), roomID, currentUser(c).ID, req.Content)
	if err != nil {
		Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}

type markReadRequest struct {
	At *time.Time `json:"at"`
}

// MarkRead 已读位置只会前进
func (h *ChatHandler) MarkRead(c *gin.Context) {
	roomID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req markReadRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	readAt, err := h.chat.MarkRead(c.Request.Context(), roomID, currentUser(c).ID, req.At)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"last_read_at": readAt})
}
