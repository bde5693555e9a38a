package handlers

import (
	"hearth/internal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List ?unread=1 只看未读
func (h *NotificationHandler) List(c *gin.Context) {
	req, ok := bindPage(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	me := currentUser(c).ID

	page, err := h.notifications.List(ctx, me, c.Query("unread") == "1", req)
	if err != nil {
		Error(c, err)
		return
	}
	unread, err := h.notifications.UnreadCount(ctx, me)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"page": page, "unread": unread})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	unread, err := h.notifications.UnreadCount(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"unread": unread})
}

func (h *NotificationHandler) Read(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), currentUser(c).ID, id); err != nil {
		Error(c, err)
		return
	}
	OK(c, nil)
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"updated": n})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), currentUser(c).ID, id); err != nil {
		Error(c, err)
		return
	}
	OK(c, nil)
}
