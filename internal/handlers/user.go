package handlers

import (
	"context"
	"net/http"

	"hearth/internal/models"
	"hearth/internal/services"
	"hearth/internal/utils"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	users         *services.UserService
	follows       *services.FollowService
	points        *services.PointsService
	posts         *services.PostService
	notifications *services.NotificationService
	chat          *services.ChatService
}

func NewUserHandler(s *services.Services) *UserHandler {
	return &UserHandler{
		users:         s.Users,
		follows:       s.Follows,
		points:        s.Points,
		posts:         s.Posts,
		notifications: s.Notifications,
		chat:          s.Chat,
	}
}

// Me 当前用户，带等级、签到状态和未读数
func (h *UserHandler) Me(c *gin.Context) {
	user := currentUser(c)
	ctx := c.Request.Context()

	checkedIn, err := h.points.CheckedInToday(ctx, user.ID)
	if err != nil {
		Error(c, err)
		return
	}
	unreadNotifications, err := h.notifications.UnreadCount(ctx, user.ID)
	if err != nil {
		Error(c, err)
		return
	}
	unreadMessages, err := h.chat.UnreadTotal(ctx, user.ID)
	if err != nil {
		Error(c, err)
		return
	}

	level, icon := utils.GetUserLevel(user.Points)
	OK(c, gin.H{
		"user":                 user,
		"level":                level,
		"level_icon":           icon,
		"checked_in":           checkedIn,
		"unread_notifications": unreadNotifications,
		"unread_messages":      unreadMessages,
	})
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var in services.ProfileInput
	if !bindJSON(c, &in) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), currentUser(c).ID, in)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"user": user})
}

// UploadAvatar 表单字段 avatar
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxAvatarBytes+1<<20)
	file, err := c.FormFile("avatar")
	if err != nil {
		Fail(c, http.StatusBadRequest, "请选择要上传的图片")
		return
	}
	if file.Size > services.MaxAvatarBytes {
		Fail(c, http.StatusRequestEntityTooLarge, "头像不能超过 5MB")
		return
	}

	src, err := file.Open()
	if err != nil {
		Error(c, err)
		return
	}
	defer src.Close()

	url, err := h.users.UploadAvatar(c.Request.Context(), currentUser(c).ID, src)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"avatar_url": url})
}

// CheckIn - 每日签到
func (h *UserHandler) CheckIn(c *gin.Context) {
	result, err := h.points.CheckIn(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"result": result})
}

// PointLogs 积分明细
func (h *UserHandler) PointLogs(c *gin.Context) {
	req, ok := bindPage(c)
	if !ok {
		return
	}
	page, err := h.points.Logs(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"page": page})
}

// Profile - 用户主页 /api/users/:username
func (h *UserHandler) Profile(c *gin.Context) {
	profile, err := h.users.Profile(c.Request.Context(), viewerID(c), c.Param("username"))
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"profile": profile})
}

func (h *UserHandler) Posts(c *gin.Context) {
	req, ok := bindPage(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := h.users.ByUsername(ctx, c.Param("username"))
	if err != nil {
		Error(c, err)
		return
	}
	page, err := h.posts.Feed(ctx, viewerID(c), services.PostFilter{AuthorID: user.ID}, req)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"page": page})
}

func (h *UserHandler) Followers(c *gin.Context) {
	h.followList(c, h.follows.Followers)
}

func (h *UserHandler) Following(c *gin.Context) {
	h.followList(c, h.follows.Following)
}

type followLister func(ctx context.Context, userID uint, req services.PageRequest) (services.Page[models.User], error)

func (h *UserHandler) followList(c *gin.Context, list followLister) {
	req, ok := bindPage(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	user, err := h.users.ByUsername(ctx, c.Param("username"))
	if err != nil {
		Error(c, err)
		return
	}
	page, err := list(ctx, user.ID, req)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"page": page})
}

// Follow POST 切换，PUT 关注，DELETE 取消关注
func (h *UserHandler) Follow(c *gin.Context) {
	ctx := c.Request.Context()
	target, err := h.users.ByUsername(ctx, c.Param("username"))
	if err != nil {
		Error(c, err)
		return
	}

	me := currentUser(c).ID
	var state services.FollowState
	switch c.Request.Method {
	case http.MethodPut:
		state, err = h.follows.Follow(ctx, me, target.ID)
	case http.MethodDelete:
		state, err = h.follows.Unfollow(ctx, me, target.ID)
	default:
		state, err = h.follows.Toggle(ctx, me, target.ID)
	}
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"state": state})
}
