package handlers

import (
	"net/http"

	"hearth/internal/middleware"
	"hearth/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"resty.dev/v3"
)

type AuthHandler struct {
	users  *services.UserService
	google *oauth2.Config // nil 表示未配置 Google 登录
	client *resty.Client
}

func NewAuthHandler(users *services.UserService, google *oauth2.Config) *AuthHandler {
	return &AuthHandler{users: users, google: google, client: resty.New()}
}

// startSession 登录成功后写入会话
func startSession(c *gin.Context, userID uint) bool {
	session := sessions.Default(c)
	session.Clear()
	session.Set(middleware.SessionUserKey, userID)
	if err := session.Save(); err != nil {
		Error(c, err)
		return false
	}
	return true
}

func (h *AuthHandler) Register(c *gin.Context) {
	var in services.RegisterInput
	if !bindJSON(c, &in) {
		return
	}

	user, err := h.users.Register(c.Request.Context(), in)
	if err != nil {
		Error(c, err)
		return
	}
	if !startSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": user})
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"` // 邮箱或用户名
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		Error(c, err)
		return
	}
	if !startSession(c, user.ID) {
		return
	}
	OK(c, gin.H{"user": user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = session.Save()
	OK(c, nil)
}
