package middleware

import (
	"context"
	"net/http"

	"hearth/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CheckUserKey   = "user"
	SessionUserKey = "user_id"
)

// UserLoader 按 ID 取用户，由 UserService 实现
type UserLoader interface {
	ByID(ctx context.Context, id uint) (*models.User, error)
}

// LoadUser retrieves user from session and sets to context
func LoadUser(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if id, ok := sessionUserID(session.Get(SessionUserKey)); ok {
			user, err := users.ByID(c.Request.Context(), id)
			if err == nil {
				c.Set(CheckUserKey, user)
			} else {
				// 用户已被删除，清掉失效的会话
				session.Delete(SessionUserKey)
				_ = session.Save()
			}
		}
		c.Next()
	}
}

func sessionUserID(v any) (uint, bool) {
	switch id := v.(type) {
	case uint:
		return id, id != 0
	case int:
		return uint(id), id > 0
	case int64:
		return uint(id), id > 0
	case float64:
		return uint(id), id > 0
	}
	return 0, false
}

// CurrentUser 未登录时返回 nil
func CurrentUser(c *gin.Context) *models.User {
	if u, ok := c.Get(CheckUserKey); ok {
		if user, ok := u.(*models.User); ok {
			return user
		}
	}
	return nil
}

// CurrentUserID 未登录时为 0
func CurrentUserID(c *gin.Context) uint {
	if user := CurrentUser(c); user != nil {
		return user.ID
	}
	return 0
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "请先登录"})
			return
		}
		c.Next()
	}
}

// AdminRequired 必须在 AuthRequired 之后
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "需要管理员权限"})
			return
		}
		c.Next()
	}
}
