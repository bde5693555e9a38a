package handlers

import (
	"errors"
	"net/http"

	"hearth/internal/middleware"
	"hearth/internal/models"
	"hearth/internal/services"
	"hearth/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// OK 统一的成功响应
func OK(c *gin.Context, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}
	obj["success"] = true
	c.JSON(http.StatusOK, obj)
}

// Fail 统一的失败响应
func Fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"success": false, "error": message})
}

// statusOf 业务错误映射到 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, services.ErrAlreadyOwned), errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrAlreadyIngested), errors.Is(err, services.ErrAlreadyCheckedIn):
		return http.StatusConflict
	case errors.Is(err, services.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrInsufficientPoints), errors.Is(err, services.ErrNotOwned):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrSelfFollow),
		errors.Is(err, services.ErrEmptyDocument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Error 按错误类型返回，5xx 不把内部错误暴露给客户端
func Error(c *gin.Context, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
		Fail(c, code, "服务器内部错误")
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		Fail(c, code, "内容不存在")
		return
	}
	Fail(c, code, err.Error())
}

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}

func viewerID(c *gin.Context) uint {
	return middleware.CurrentUserID(c)
}

// paramID 解析路径中的数字 ID，非法时直接返回 400
func paramID(c *gin.Context, name string) (uint, bool) {
	id, ok := utils.StringToUint(c.Param(name))
	if !ok {
		Fail(c, http.StatusBadRequest, "无效的 ID")
	}
	return id, ok
}

func bindPage(c *gin.Context) (services.PageRequest, bool) {
	var req services.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		Fail(c, http.StatusBadRequest, "无效的分页参数")
		return req, false
	}
	return req, true
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		Fail(c, http.StatusBadRequest, "无效的请求体")
		return false
	}
	return true
}
