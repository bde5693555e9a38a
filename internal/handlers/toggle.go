package handlers

import (
	"context"
	"net/http"

	"hearth/internal/services"
	"hearth/internal/utils"

	"github.com/gin-gonic/gin"
)

// Resolver 把路径参数解析为目标行 ID
type Resolver func(ctx context.Context, param string) (uint, error)

// NumericID 路径参数本身就是数字 ID
func NumericID(_ context.Context, param string) (uint, error) {
	id, ok := utils.StringToUint(param)
	if !ok {
		return 0, services.ErrNotFound
	}
	return id, nil
}

// ToggleHandler 点赞/收藏。POST 切换，PUT 设为开启，DELETE 设为关闭；
// 响应里的状态和计数是权威值，客户端据此确认或回滚
type ToggleHandler struct {
	toggler *services.Toggler
	resolve Resolver
	param   string
}

func NewToggleHandler(toggler *services.Toggler, param string, resolve Resolver) *ToggleHandler {
	return &ToggleHandler{toggler: toggler, resolve: resolve, param: param}
}

func (h *ToggleHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	targetID, err := h.resolve(ctx, c.Param(h.param))
	if err != nil {
		Error(c, err)
		return
	}

	userID := currentUser(c).ID
	var result services.ToggleResult
	switch c.Request.Method {
	case http.MethodPut:
		result, err = h.toggler.Set(ctx, userID, targetID, true)
	case http.MethodDelete:
		result, err = h.toggler.Set(ctx, userID, targetID, false)
	default:
		result, err = h.toggler.Toggle(ctx, userID, targetID)
	}
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"active": result.Active, "count": result.Count})
}

// Status 当前用户对目标的状态
func (h *ToggleHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	targetID, err := h.resolve(ctx, c.Param(h.param))
	if err != nil {
		Error(c, err)
		return
	}
	active, err := h.toggler.IsActive(ctx, currentUser(c).ID, targetID)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"active": active})
}
