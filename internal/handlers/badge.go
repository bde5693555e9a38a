package handlers

import (
	"net/http"

	"hearth/internal/services"

	"github.com/gin-gonic/gin"
)

type BadgeHandler struct {
	badges *services.BadgeService
}

func NewBadgeHandler(badges *services.BadgeService) *BadgeHandler {
	return &BadgeHandler{badges: badges}
}

// Catalog 匿名也可浏览，登录后带拥有/佩戴状态
func (h *BadgeHandler) Catalog(c *gin.Context) {
	items, err := h.badges.Catalog(c.Request.Context(), viewerID(c))
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"badges": items})
}

func (h *BadgeHandler) Owned(c *gin.Context) {
	owned, err := h.badges.Owned(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"badges": owned})
}

func (h *BadgeHandler) Purchase(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ub, err := h.badges.Purchase(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"badge": ub})
}

// Equip POST 切换，PUT 佩戴，DELETE 取下
func (h *BadgeHandler) Equip(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	me := currentUser(c).ID

	var (
		state services.EquipState
		err   error
	)
	switch c.Request.Method {
	case http.MethodPut:
		err = h.badges.Equip(ctx, me, id)
		state = services.EquipState{BadgeID: id, Equipped: true}
	case http.MethodDelete:
		err = h.badges.Unequip(ctx, me)
		state = services.EquipState{BadgeID: id, Equipped: false}
	default:
		state, err = h.badges.ToggleEquip(ctx, me, id)
	}
	if err != nil {
		Error(c, err)
		return
	}
	OK(c, gin.H{"state": state})
}
