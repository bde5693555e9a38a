package services

import (
	"context"
	"time"

	"hearth/internal/models"

	"gorm.io/gorm"
)

// ensureCanWrite 封禁用户不能发帖评论；禁言过期的顺便恢复状态
func ensureCanWrite(ctx context.Context, db *gorm.DB, user *models.User) error {
	switch user.Status {
	case models.UserStatusBanned:
		return ErrBanned
	case models.UserStatusMuted:
		if user.Muted(time.Now()) {
			return ErrMuted
		}
		if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
			Updates(map[string]any{"status": models.UserStatusNormal, "punish_expires": nil}).Error; err != nil {
			return err
		}
		user.Status = models.UserStatusNormal
		user.PunishExpires = nil
	}
	return nil
}

// canModify 作者本人或管理员
func canModify(user *models.User, ownerID uint) bool {
	return user.ID == ownerID || user.IsAdmin()
}
