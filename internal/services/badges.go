package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"hearth/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogItem 商店里的徽章，带当前用户的拥有/佩戴状态
type CatalogItem struct {
	models.Badge
	Owned    bool `json:"owned"`
	Equipped bool `json:"equipped"`
}

// EquipState 佩戴操作后的状态
type EquipState struct {
	BadgeID  uint `json:"badge_id"`
	Equipped bool `json:"equipped"`
}

// BadgeService 徽章商店：积分购买、佩戴，每人最多佩戴一个
type BadgeService struct {
	db       *gorm.DB
	points   *PointsService
	notifier *NotificationService
	logger   *slog.Logger
}

func NewBadgeService(db *gorm.DB, points *PointsService, notifier *NotificationService, logger *slog.Logger) *BadgeService {
	return &BadgeService{db: db, points: points, notifier: notifier, logger: logger.With("component", "badges")}
}

func (s *BadgeService) Catalog(ctx context.Context, userID uint) ([]CatalogItem, error) {
	var badges []models.Badge
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("price ASC").Order("id ASC").Find(&badges).Error; err != nil {
		return nil, err
	}

	owned := map[uint]models.UserBadge{}
	if userID != 0 {
		var rows []models.UserBadge
		if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, ub := range rows {
			owned[ub.BadgeID] = ub
		}
	}

	items := make([]CatalogItem, len(badges))
	for i, b := range badges {
		ub, ok := owned[b.ID]
		items[i] = CatalogItem{Badge: b, Owned: ok, Equipped: ok && ub.Equipped}
	}
	return items, nil
}

// Owned 用户拥有的徽章
func (s *BadgeService) Owned(ctx context.Context, userID uint) ([]models.UserBadge, error) {
	var rows []models.UserBadge
	err := s.db.WithContext(ctx).Preload("Badge").Where("user_id = ?", userID).Order("purchased_at DESC").Find(&rows).Error
	return rows, err
}

// Purchase 扣积分、发放徽章、记流水在同一个事务里
func (s *BadgeService) Purchase(ctx context.Context, userID, badgeID uint) (*models.UserBadge, error) {
	var ub models.UserBadge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var badge models.Badge
		err := tx.Where("id = ? AND active = ?", badgeID, true).First(&badge).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("badge %d: %w", badgeID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		if ub, err = s.grantTx(tx, userID, badge); err != nil {
			return err
		}

		return s.points.SpendTx(tx, PointChange{
			UserID:  userID,
			Amount:  badge.Price,
			Action:  ActionBadgePurchase,
			RefType: "badge",
			RefID:   badge.Code,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyLogged(ctx, &models.Notification{
		UserID:     userID,
		Type:       models.NotificationTypeBadge,
		TargetType: "badge",
		TargetID:   strconv.FormatUint(uint64(badgeID), 10),
		Message:    "获得徽章「" + ub.Badge.Name + "」",
	})
	s.logger.Info("Badge purchased", "user_id", userID, "badge", ub.Badge.Code)
	return &ub, nil
}

func (s *BadgeService) grantTx(tx *gorm.DB, userID uint, badge models.Badge) (models.UserBadge, error) {
	ub := models.UserBadge{UserID: userID, BadgeID: badge.ID}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ub)
	if res.Error != nil {
		return ub, res.Error
	}
	if res.RowsAffected == 0 {
		return ub, ErrAlreadyOwned
	}
	ub.Badge = badge
	return ub, nil
}

// Grant 管理员直接发放，不扣积分
func (s *BadgeService) Grant(ctx context.Context, userID uint, code string) (*models.UserBadge, error) {
	var ub models.UserBadge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var badge models.Badge
		err := tx.Where("code = ?", code).First(&badge).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("badge %q: %w", code, ErrNotFound)
		}
		if err != nil {
			return err
		}
		ub, err = s.grantTx(tx, userID, badge)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyLogged(ctx, &models.Notification{
		UserID:     userID,
		Type:       models.NotificationTypeBadge,
		TargetType: "badge",
		TargetID:   strconv.FormatUint(uint64(ub.BadgeID), 10),
		Message:    "获得徽章「" + ub.Badge.Name + "」",
	})
	return &ub, nil
}

// lockOwner 锁住用户行，同一用户的佩戴操作串行执行，保证最多佩戴一个
func lockOwner(tx *gorm.DB, userID uint) error {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func ownedBadge(tx *gorm.DB, userID, badgeID uint) (*models.UserBadge, error) {
	var ub models.UserBadge
	err := tx.Where("user_id = ? AND badge_id = ?", userID, badgeID).First(&ub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotOwned
	}
	if err != nil {
		return nil, err
	}
	return &ub, nil
}

func equipTx(tx *gorm.DB, ub *models.UserBadge) error {
	if err := tx.Model(&models.UserBadge{}).
		Where("user_id = ? AND badge_id <> ? AND equipped = ?", ub.UserID, ub.BadgeID, true).
		Update("equipped", false).Error; err != nil {
		return err
	}
	return tx.Model(ub).Update("equipped", true).Error
}

func unequipTx(tx *gorm.DB, userID uint) error {
	return tx.Model(&models.UserBadge{}).
		Where("user_id = ? AND equipped = ?", userID, true).
		Update("equipped", false).Error
}

// Equip 必须先拥有；同时卸下其他徽章
func (s *BadgeService) Equip(ctx context.Context, userID, badgeID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, userID); err != nil {
			return err
		}
		ub, err := ownedBadge(tx, userID, badgeID)
		if err != nil {
			return err
		}
		return equipTx(tx, ub)
	})
}

func (s *BadgeService) Unequip(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, userID); err != nil {
			return err
		}
		return unequipTx(tx, userID)
	})
}

// ToggleEquip 已佩戴则卸下，否则佩戴
func (s *BadgeService) ToggleEquip(ctx context.Context, userID, badgeID uint) (EquipState, error) {
	state := EquipState{BadgeID: badgeID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOwner(tx, userID); err != nil {
			return err
		}
		ub, err := ownedBadge(tx, userID, badgeID)
		if err != nil {
			return err
		}
		if ub.Equipped {
			return unequipTx(tx, userID)
		}
		state.Equipped = true
		return equipTx(tx, ub)
	})
	if err != nil {
		return EquipState{}, err
	}
	return state, nil
}

// Equipped 批量查询用户佩戴的徽章，用于装饰作者信息
func (s *BadgeService) Equipped(ctx context.Context, userIDs []uint) (map[uint]models.Badge, error) {
	out := make(map[uint]models.Badge)
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []models.UserBadge
	err := s.db.WithContext(ctx).Preload("Badge").
		Where("user_id IN ? AND equipped = ?", userIDs, true).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, ub := range rows {
		out[ub.UserID] = ub.Badge
	}
	return out, nil
}
