package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"hearth/internal/models"
	"hearth/internal/storage"
	"hearth/internal/utils"

	"github.com/gabriel-vasile/mimetype"
	"gorm.io/gorm"
)

const (
	MinPasswordLength = 8
	MaxAvatarBytes    = 5 << 20
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)
	usernameStrip   = regexp.MustCompile(`[^A-Za-z0-9_]`)

	avatarTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}
)

// UserService 注册登录、资料和头像
type UserService struct {
	db      *gorm.DB
	bucket  storage.Bucket
	follows *FollowService
	badges  *BadgeService
	logger  *slog.Logger
}

func NewUserService(db *gorm.DB, bucket storage.Bucket, follows *FollowService, badges *BadgeService, logger *slog.Logger) *UserService {
	return &UserService{db: db, bucket: bucket, follows: follows, badges: badges, logger: logger.With("component", "users")}
}

type RegisterInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register 用户名为空时取邮箱 @ 前面的部分
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || !strings.Contains(domain, ".") {
		return nil, invalid("邮箱格式不正确")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, invalid("密码至少%d位", MinPasswordLength)
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = usernameStrip.ReplaceAllString(local, "")
	}
	if !usernamePattern.MatchString(username) {
		return nil, invalid("用户名只能包含字母、数字和下划线，长度 3-32")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{Username: username, Email: email, Password: hash}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: 邮箱已注册", ErrConflict)
		}
		if err := tx.Model(&models.User{}).Where("LOWER(username) = LOWER(?)", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: 用户名已被占用", ErrConflict)
		}
		return conflictOnDuplicate(tx.Create(&user).Error, "邮箱或用户名已被占用")
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("User registered", "user_id", user.ID, "username", user.Username)
	return &user, nil
}

// Authenticate login 可以是邮箱或用户名
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? OR LOWER(username) = LOWER(?)", strings.ToLower(login), login).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.Password == "" || !utils.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	if user.Status == models.UserStatusBanned {
		return nil, ErrBanned
	}
	return &user, nil
}

// GoogleProfile Google userinfo 中用到的字段
type GoogleProfile struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleLogin 按 google id 查找；没有则按邮箱关联已有账号；都没有就新建
func (s *UserService) GoogleLogin(ctx context.Context, p GoogleProfile) (*models.User, error) {
	if p.ID == "" || p.Email == "" {
		return nil, invalid("Google 账号信息不完整")
	}
	email := strings.ToLower(p.Email)
	var user models.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("google_id = ?", p.ID).First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		err = tx.Where("email = ?", email).First(&user).Error
		if err == nil {
			return tx.Model(&user).Update("google_id", p.ID).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		username, err := s.availableUsername(tx, email)
		if err != nil {
			return err
		}
		user = models.User{
			Username:    username,
			Email:       email,
			DisplayName: p.Name,
			AvatarURL:   p.Picture,
			GoogleID:    p.ID,
		}
		return conflictOnDuplicate(tx.Create(&user).Error, "账号已存在")
	})
	if err != nil {
		return nil, err
	}
	if user.Status == models.UserStatusBanned {
		return nil, ErrBanned
	}
	return &user, nil
}

// availableUsername 由邮箱生成一个未被占用的用户名
func (s *UserService) availableUsername(tx *gorm.DB, email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	base := usernameStrip.ReplaceAllString(local, "")
	if len(base) > 24 {
		base = base[:24]
	}
	for len(base) < 3 {
		base += "_"
	}

	candidate := base
	for i := 0; i < 5; i++ {
		var count int64
		if err := tx.Model(&models.User{}).Where("LOWER(username) = LOWER(?)", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = base + "_" + strings.ToLower(utils.RandString(4))
	}
	return "", fmt.Errorf("%w: 无法生成用户名", ErrConflict)
}

func (s *UserService) ByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserService) ByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("LOWER(username) = LOWER(?)", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ProfileInput nil 字段不修改
type ProfileInput struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in ProfileInput) (*models.User, error) {
	updates := map[string]any{}

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if len([]rune(name)) > 64 {
			return nil, invalid("昵称最多 64 个字符")
		}
		updates["display_name"] = name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if len([]rune(bio)) > 200 {
			return nil, invalid("简介最多 200 个字符")
		}
		updates["bio"] = bio
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Username != nil {
			username := strings.TrimSpace(*in.Username)
			if !usernamePattern.MatchString(username) {
				return invalid("用户名只能包含字母、数字和下划线，长度 3-32")
			}
			var count int64
			if err := tx.Model(&models.User{}).
				Where("LOWER(username) = LOWER(?) AND id <> ?", username, userID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("%w: 用户名已被占用", ErrConflict)
			}
			updates["username"] = username
		}
		if len(updates) == 0 {
			return nil
		}
		return conflictOnDuplicate(tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error, "用户名已被占用")
	})
	if err != nil {
		return nil, err
	}
	return s.ByID(ctx, userID)
}

// Profile 公开主页
type Profile struct {
	User        *models.User  `json:"user"`
	Level       string        `json:"level"`
	LevelIcon   string        `json:"level_icon"`
	Posts       int64         `json:"posts"`
	Followers   int64         `json:"followers"`
	Following   int64         `json:"following"`
	Badge       *models.Badge `json:"badge"`
	IsFollowing bool          `json:"is_following"`
	JoinedDays  int           `json:"joined_days"`
}

func (s *UserService) Profile(ctx context.Context, viewerID uint, username string) (*Profile, error) {
	user, err := s.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	p := &Profile{User: user, JoinedDays: utils.GetDaysSinceJoined(user.CreatedAt)}
	p.Level, p.LevelIcon = utils.GetUserLevel(user.Points)

	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", user.ID).Count(&p.Posts).Error; err != nil {
		return nil, err
	}
	if p.Followers, p.Following, err = s.follows.Counts(ctx, user.ID); err != nil {
		return nil, err
	}
	if viewerID != 0 && viewerID != user.ID {
		if p.IsFollowing, err = s.follows.IsFollowing(ctx, viewerID, user.ID); err != nil {
			return nil, err
		}
	}

	equipped, err := s.badges.Equipped(ctx, []uint{user.ID})
	if err != nil {
		return nil, err
	}
	if b, ok := equipped[user.ID]; ok {
		p.Badge = &b
	}
	return p, nil
}

// UploadAvatar 只接受常见图片格式，按内容嗅探类型，不信任文件名和 Content-Type
func (s *UserService) UploadAvatar(ctx context.Context, userID uint, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxAvatarBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxAvatarBytes {
		return "", fmt.Errorf("%w: 头像不能超过 5MB", ErrTooLarge)
	}
	if len(data) == 0 {
		return "", invalid("请选择要上传的图片")
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), avatarTypes...) {
		return "", invalid("不支持的图片格式 %s", mtype.String())
	}

	user, err := s.ByID(ctx, userID)
	if err != nil {
		return "", err
	}

	token, err := utils.RandToken(12)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("avatars/%d/%s%s", userID, token, mtype.Extension())
	url, err := s.bucket.Put(ctx, key, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]any{"avatar_url": url, "updated_at": time.Now()}).Error; err != nil {
		_ = s.bucket.Delete(ctx, key)
		return "", err
	}

	if oldKey, ok := s.bucket.KeyFromURL(user.AvatarURL); ok {
		if err := s.bucket.Delete(ctx, oldKey); err != nil {
			s.logger.Warn("Failed to delete old avatar", "key", oldKey, "error", err)
		}
	}
	return url, nil
}

// Punish 设置禁言/封禁，days <= 0 表示永久；status 为 0 时解除
func (s *UserService) Punish(ctx context.Context, userID uint, status, days int) (*models.User, error) {
	if status < models.UserStatusNormal || status > models.UserStatusBanned {
		return nil, invalid("未知的用户状态 %d", status)
	}
	updates := map[string]any{"status": status, "punish_expires": nil}
	if status != models.UserStatusNormal && days > 0 {
		expires := time.Now().AddDate(0, 0, days)
		updates["punish_expires"] = &expires
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	s.logger.Info("User status changed", "user_id", userID, "status", status, "days", days)
	return s.ByID(ctx, userID)
}

// SetRole 设置 user/admin 角色
func (s *UserService) SetRole(ctx context.Context, username, role string) (*models.User, error) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, invalid("未知的角色 %q", role)
	}
	user, err := s.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("role", role).Error; err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}
