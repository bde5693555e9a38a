package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"hearth/internal/models"
	"hearth/internal/realtime"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MaxMessageLength   = 4000
	maxRoomNameLength  = 80
	defaultMessagePage = 50
)

// MessageItem 消息及其对当前用户是否未读
type MessageItem struct {
	models.Message
	Unread bool `json:"unread"`
}

// MessagePage 按时间正序返回，NextCursor 用作加载更早消息的游标
type MessagePage struct {
	Items      []MessageItem  `json:"items"`
	HasMore    bool           `json:"has_more"`
	NextCursor *MessageCursor `json:"next_cursor,omitempty"`
}

// MessageCursor 翻页位置，时间相同的消息按 id 区分；ID 为 0 时只按时间
type MessageCursor struct {
	Before   time.Time `json:"before"`
	BeforeID uint      `json:"before_id"`
}

// RoomSummary 房间列表项
type RoomSummary struct {
	Room        models.Room     `json:"room"`
	Unread      int64           `json:"unread"`
	LastReadAt  *time.Time      `json:"last_read_at"`
	LastMessage *models.Message `json:"last_message"`
	Members     []models.User   `json:"members"` // 除自己以外的成员
}

type ChatService struct {
	db     *gorm.DB
	broker realtime.Broker
	logger *slog.Logger
	now    func() time.Time
}

func NewChatService(db *gorm.DB, broker realtime.Broker, logger *slog.Logger) *ChatService {
	return &ChatService{db: db, broker: broker, logger: logger.With("component", "chat"), now: time.Now}
}

// DirectKey 私聊房间键 "小ID:大ID"
func DirectKey(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// IsUnread 别人发的、且晚于已读位置的消息为未读；从未读过时全部未读
func IsUnread(msg *models.Message, lastReadAt *time.Time, viewerID uint) bool {
	if msg.SenderID == viewerID {
		return false
	}
	return lastReadAt == nil || msg.CreatedAt.After(*lastReadAt)
}

func (s *ChatService) usersExist(tx *gorm.DB, ids []uint) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return err
	}
	if count != int64(len(ids)) {
		return fmt.Errorf("user: %w", ErrNotFound)
	}
	return nil
}

func addParticipants(tx *gorm.DB, roomID uint, userIDs []uint) error {
	rows := lo.Map(userIDs, func(id uint, _ int) models.RoomParticipant {
		return models.RoomParticipant{RoomID: roomID, UserID: id}
	})
	return tx.Omit("Room", "User").Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (s *ChatService) loadRoom(ctx context.Context, roomID uint) (*models.Room, error) {
	var room models.Room
	err := s.db.WithContext(ctx).Preload("Participants.User").First(&room, roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("room %d: %w", roomID, ErrNotFound)
	}
	return &room, err
}

// DirectRoom 获取或创建两人之间唯一的私聊房间
func (s *ChatService) DirectRoom(ctx context.Context, a, b uint) (*models.Room, error) {
	if a == b {
		return nil, invalid("不能和自己私聊")
	}
	key := DirectKey(a, b)

	var roomID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.usersExist(tx, []uint{a, b}); err != nil {
			return err
		}
		room := models.Room{IsDirect: true, DirectKey: &key, CreatedByID: a}
		res := tx.Omit("CreatedBy", "Participants").
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "direct_key"}}, DoNothing: true}).
			Create(&room)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Where("direct_key = ?", key).First(&room).Error; err != nil {
				return err
			}
		}
		roomID = room.ID
		return addParticipants(tx, room.ID, []uint{a, b})
	})
	if err != nil {
		return nil, err
	}
	return s.loadRoom(ctx, roomID)
}

// CreateGroup 创建群聊，创建者自动加入
func (s *ChatService) CreateGroup(ctx context.Context, creatorID uint, name string, memberIDs []uint) (*models.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("群聊名称不能为空")
	}
	if len([]rune(name)) > maxRoomNameLength {
		return nil, invalid("群聊名称最多 %d 个字符", maxRoomNameLength)
	}
	members := lo.Uniq(append([]uint{creatorID}, memberIDs...))

	room := models.Room{Name: name, CreatedByID: creatorID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.usersExist(tx, members); err != nil {
			return err
		}
		if err := tx.Omit("CreatedBy", "Participants").Create(&room).Error; err != nil {
			return err
		}
		return addParticipants(tx, room.ID, members)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Group created", "room_id", room.ID, "members", len(members))
	return s.loadRoom(ctx, room.ID)
}

func (s *ChatService) IsParticipant(ctx context.Context, roomID, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RoomParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *ChatService) requireParticipant(ctx context.Context, roomID, userID uint) error {
	ok, err := s.IsParticipant(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}
	return nil
}

// AddMember 群成员邀请他人；私聊房间不能加人
func (s *ChatService) AddMember(ctx context.Context, roomID, actorID, userID uint) (*models.Room, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.IsDirect {
		return nil, invalid("私聊不能添加成员")
	}
	if err := s.requireParticipant(ctx, roomID, actorID); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.usersExist(tx, []uint{userID}); err != nil {
			return err
		}
		return addParticipants(tx, roomID, []uint{userID})
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.EventRoomJoined, realtime.UserTopic(userID), realtime.Membership{RoomID: roomID, UserID: userID})
	return s.loadRoom(ctx, roomID)
}

func (s *ChatService) Leave(ctx context.Context, roomID, userID uint) error {
	res := s.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&models.RoomParticipant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotParticipant
	}
	// 已打开的连接据此停止转发该房间的消息
	s.publish(ctx, realtime.EventRoomLeft, realtime.UserTopic(userID), realtime.Membership{RoomID: roomID, UserID: userID})
	return nil
}

// Send 发送消息：更新房间最后消息时间，发送者自动已读，并推送实时事件
func (s *ChatService) Send(ctx context.Context, roomID, senderID uint, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("消息不能为空")
	}
	if len([]rune(content)) > MaxMessageLength {
		return nil, invalid("消息最多 %d 个字符", MaxMessageLength)
	}
	if err := s.requireParticipant(ctx, roomID, senderID); err != nil {
		return nil, err
	}

	msg := models.Message{RoomID: roomID, SenderID: senderID, Content: content, CreatedAt: s.now()}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Room", "Sender").Create(&msg).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Room{}).Where("id = ?", roomID).
			UpdateColumn("last_message_at", msg.CreatedAt).Error; err != nil {
			return err
		}
		_, err := markReadTx(tx, roomID, senderID, msg.CreatedAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	if err := s.db.WithContext(ctx).First(&msg.Sender, senderID).Error; err != nil {
		s.logger.Warn("Failed to load sender", "user_id", senderID, "error", err)
	}
	s.publishMessage(ctx, &msg)
	return &msg, nil
}

// publishMessage 推送到房间 topic，同时推到其他成员的用户 topic 用于刷新未读数
func (s *ChatService) publishMessage(ctx context.Context, msg *models.Message) {
	var members []uint
	if err := s.db.WithContext(ctx).Model(&models.RoomParticipant{}).
		Where("room_id = ? AND user_id <> ?", msg.RoomID, msg.SenderID).
		Pluck("user_id", &members).Error; err != nil {
		s.logger.Warn("Failed to list room members", "room_id", msg.RoomID, "error", err)
	}

	topics := append([]string{realtime.RoomTopic(msg.RoomID)},
		lo.Map(members, func(id uint, _ int) string { return realtime.UserTopic(id) })...)
	for _, topic := range topics {
		s.publish(ctx, realtime.EventMessageCreated, topic, msg)
	}
}

func (s *ChatService) publish(ctx context.Context, eventType, topic string, payload any) {
	ev, err := realtime.NewEvent(eventType, topic, payload)
	if err == nil {
		err = s.broker.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warn("Failed to publish event", "type", eventType, "topic", topic, "error", err)
	}
}

// Messages cursor 之前的一页消息（不含 cursor），最新的 limit 条按时间正序返回
func (s *ChatService) Messages(ctx context.Context, roomID, userID uint, cursor *MessageCursor, limit int) (MessagePage, error) {
	var lastRead struct{ LastReadAt *time.Time }
	res := s.db.WithContext(ctx).Model(&models.RoomParticipant{}).Select("last_read_at").
		Where("room_id = ? AND user_id = ?", roomID, userID).Scan(&lastRead)
	if res.Error != nil {
		return MessagePage{}, res.Error
	}
	if res.RowsAffected == 0 {
		return MessagePage{}, ErrNotParticipant
	}

	if limit <= 0 {
		limit = defaultMessagePage
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	q := s.db.WithContext(ctx).Preload("Sender").Where("room_id = ?", roomID)
	switch {
	case cursor == nil:
	case cursor.BeforeID > 0:
		q = q.Where("(created_at, id) < (?, ?)", cursor.Before, cursor.BeforeID)
	default:
		q = q.Where("created_at < ?", cursor.Before)
	}
	var rows []models.Message
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return MessagePage{}, err
	}

	page := MessagePage{HasMore: len(rows) > limit}
	if page.HasMore {
		rows = rows[:limit]
	}
	rows = lo.Reverse(rows)

	page.Items = make([]MessageItem, len(rows))
	for i := range rows {
		page.Items[i] = MessageItem{Message: rows[i], Unread: IsUnread(&rows[i], lastRead.LastReadAt, userID)}
	}
	if len(rows) > 0 {
		page.NextCursor = &MessageCursor{Before: rows[0].CreatedAt, BeforeID: rows[0].ID}
	}
	return page, nil
}

// markReadTx last_read_at 只前进不后退
func markReadTx(tx *gorm.DB, roomID, userID uint, at time.Time) (int64, error) {
	res := tx.Exec(
		"UPDATE room_participants SET last_read_at = GREATEST(COALESCE(last_read_at, ?), ?) WHERE room_id = ? AND user_id = ?",
		at, at, roomID, userID,
	)
	return res.RowsAffected, res.Error
}

// MarkRead 标记已读到 at（为空或晚于当前时间时取当前时间），返回生效后的已读位置
func (s *ChatService) MarkRead(ctx context.Context, roomID, userID uint, at *time.Time) (time.Time, error) {
	now := s.now()
	readAt := now
	if at != nil && at.Before(now) {
		readAt = *at
	}

	n, err := markReadTx(s.db.WithContext(ctx), roomID, userID, readAt)
	if err != nil {
		return time.Time{}, err
	}
	if n == 0 {
		return time.Time{}, ErrNotParticipant
	}

	var p models.RoomParticipant
	if err := s.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&p).Error; err != nil {
		return time.Time{}, err
	}
	s.publish(ctx, realtime.EventRoomRead, realtime.UserTopic(userID), map[string]any{
		"room_id":      roomID,
		"last_read_at": p.LastReadAt,
	})
	return *p.LastReadAt, nil
}

const unreadSQL = `
SELECT m.room_id, COUNT(*) AS unread
FROM messages m
JOIN room_participants rp ON rp.room_id = m.room_id AND rp.user_id = ?
WHERE m.sender_id <> ? AND (rp.last_read_at IS NULL OR m.created_at > rp.last_read_at)
GROUP BY m.room_id`

type roomUnread struct {
	RoomID uint
	Unread int64
}

// Rooms 用户所在房间，按最后消息时间倒序
func (s *ChatService) Rooms(ctx context.Context, userID uint) ([]RoomSummary, error) {
	db := s.db.WithContext(ctx)

	var parts []models.RoomParticipant
	if err := db.Preload("Room").Where("user_id = ?", userID).Find(&parts).Error; err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return []RoomSummary{}, nil
	}
	roomIDs := lo.Map(parts, func(p models.RoomParticipant, _ int) uint { return p.RoomID })

	var unread []roomUnread
	if err := db.Raw(unreadSQL, userID, userID).Scan(&unread).Error; err != nil {
		return nil, err
	}
	unreadBy := lo.Associate(unread, func(u roomUnread) (uint, int64) { return u.RoomID, u.Unread })

	var last []models.Message
	if err := db.Raw(
		"SELECT DISTINCT ON (room_id) * FROM messages WHERE room_id IN ? ORDER BY room_id, created_at DESC, id DESC",
		roomIDs,
	).Scan(&last).Error; err != nil {
		return nil, err
	}
	lastBy := lo.Associate(last, func(m models.Message) (uint, models.Message) { return m.RoomID, m })

	var others []models.RoomParticipant
	if err := db.Preload("User").Where("room_id IN ? AND user_id <> ?", roomIDs, userID).Find(&others).Error; err != nil {
		return nil, err
	}
	membersBy := lo.GroupBy(others, func(p models.RoomParticipant) uint { return p.RoomID })

	out := make([]RoomSummary, len(parts))
	for i, p := range parts {
		sum := RoomSummary{
			Room:       p.Room,
			Unread:     unreadBy[p.RoomID],
			LastReadAt: p.LastReadAt,
			Members:    lo.Map(membersBy[p.RoomID], func(m models.RoomParticipant, _ int) models.User { return m.User }),
		}
		if m, ok := lastBy[p.RoomID]; ok {
			sum.LastMessage = &m
		}
		out[i] = sum
	}

	sort.SliceStable(out, func(i, j int) bool {
		return roomActivity(out[i].Room).After(roomActivity(out[j].Room))
	})
	return out, nil
}

func roomActivity(r models.Room) time.Time {
	if r.LastMessageAt != nil {
		return *r.LastMessageAt
	}
	return r.CreatedAt
}

// UnreadTotal 所有房间的未读消息数
func (s *ChatService) UnreadTotal(ctx context.Context, userID uint) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Raw(
		"SELECT COALESCE(SUM(unread), 0) FROM ("+unreadSQL+") t", userID, userID,
	).Scan(&total).Error
	return total, err
}
