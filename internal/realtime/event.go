package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// 事件类型
const (
	EventMessageCreated      = "message.created"
	EventRoomRead            = "room.read"
	EventNotificationCreated = "notification.created"
	EventRoomJoined          = "room.joined"
	EventRoomLeft            = "room.left"
)

// Membership room.joined / room.left 的 payload，发到成员自己的 user topic
type Membership struct {
	RoomID uint `json:"room_id"`
	UserID uint `json:"user_id"`
}

var ErrClosed = errors.New("realtime: broker closed")

// Event 推送给客户端的变更事件
type Event struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// NewEvent 序列化 payload 并填充时间
func NewEvent(eventType, topic string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Topic: topic, Payload: raw, At: time.Now()}, nil
}

// Broker 变更事件的发布订阅。Subscribe 返回的 cancel 必须调用
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, topics ...string) (<-chan Event, func(), error)
	Close() error
}

func UserTopic(userID uint) string {
	return "user." + strconv.FormatUint(uint64(userID), 10)
}

func RoomTopic(roomID uint) string {
	return "room." + strconv.FormatUint(uint64(roomID), 10)
}

// ParseTopic 拆出 topic 的种类和 ID，如 "room.12" -> ("room", 12)
func ParseTopic(topic string) (kind string, id uint, ok bool) {
	kind, rest, found := strings.Cut(topic, ".")
	if !found || (kind != "user" && kind != "room") {
		return "", 0, false
	}
	n, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || n == 0 {
		return "", 0, false
	}
	return kind, uint(n), true
}
