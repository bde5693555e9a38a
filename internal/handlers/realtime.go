package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hearth/internal/metrics"
	"hearth/internal/realtime"
	"hearth/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxClientFrame = 512
	maxTopics      = 50
)

// RoomMembers 判断用户是否在房间里，由 ChatService 实现
type RoomMembers interface {
	IsParticipant(ctx context.Context, roomID, userID uint) (bool, error)
}

// RealtimeHandler 把 broker 上的事件推给 WebSocket 客户端
type RealtimeHandler struct {
	broker   realtime.Broker
	chat     RoomMembers
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewRealtimeHandler(broker realtime.Broker, chat RoomMembers, logger *slog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		broker: broker,
		chat:   chat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: logger.With("component", "realtime"),
	}
}

// authorize 只能订阅自己的 user topic 和自己所在的房间；未指定时默认订阅自己
func (h *RealtimeHandler) authorize(ctx context.Context, userID uint, raw string) ([]string, error) {
	topics := lo.Map(strings.Split(raw, ","), func(t string, _ int) string { return strings.TrimSpace(t) })
	topics = lo.Uniq(lo.Reject(topics, func(t string, _ int) bool { return t == "" }))
	if len(topics) == 0 {
		return []string{realtime.UserTopic(userID)}, nil
	}
	if len(topics) > maxTopics {
		return nil, fmt.Errorf("%w: 最多订阅 %d 个 topic", services.ErrInvalidInput, maxTopics)
	}

	for _, topic := range topics {
		kind, id, ok := realtime.ParseTopic(topic)
		if !ok {
			return nil, fmt.Errorf("%w: 无效的 topic %q", services.ErrInvalidInput, topic)
		}
		switch kind {
		case "user":
			if id != userID {
				return nil, fmt.Errorf("%w: 不能订阅其他用户", services.ErrForbidden)
			}
		case "room":
			member, err := h.chat.IsParticipant(ctx, id, userID)
			if err != nil {
				return nil, err
			}
			if !member {
				return nil, services.ErrNotParticipant
			}
		}
	}
	return topics, nil
}

// Subscribe GET /api/realtime?topics=user.1,room.3
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	me := currentUser(c).ID
	topics, err := h.authorize(c.Request.Context(), me, c.Query("topics"))
	if err != nil {
		Error(c, err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// 自己的 user topic 总是订阅，用来接收退出房间之类的成员变化
	events, unsubscribe, err := h.broker.Subscribe(ctx, lo.Uniq(append(topics, realtime.UserTopic(me)))...)
	if err != nil {
		Error(c, err)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		h.logger.Debug("Websocket upgrade failed", "user_id", me, "error", err)
		return
	}
	defer conn.Close()

	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()
	h.logger.Debug("Realtime client connected", "user_id", me, "topics", topics)

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, events)
}

// readPump 只处理 pong 和关闭，读出错时结束连接
func (h *RealtimeHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *RealtimeHandler) writePump(ctx context.Context, conn *websocket.Conn, events <-chan realtime.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	gate := realtime.NewRoomGate()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			if !gate.Allow(ev) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
