package realtime

import "encoding/json"

// RoomGate 跟踪一个连接上的成员变化：收到 room.left 后不再转发该房间的事件，
// 重新加入（room.joined）后恢复
type RoomGate struct {
	left map[string]bool
}

func NewRoomGate() *RoomGate {
	return &RoomGate{left: make(map[string]bool)}
}

// Allow 决定事件是否转发给客户端
func (g *RoomGate) Allow(ev Event) bool {
	switch ev.Type {
	case EventRoomLeft, EventRoomJoined:
		var m Membership
		if err := json.Unmarshal(ev.Payload, &m); err != nil || m.RoomID == 0 {
			return true
		}
		topic := RoomTopic(m.RoomID)
		if ev.Type == EventRoomLeft {
			g.left[topic] = true
		} else {
			delete(g.left, topic)
		}
		return true
	}
	return !g.left[ev.Topic]
}
