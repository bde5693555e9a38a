package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEvent(t *testing.T, eventType, topic string, payload any) Event {
	t.Helper()
	ev, err := NewEvent(eventType, topic, payload)
	require.NoError(t, err)
	return ev
}

func TestRoomGateStopsRoomEventsAfterLeaving(t *testing.T) {
	g := NewRoomGate()
	msg := mustEvent(t, EventMessageCreated, RoomTopic(3), map[string]string{"content": "hi"})
	other := mustEvent(t, EventMessageCreated, RoomTopic(4), map[string]string{"content": "hi"})

	assert.True(t, g.Allow(msg))

	left := mustEvent(t, EventRoomLeft, UserTopic(7), Membership{RoomID: 3, UserID: 7})
	assert.True(t, g.Allow(left), "the membership change itself is delivered")
	assert.False(t, g.Allow(msg))
	assert.True(t, g.Allow(other))

	joined := mustEvent(t, EventRoomJoined, UserTopic(7), Membership{RoomID: 3, UserID: 7})
	assert.True(t, g.Allow(joined))
	assert.True(t, g.Allow(msg))
}

func TestRoomGateIgnoresMalformedMembership(t *testing.T) {
	g := NewRoomGate()
	bad := Event{Type: EventRoomLeft, Topic: UserTopic(7), Payload: []byte(`"nope"`)}
	assert.True(t, g.Allow(bad))
	assert.True(t, g.Allow(mustEvent(t, EventMessageCreated, RoomTopic(3), nil)))
}
