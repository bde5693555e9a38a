package services

import (
	"testing"
	"time"

	"hearth/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDirectKey(t *testing.T) {
	assert.Equal(t, "3:9", DirectKey(9, 3))
	assert.Equal(t, DirectKey(1, 2), DirectKey(2, 1))
}

func TestIsUnread(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &models.Message{SenderID: 2, CreatedAt: base}

	before := base.Add(-time.Minute)
	after := base.Add(time.Minute)

	assert.True(t, IsUnread(msg, nil, 1), "never read")
	assert.True(t, IsUnread(msg, &before, 1))
	assert.False(t, IsUnread(msg, &base, 1), "read exactly at message time")
	assert.False(t, IsUnread(msg, &after, 1))
	assert.False(t, IsUnread(msg, nil, 2), "own messages are never unread")
}

func TestRoomActivity(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	last := created.Add(time.Hour)

	assert.Equal(t, created, roomActivity(models.Room{CreatedAt: created}))
	assert.Equal(t, last, roomActivity(models.Room{CreatedAt: created, LastMessageAt: &last}))
}
