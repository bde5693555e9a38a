package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestConflictOnDuplicate(t *testing.T) {
	err := conflictOnDuplicate(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), "用户名已被占用")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "用户名已被占用")

	other := errors.New("connection reset")
	assert.Equal(t, other, conflictOnDuplicate(other, "x"))
	assert.NoError(t, conflictOnDuplicate(nil, "x"))
}
