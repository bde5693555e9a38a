package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandString(t *testing.T) {
	a := RandString(8)
	b := RandString(8)
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
	for _, r := range a {
		assert.True(t, strings.ContainsRune(letterBytes, r))
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("battery staple", hash))
}

func TestStringToUint(t *testing.T) {
	v, ok := StringToUint("42")
	assert.True(t, ok)
	assert.Equal(t, uint(42), v)

	for _, bad := range []string{"", "0", "-1", "abc"} {
		_, ok := StringToUint(bad)
		assert.False(t, ok, bad)
	}
}

func TestGetUserLevel(t *testing.T) {
	name, _ := GetUserLevel(0)
	assert.Equal(t, "火种", name)
	name, _ = GetUserLevel(1000)
	assert.Equal(t, "篝火", name)
}
