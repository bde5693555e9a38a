package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   PageRequest
		want PageRequest
	}{
		{"defaults", PageRequest{}, PageRequest{Size: 20}},
		{"clamp max", PageRequest{Size: 500}, PageRequest{Size: 100}},
		{"page to offset", PageRequest{Page: 3, Size: 10}, PageRequest{Page: 3, Size: 10, Offset: 20}},
		{"negative offset", PageRequest{Offset: -5, Size: 10}, PageRequest{Size: 10}},
		{"keeps sort", PageRequest{Sort: SortTop}, PageRequest{Size: 20, Sort: SortTop}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Normalize(20))
		})
	}
}

func TestNewPage(t *testing.T) {
	req := PageRequest{Offset: 10, Size: 3}

	full := NewPage([]int{1, 2, 3, 4}, req)
	assert.Equal(t, []int{1, 2, 3}, full.Items)
	assert.True(t, full.HasMore)
	assert.Equal(t, 13, full.NextOffset)

	// 恰好满页但没有更多数据
	exact := NewPage([]int{1, 2, 3}, req)
	assert.False(t, exact.HasMore)
	assert.Equal(t, 13, exact.NextOffset)

	empty := NewPage[int](nil, req)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
	assert.False(t, empty.HasMore)
}

func TestMapPage(t *testing.T) {
	p := Page[int]{Items: []int{1, 2}, HasMore: true, NextOffset: 2}
	out := MapPage(p, func(i int) string { return string(rune('a' + i - 1)) })
	assert.Equal(t, []string{"a", "b"}, out.Items)
	assert.True(t, out.HasMore)
	assert.Equal(t, 2, out.NextOffset)
}

func TestOrders(t *testing.T) {
	assert.Equal(t, "posts.score DESC", postOrder(SortTop)[0])
	assert.Equal(t, "posts.created_at DESC", postOrder("bogus")[0])
	assert.Equal(t, "news_articles.view_count DESC", newsOrder(SortPopular)[0])
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike(" 100% "))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c\\d`, escapeLike(`c\d`))
}
