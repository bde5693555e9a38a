package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// dryRunDB 不连接数据库，只记录生成的查询语句
func dryRunDB(t *testing.T) (*gorm.DB, *[]string) {
	t.Helper()
	conn, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=1 user=hearth dbname=hearth sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Discard,
	})
	require.NoError(t, err)

	var queries []string
	err = conn.Callback().Query().After("gorm:query").Register("test:capture", func(tx *gorm.DB) {
		queries = append(queries, tx.Dialector.Explain(tx.Statement.SQL.String(), tx.Statement.Vars...))
	})
	require.NoError(t, err)
	return conn, &queries
}

func pagedQuery(t *testing.T, queries []string) string {
	t.Helper()
	for _, q := range queries {
		if strings.Contains(q, "LIMIT") {
			return q
		}
	}
	t.Fatalf("no paged query in %q", queries)
	return ""
}

func TestNewPageWithoutNormalize(t *testing.T) {
	p := NewPage([]int{1}, PageRequest{})
	assert.Equal(t, []int{1}, p.Items)
	assert.False(t, p.HasMore)
	assert.Equal(t, 1, p.NextOffset)
}

func TestListsNormalizePageRequests(t *testing.T) {
	ctx := context.Background()
	conn, queries := dryRunDB(t)

	notifications := NewNotificationService(conn, nil, discardLogger())
	points := NewPointsService(conn, discardLogger())
	follows := NewFollowService(conn, nil)

	lists := map[string]func(PageRequest) error{
		"notifications": func(req PageRequest) error {
			_, err := notifications.List(ctx, 1, false, req)
			return err
		},
		"point logs": func(req PageRequest) error {
			_, err := points.Logs(ctx, 1, req)
			return err
		},
		"followers": func(req PageRequest) error {
			_, err := follows.Followers(ctx, 1, req)
			return err
		},
		"following": func(req PageRequest) error {
			_, err := follows.Following(ctx, 1, req)
			return err
		},
	}

	for name, list := range lists {
		t.Run(name, func(t *testing.T) {
			*queries = nil
			require.NoError(t, list(PageRequest{}))
			query := pagedQuery(t, *queries)
			assert.Contains(t, query, "LIMIT 21")
			assert.NotContains(t, query, "OFFSET")

			*queries = nil
			require.NoError(t, list(PageRequest{Page: 3, Size: 500}))
			assert.Contains(t, pagedQuery(t, *queries), "LIMIT 101 OFFSET 200")
		})
	}
}
