//go:build integration

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hearth/internal/config"
	"hearth/internal/db"
	"hearth/internal/models"
	"hearth/internal/realtime"
	"hearth/internal/storage"
	"hearth/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

var (
	testDB  *gorm.DB
	userSeq atomic.Int64
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("hearth"),
		postgres.WithUsername("hearth"),
		postgres.WithPassword("hearth"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start PostgreSQL container: %v\n", err)
		os.Exit(1)
	}

	code := func() int {
		defer func() {
			if err := pgContainer.Terminate(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to terminate container: %v\n", err)
			}
		}()

		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
			return 1
		}
		testDB, err = db.Open(connStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
			return 1
		}
		if err := db.Seed(testDB); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to seed: %v\n", err)
			return 1
		}
		return m.Run()
	}()
	os.Exit(code)
}

func newTestServices(t *testing.T) *Services {
	t.Helper()
	bucket, err := storage.NewFileBucket(t.TempDir(), "/uploads")
	require.NoError(t, err)

	cfg := &config.Config{FeedPageSize: 20, IngestMaxBytes: 1 << 20, NewsRetentionDays: 30, NewsFetchInterval: time.Hour}
	s := New(testDB, cfg, realtime.NewMemoryBroker(discardLogger()), bucket, discardLogger())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestUser(t *testing.T, s *Services) *models.User {
	t.Helper()
	n := userSeq.Add(1)
	user, err := s.Users.Register(context.Background(), RegisterInput{
		Email:    fmt.Sprintf("user%d@example.com", n),
		Username: fmt.Sprintf("user_%d", n),
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	return user
}

func reloadUser(t *testing.T, id uint) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, testDB.First(&user, id).Error)
	return &user
}

func TestIntegrationPostLikeToggle(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	author := newTestUser(t, s)
	fan := newTestUser(t, s)

	post, err := s.Posts.Create(ctx, author, PostInput{Title: "hello hearth", Content: "**hi**"})
	require.NoError(t, err)
	before := reloadUser(t, author.ID).Points

	res, err := s.PostLikes.Toggle(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: true, Count: 1}, res)
	assert.Equal(t, before+PointsPostLiked, reloadUser(t, author.ID).Points)

	var notifications int64
	testDB.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", author.ID, models.NotificationTypeLikePost).Count(&notifications)
	assert.EqualValues(t, 1, notifications)

	res, err = s.PostLikes.Toggle(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: false, Count: 0}, res)
	assert.Equal(t, before, reloadUser(t, author.ID).Points)

	// Set 是幂等的
	for range 2 {
		res, err = s.PostLikes.Set(ctx, fan.ID, post.ID, true)
		require.NoError(t, err)
		assert.Equal(t, ToggleResult{Active: true, Count: 1}, res)
	}

	// 自己点赞不加分
	res, err = s.PostLikes.Toggle(ctx, author.ID, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Count)
	assert.Equal(t, before+PointsPostLiked, reloadUser(t, author.ID).Points)

	_, err = s.PostLikes.Toggle(ctx, fan.ID, 999999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIntegrationConcurrentLikesKeepCounterExact(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	author := newTestUser(t, s)
	post, err := s.Posts.Create(ctx, author, PostInput{Title: "busy post"})
	require.NoError(t, err)

	const fans = 8
	users := make([]*models.User, fans)
	for i := range users {
		users[i] = newTestUser(t, s)
	}

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(2)
		// 同一个用户并发两次 PUT，只应计一次
		for range 2 {
			go func() {
				defer wg.Done()
				_, err := s.PostLikes.Set(ctx, u.ID, post.ID, true)
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	var stored models.Post
	require.NoError(t, testDB.First(&stored, post.ID).Error)
	assert.Equal(t, fans, stored.LikeCount)

	var rows int64
	testDB.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&rows)
	assert.EqualValues(t, fans, rows)
}

func TestIntegrationBadgeShop(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	user := newTestUser(t, s)

	var quill models.Badge
	require.NoError(t, testDB.Where("code = ?", "quill").First(&quill).Error)

	_, err := s.Badges.Purchase(ctx, user.ID, quill.ID)
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	assert.Equal(t, 0, reloadUser(t, user.ID).Points)

	var owned int64
	testDB.Model(&models.UserBadge{}).Where("user_id = ?", user.ID).Count(&owned)
	assert.EqualValues(t, 0, owned, "failed purchase must not leave a badge behind")

	require.NoError(t, s.Points.Add(ctx, PointChange{UserID: user.ID, Amount: 50, Action: "测试"}))

	err = s.Badges.Equip(ctx, user.ID, quill.ID)
	assert.ErrorIs(t, err, ErrNotOwned)

	ub, err := s.Badges.Purchase(ctx, user.ID, quill.ID)
	require.NoError(t, err)
	assert.Equal(t, "quill", ub.Badge.Code)
	assert.Equal(t, 50-quill.Price, reloadUser(t, user.ID).Points)

	_, err = s.Badges.Purchase(ctx, user.ID, quill.ID)
	assert.ErrorIs(t, err, ErrAlreadyOwned)
	assert.Equal(t, 50-quill.Price, reloadUser(t, user.ID).Points)

	state, err := s.Badges.ToggleEquip(ctx, user.ID, quill.ID)
	require.NoError(t, err)
	assert.True(t, state.Equipped)

	equipped, err := s.Badges.Equipped(ctx, []uint{user.ID})
	require.NoError(t, err)
	assert.Equal(t, "quill", equipped[user.ID].Code)

	// 发放第二个徽章并佩戴，之前的自动卸下
	sprout, err := s.Badges.Grant(ctx, user.ID, "sprout")
	require.NoError(t, err)
	require.NoError(t, s.Badges.Equip(ctx, user.ID, sprout.BadgeID))

	var equippedCount int64
	testDB.Model(&models.UserBadge{}).Where("user_id = ? AND equipped = ?", user.ID, true).Count(&equippedCount)
	assert.EqualValues(t, 1, equippedCount)
}

func TestIntegrationChatReadTracking(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	alice := newTestUser(t, s)
	bob := newTestUser(t, s)

	room, err := s.Chat.DirectRoom(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	again, err := s.Chat.DirectRoom(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, again.ID)

	_, err = s.Chat.DirectRoom(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	events, cancel, err := s.Broker.Subscribe(ctx, realtime.UserTopic(bob.ID))
	require.NoError(t, err)
	defer cancel()

	first, err := s.Chat.Send(ctx, room.ID, alice.ID, "  hi bob  ")
	require.NoError(t, err)
	assert.Equal(t, "hi bob", first.Content)
	_, err = s.Chat.Send(ctx, room.ID, alice.ID, "are you there?")
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, realtime.EventMessageCreated, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no realtime event for the recipient")
	}

	unread, err := s.Chat.UnreadTotal(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	senderUnread, err := s.Chat.UnreadTotal(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, senderUnread)

	readAt, err := s.Chat.MarkRead(ctx, room.ID, bob.ID, &first.CreatedAt)
	require.NoError(t, err)
	rooms, err := s.Chat.Rooms(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.EqualValues(t, 1, rooms[0].Unread)
	assert.Equal(t, "are you there?", rooms[0].LastMessage.Content)

	// 已读位置不会倒退
	earlier := first.CreatedAt.Add(-time.Hour)
	after, err := s.Chat.MarkRead(ctx, room.ID, bob.ID, &earlier)
	require.NoError(t, err)
	assert.False(t, after.Before(readAt))

	_, err = s.Chat.MarkRead(ctx, room.ID, bob.ID, nil)
	require.NoError(t, err)
	unread, err = s.Chat.UnreadTotal(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread)

	outsider := newTestUser(t, s)
	_, err = s.Chat.Send(ctx, room.ID, outsider.ID, "let me in")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestIntegrationFeedHasMoreIsExact(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	author := newTestUser(t, s)
	for i := range 3 {
		_, err := s.Posts.Create(ctx, author, PostInput{Title: fmt.Sprintf("post %d", i)})
		require.NoError(t, err)
	}
	filter := PostFilter{AuthorID: author.ID}

	page, err := s.Posts.Feed(ctx, 0, filter, PageRequest{Size: 3})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.False(t, page.HasMore, "a full last page has no more rows")

	page, err = s.Posts.Feed(ctx, 0, filter, PageRequest{Size: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "post 2", page.Items[0].Title)

	page, err = s.Posts.Feed(ctx, 0, filter, PageRequest{Size: 2, Offset: page.NextOffset})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
}

func TestIntegrationIngestDeduplicatesByURL(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)

	html := `<html><head><title>Ingested page</title>
<meta property="og:title" content="Ingested via parse">
<link rel="canonical" href="https://example.com/story-` + utils.RandString(6) + `#top"></head>
<body><article><h1>Ingested</h1><p>` + "一段足够长的正文内容，用来让正文提取器认出文章主体。" + `</p>
<p>More words in English to extract and count for the document body.</p>
<img src="/a.png"><img src="data:image/png;base64,AAAA">
<iframe src="https://www.youtube.com/embed/abc"></iframe>
<a href="/next">next</a></article></body></html>`

	res, err := s.Ingest.Ingest(ctx, IngestInput{HTML: html})
	require.NoError(t, err)
	assert.Equal(t, "Ingested via parse", res.Title)
	assert.Equal(t, 1, res.Counts.Images)
	assert.Equal(t, 1, res.Counts.Videos)
	assert.NotZero(t, res.ID)

	var article models.NewsArticle
	require.NoError(t, testDB.First(&article, res.ID).Error)
	assert.Equal(t, models.SourceTypeIngest, article.SourceType)
	assert.NotContains(t, article.URL, "#")

	dup, err := s.Ingest.Ingest(ctx, IngestInput{HTML: html})
	assert.ErrorIs(t, err, ErrAlreadyIngested)
	assert.Equal(t, res.ID, dup.ID)
}

func TestIntegrationFollow(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	a := newTestUser(t, s)
	b := newTestUser(t, s)

	_, err := s.Follows.Follow(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, ErrSelfFollow)

	state, err := s.Follows.Toggle(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, FollowState{Following: true, Followers: 1}, state)

	state, err = s.Follows.Follow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, FollowState{Following: true, Followers: 1}, state)

	profile, err := s.Users.Profile(ctx, a.ID, b.Username)
	require.NoError(t, err)
	assert.True(t, profile.IsFollowing)
	assert.EqualValues(t, 1, profile.Followers)

	followers, err := s.Follows.Followers(ctx, b.ID, PageRequest{})
	require.NoError(t, err)
	require.Len(t, followers.Items, 1)
	assert.Equal(t, a.ID, followers.Items[0].ID)
	assert.False(t, followers.HasMore)

	state, err = s.Follows.Toggle(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, FollowState{Following: false, Followers: 0}, state)
}

func waitEvent(t *testing.T, events <-chan realtime.Event, eventType string) realtime.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", eventType)
			return realtime.Event{}
		}
	}
}

func countNotifications(t *testing.T, userID uint, typ models.NotificationType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, testDB.Model(&models.Notification{}).Where("user_id = ? AND type = ?", userID, typ).Count(&n).Error)
	return n
}

func TestIntegrationConcurrentEquipKeepsOneBadge(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	user := newTestUser(t, s)

	sprout, err := s.Badges.Grant(ctx, user.ID, "sprout")
	require.NoError(t, err)
	quill, err := s.Badges.Grant(ctx, user.ID, "quill")
	require.NoError(t, err)
	badges := []uint{sprout.BadgeID, quill.BadgeID}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			badgeID := badges[i%2]
			var err error
			if i%3 == 0 {
				_, err = s.Badges.ToggleEquip(ctx, user.ID, badgeID)
			} else {
				err = s.Badges.Equip(ctx, user.ID, badgeID)
			}
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var equipped int64
	testDB.Model(&models.UserBadge{}).Where("user_id = ? AND equipped = ?", user.ID, true).Count(&equipped)
	assert.LessOrEqual(t, equipped, int64(1))

	require.NoError(t, s.Badges.Equip(ctx, user.ID, quill.BadgeID))
	testDB.Model(&models.UserBadge{}).Where("user_id = ? AND equipped = ?", user.ID, true).Count(&equipped)
	assert.EqualValues(t, 1, equipped)

	require.NoError(t, s.Badges.Unequip(ctx, user.ID))
	testDB.Model(&models.UserBadge{}).Where("user_id = ? AND equipped = ?", user.ID, true).Count(&equipped)
	assert.EqualValues(t, 0, equipped)
}

func TestIntegrationModerationBlocksWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	author := newTestUser(t, s)
	post, err := s.Posts.Create(ctx, author, PostInput{Title: "before the mute"})
	require.NoError(t, err)

	_, err = s.Users.Punish(ctx, author.ID, models.UserStatusMuted, 1)
	require.NoError(t, err)
	muted := reloadUser(t, author.ID)
	_, err = s.Posts.Create(ctx, muted, PostInput{Title: "while muted"})
	assert.ErrorIs(t, err, ErrMuted)
	_, err = s.Comments.Create(ctx, muted, post.Pid, CommentInput{Content: "while muted"})
	assert.ErrorIs(t, err, ErrMuted)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = s.Users.Punish(ctx, author.ID, models.UserStatusBanned, 0)
	require.NoError(t, err)
	_, err = s.Posts.Create(ctx, reloadUser(t, author.ID), PostInput{Title: "while banned"})
	assert.ErrorIs(t, err, ErrBanned)

	// 禁言到期后第一次发帖时自动解除
	past := time.Now().Add(-time.Minute)
	require.NoError(t, testDB.Model(&models.User{}).Where("id = ?", author.ID).
		Updates(map[string]any{"status": models.UserStatusMuted, "punish_expires": past}).Error)
	_, err = s.Posts.Create(ctx, reloadUser(t, author.ID), PostInput{Title: "mute expired"})
	require.NoError(t, err)

	restored := reloadUser(t, author.ID)
	assert.Equal(t, models.UserStatusNormal, restored.Status)
	assert.Nil(t, restored.PunishExpires)
}

func TestIntegrationCommentsKeepCountAndNotify(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	author := newTestUser(t, s)
	reader := newTestUser(t, s)
	other := newTestUser(t, s)

	post, err := s.Posts.Create(ctx, author, PostInput{Title: "discuss"})
	require.NoError(t, err)

	first, err := s.Comments.Create(ctx, reader, post.Pid, CommentInput{Content: "first!"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countNotifications(t, author.ID, models.NotificationTypeCommentPost))

	// 作者回复读者：读者收到回复通知，作者不会通知自己
	_, err = s.Comments.Create(ctx, author, post.Pid, CommentInput{Content: "thanks", ParentCid: first.Cid})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countNotifications(t, reader.ID, models.NotificationTypeReplyComment))
	assert.EqualValues(t, 1, countNotifications(t, author.ID, models.NotificationTypeCommentPost))

	own, err := s.Comments.Create(ctx, author, post.Pid, CommentInput{Content: "a note from the author"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countNotifications(t, author.ID, models.NotificationTypeCommentPost))

	// 回复作者的评论：作者只收到一条回复通知
	_, err = s.Comments.Create(ctx, other, post.Pid, CommentInput{Content: "agreed", ParentCid: own.Cid})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countNotifications(t, author.ID, models.NotificationTypeReplyComment))
	assert.EqualValues(t, 1, countNotifications(t, author.ID, models.NotificationTypeCommentPost))

	commentCount := func() int {
		var stored models.Post
		require.NoError(t, testDB.First(&stored, post.ID).Error)
		return stored.CommentCount
	}
	assert.Equal(t, 4, commentCount())

	assert.ErrorIs(t, s.Comments.Delete(ctx, other, first.Cid), ErrForbidden)
	require.NoError(t, s.Comments.Delete(ctx, reader, first.Cid))
	require.NoError(t, s.Comments.Delete(ctx, reader, first.Cid))
	assert.Equal(t, 3, commentCount())

	items, err := s.Comments.List(ctx, 0, post.Pid)
	require.NoError(t, err)
	require.Len(t, items, 4, "soft-deleted comments keep their floor")
	assert.Equal(t, 1, items[0].Floor)
	assert.True(t, items[0].Deleted)
	assert.Equal(t, models.DeletedCommentContent, items[0].Content)
}

func TestIntegrationNotificationInbox(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	me := newTestUser(t, s)
	actor := newTestUser(t, s)

	events, cancel, err := s.Broker.Subscribe(ctx, realtime.UserTopic(me.ID))
	require.NoError(t, err)
	defer cancel()

	self := me.ID
	require.NoError(t, s.Notifications.Notify(ctx, &models.Notification{
		UserID: me.ID, ActorID: &self, Type: models.NotificationTypeSystem, Message: "to myself",
	}))

	actorID := actor.ID
	for i := range 3 {
		require.NoError(t, s.Notifications.Notify(ctx, &models.Notification{
			UserID: me.ID, ActorID: &actorID, Type: models.NotificationTypeFollow, Message: fmt.Sprintf("hello %d", i),
		}))
	}
	waitEvent(t, events, realtime.EventNotificationCreated)

	page, err := s.Notifications.List(ctx, me.ID, false, PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 3, "self notifications are skipped")
	assert.False(t, page.HasMore)
	assert.Equal(t, "hello 2", page.Items[0].Message)

	page, err = s.Notifications.List(ctx, me.ID, false, PageRequest{Size: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)

	require.NoError(t, s.Notifications.MarkRead(ctx, me.ID, page.Items[0].ID))
	assert.ErrorIs(t, s.Notifications.MarkRead(ctx, actor.ID, page.Items[1].ID), ErrNotFound)

	unread, err := s.Notifications.UnreadCount(ctx, me.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	unreadPage, err := s.Notifications.List(ctx, me.ID, true, PageRequest{})
	require.NoError(t, err)
	assert.Len(t, unreadPage.Items, 2)

	marked, err := s.Notifications.MarkAllRead(ctx, me.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)
	unread, err = s.Notifications.UnreadCount(ctx, me.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)

	assert.ErrorIs(t, s.Notifications.Delete(ctx, actor.ID, page.Items[0].ID), ErrNotFound)
	require.NoError(t, s.Notifications.Delete(ctx, me.ID, page.Items[0].ID))
}

func TestIntegrationCheckInAndSpend(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	user := newTestUser(t, s)

	res, err := s.Points.CheckIn(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, PointsCheckIn, res.Points)
	assert.Equal(t, res.Total, reloadUser(t, user.ID).Points)

	_, err = s.Points.CheckIn(ctx, user.ID)
	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	assert.Equal(t, res.Total, reloadUser(t, user.ID).Points)

	done, err := s.Points.CheckedInToday(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, done)

	err = testDB.Transaction(func(tx *gorm.DB) error {
		return s.Points.SpendTx(tx, PointChange{UserID: user.ID, Amount: res.Total + 1, Action: "测试"})
	})
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	assert.Equal(t, res.Total, reloadUser(t, user.ID).Points)

	require.NoError(t, testDB.Transaction(func(tx *gorm.DB) error {
		return s.Points.SpendTx(tx, PointChange{UserID: user.ID, Amount: res.Total, Action: "测试"})
	}))
	assert.Zero(t, reloadUser(t, user.ID).Points)

	logs, err := s.Points.Logs(ctx, user.ID, PageRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, logs.Items)
	assert.Equal(t, -res.Total, logs.Items[0].Amount)
	assert.False(t, logs.HasMore)
}

func TestIntegrationChatLeave(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	alice := newTestUser(t, s)
	bob := newTestUser(t, s)

	room, err := s.Chat.CreateGroup(ctx, alice.ID, "hearthside", []uint{bob.ID})
	require.NoError(t, err)

	events, cancel, err := s.Broker.Subscribe(ctx, realtime.UserTopic(bob.ID))
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, s.Chat.Leave(ctx, room.ID, bob.ID))
	ev := waitEvent(t, events, realtime.EventRoomLeft)
	var m realtime.Membership
	require.NoError(t, json.Unmarshal(ev.Payload, &m))
	assert.Equal(t, realtime.Membership{RoomID: room.ID, UserID: bob.ID}, m)

	assert.ErrorIs(t, s.Chat.Leave(ctx, room.ID, bob.ID), ErrNotParticipant)
	_, err = s.Chat.Send(ctx, room.ID, bob.ID, "still here?")
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = s.Chat.Messages(ctx, room.ID, bob.ID, nil, 10)
	assert.ErrorIs(t, err, ErrNotParticipant)

	rooms, err := s.Chat.Rooms(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	_, err = s.Chat.AddMember(ctx, room.ID, alice.ID, bob.ID)
	require.NoError(t, err)
	waitEvent(t, events, realtime.EventRoomJoined)
	member, err := s.Chat.IsParticipant(ctx, room.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, member)
}

func TestIntegrationMessagesPageThroughEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	alice := newTestUser(t, s)
	bob := newTestUser(t, s)
	room, err := s.Chat.DirectRoom(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	at := time.Now().Add(-time.Minute).Truncate(time.Second)
	s.Chat.now = func() time.Time { return at }
	for i := range 5 {
		_, err := s.Chat.Send(ctx, room.ID, alice.ID, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	var seen []string
	var cursor *MessageCursor
	for range 5 {
		page, err := s.Chat.Messages(ctx, room.ID, bob.ID, cursor, 2)
		require.NoError(t, err)
		for i := len(page.Items) - 1; i >= 0; i-- {
			seen = append(seen, page.Items[i].Content)
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, []string{"msg 4", "msg 3", "msg 2", "msg 1", "msg 0"}, seen)
}

func TestIntegrationConcurrentRegisterConflicts(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	n := userSeq.Add(1)
	in := RegisterInput{
		Email:    fmt.Sprintf("race%d@example.com", n),
		Username: fmt.Sprintf("race_%d", n),
		Password: "correct horse battery",
	}

	const attempts = 6
	var ok, conflicts atomic.Int64
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Users.Register(ctx, in)
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, attempts-1, conflicts.Load())
}

func TestIntegrationNewsLikeNotifiesSubmitter(t *testing.T) {
	ctx := context.Background()
	s := newTestServices(t)
	submitter := newTestUser(t, s)
	fan := newTestUser(t, s)

	html := `<html><head><title>Shared story</title>
<link rel="canonical" href="https://example.com/shared-` + utils.RandString(6) + `"></head>
<body><article><p>Enough body text for the extractor to find an article here.</p></article></body></html>`
	res, err := s.Ingest.Ingest(ctx, IngestInput{HTML: html, SubmitterID: submitter.ID})
	require.NoError(t, err)

	_, err = s.NewsLikes.Toggle(ctx, submitter.ID, res.ID)
	require.NoError(t, err)
	assert.Zero(t, countNotifications(t, submitter.ID, models.NotificationTypeLikeNews))

	_, err = s.NewsLikes.Toggle(ctx, fan.ID, res.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, countNotifications(t, submitter.ID, models.NotificationTypeLikeNews))

	// 取消点赞不发通知
	_, err = s.NewsLikes.Toggle(ctx, fan.ID, res.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, countNotifications(t, submitter.ID, models.NotificationTypeLikeNews))
}
