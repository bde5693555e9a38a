package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hearth/internal/middleware"
	"hearth/internal/models"
	"hearth/internal/realtime"
	"hearth/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func asUser(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(middleware.CheckUserKey, user)
		}
		c.Next()
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("post: %w", gorm.ErrRecordNotFound), http.StatusNotFound},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{services.ErrMuted, http.StatusForbidden},
		{services.ErrNotParticipant, http.StatusForbidden},
		{services.ErrAlreadyOwned, http.StatusConflict},
		{services.ErrAlreadyIngested, http.StatusConflict},
		{services.ErrInsufficientPoints, http.StatusUnprocessableEntity},
		{services.ErrNotOwned, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: bad", services.ErrInvalidInput), http.StatusBadRequest},
		{services.ErrSelfFollow, http.StatusBadRequest},
		{services.ErrEmptyDocument, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}

func TestErrorHidesInternalDetails(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) { Error(c, errors.New("pq: connection refused")) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.NotContains(t, body["error"], "pq:")
}

func TestParseRejectsBadRequests(t *testing.T) {
	h := NewNewsHandler(nil, &services.IngestService{}, 1<<20)
	r := gin.New()
	r.POST("/api/parse", h.Parse)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"html":`},
		{"empty html", `{"html":"   "}`},
		{"no title", `{"html":"<html><body></body></html>"}`},
		{"bad url", `{"html":"<title>x</title>","url":"javascript:alert(1)"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decode(t, w)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestParseBodyLimit(t *testing.T) {
	h := NewNewsHandler(nil, &services.IngestService{}, 16)
	r := gin.New()
	r.POST("/api/parse", h.Parse)

	big := `{"html":"` + strings.Repeat("a", int(h.maxBody)) + `"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToggleHandlerUnknownTarget(t *testing.T) {
	h := NewToggleHandler(nil, "id", NumericID)
	r := gin.New()
	r.Use(asUser(&models.User{ID: 1}))
	r.POST("/news/:id/like", h.Handle)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/news/abc/like", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaginationParams(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		req, ok := bindPage(c)
		if !ok {
			return
		}
		OK(c, gin.H{"size": req.Size, "page": req.Page, "sort": req.Sort})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?page=2&size=10&sort=top", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 10, body["size"])
	assert.EqualValues(t, 2, body["page"])
	assert.Equal(t, "top", body["sort"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?size=lots", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRealtimeAuthorizeBeforeUpgrade(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broker := realtime.NewMemoryBroker(logger)
	defer broker.Close()

	h := NewRealtimeHandler(broker, nil, logger)
	r := gin.New()
	r.Use(asUser(&models.User{ID: 7}))
	r.GET("/api/realtime", h.Subscribe)

	cases := []struct {
		query string
		want  int
	}{
		{"topics=user.8", http.StatusForbidden},
		{"topics=user.7,bogus", http.StatusBadRequest},
		{"topics=room.x", http.StatusBadRequest},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/realtime?"+tc.query, nil))
		assert.Equal(t, tc.want, w.Code, tc.query)
	}

	topics, err := h.authorize(t.Context(), 7, "")
	require.NoError(t, err)
	assert.Equal(t, []string{realtime.UserTopic(7)}, topics)

	topics, err = h.authorize(t.Context(), 7, " user.7 , user.7 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"user.7"}, topics)
}

type fakeRooms map[uint]bool

func (f fakeRooms) IsParticipant(_ context.Context, roomID, _ uint) (bool, error) {
	return f[roomID], nil
}

func publish(t *testing.T, b realtime.Broker, eventType, topic string, payload any) {
	t.Helper()
	ev, err := realtime.NewEvent(eventType, topic, payload)
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), ev))
}

func TestRealtimeStopsRoomEventsAfterLeaving(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broker := realtime.NewMemoryBroker(logger)
	defer broker.Close()

	h := NewRealtimeHandler(broker, fakeRooms{3: true}, logger)
	r := gin.New()
	r.Use(asUser(&models.User{ID: 7}))
	r.GET("/api/realtime", h.Subscribe)
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/realtime?topics=room.4", nil)
	require.Error(t, err, "rooms the user is not in are rejected")

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/realtime?topics=room.3", nil)
	require.NoError(t, err)
	defer conn.Close()

	next := func() realtime.Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev realtime.Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	// 订阅在升级前已建立
	publish(t, broker, realtime.EventMessageCreated, realtime.RoomTopic(3), map[string]string{"content": "hello"})
	assert.Equal(t, realtime.RoomTopic(3), next().Topic)

	publish(t, broker, realtime.EventRoomLeft, realtime.UserTopic(7), realtime.Membership{RoomID: 3, UserID: 7})
	assert.Equal(t, realtime.EventRoomLeft, next().Type)

	publish(t, broker, realtime.EventMessageCreated, realtime.RoomTopic(3), map[string]string{"content": "gone"})
	publish(t, broker, realtime.EventNotificationCreated, realtime.UserTopic(7), map[string]string{"message": "still yours"})

	ev := next()
	assert.Equal(t, realtime.EventNotificationCreated, ev.Type, "room events after leaving are dropped")
	assert.Equal(t, realtime.UserTopic(7), ev.Topic)
}
