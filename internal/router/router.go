package router

import (
	"log/slog"
	"net/http"
	"strings"

	"hearth/internal/config"
	"hearth/internal/handlers"
	"hearth/internal/middleware"
	"hearth/internal/services"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
)

const sessionName = "hearth_session"

// New 创建 gin 引擎并注册全部路由
func New(cfg *config.Config, s *services.Services, logger *slog.Logger) *gin.Engine {
	r := gin.Default()

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		Secure:   strings.HasPrefix(cfg.SiteURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})

	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/realtime", "/metrics"})))
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.LoadUser(s.Users))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 本地存储桶直接由 gin 提供静态文件
	if strings.HasPrefix(cfg.StoragePublicURL, "/") {
		r.Static(cfg.StoragePublicURL, cfg.StorageDir)
	}

	var google *oauth2.Config
	if cfg.GoogleEnabled() {
		google = handlers.NewGoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.SiteURL)
	}
	RegisterRoutes(r.Group("/api"), s, google, cfg.IngestMaxBytes, logger)
	return r
}

func RegisterRoutes(api *gin.RouterGroup, s *services.Services, google *oauth2.Config, ingestMaxBytes int64, logger *slog.Logger) {
	// Handlers
	authHandler := handlers.NewAuthHandler(s.Users, google)
	userHandler := handlers.NewUserHandler(s)
	postHandler := handlers.NewPostHandler(s.Posts, s.Comments)
	newsHandler := handlers.NewNewsHandler(s.News, s.Ingest, ingestMaxBytes)
	bookmarkHandler := handlers.NewBookmarkHandler(s.Posts, s.News)
	badgeHandler := handlers.NewBadgeHandler(s.Badges)
	chatHandler := handlers.NewChatHandler(s.Chat, s.Users)
	notificationHandler := handlers.NewNotificationHandler(s.Notifications)
	realtimeHandler := handlers.NewRealtimeHandler(s.Broker, s.Chat, logger)
	adminHandler := handlers.NewAdminHandler(s.News, s.Users)

	postLike := handlers.NewToggleHandler(s.PostLikes, "pid", s.Posts.ResolveID)
	postBookmark := handlers.NewToggleHandler(s.PostBookmarks, "pid", s.Posts.ResolveID)
	commentLike := handlers.NewToggleHandler(s.CommentLikes, "cid", s.Comments.ResolveID)
	newsLike := handlers.NewToggleHandler(s.NewsLikes, "id", handlers.NumericID)
	newsBookmark := handlers.NewToggleHandler(s.NewsBookmarks, "id", handlers.NumericID)

	// 公共路由 (Public Routes)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/google", authHandler.GoogleLogin)
	api.GET("/auth/google/callback", authHandler.GoogleCallback)

	api.GET("/posts", postHandler.Feed)                   // ?category=&kind=&q=&following=1
	api.GET("/posts/:pid", postHandler.Detail)            // 浏览数 +1
	api.GET("/posts/:pid/comments", postHandler.Comments) // 楼层正序
	api.GET("/categories", postHandler.Categories)

	api.GET("/news", newsHandler.Feed)
	api.GET("/news/:id", newsHandler.Detail)
	api.GET("/news-sources", newsHandler.Sources)
	api.POST("/parse", newsHandler.Parse)

	api.GET("/users/:username", userHandler.Profile)
	api.GET("/users/:username/posts", userHandler.Posts)
	api.GET("/users/:username/followers", userHandler.Followers)
	api.GET("/users/:username/following", userHandler.Following)

	api.GET("/badges", badgeHandler.Catalog)

	// 受保护路由 (Protected Routes)
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/me", userHandler.Me)
		authorized.PATCH("/me", userHandler.UpdateMe)
		authorized.POST("/me/avatar", userHandler.UploadAvatar)
		authorized.POST("/me/checkin", userHandler.CheckIn)
		authorized.GET("/me/points", userHandler.PointLogs)
		authorized.GET("/me/badges", badgeHandler.Owned)
		authorized.GET("/me/bookmarks/posts", bookmarkHandler.Posts)
		authorized.GET("/me/bookmarks/news", bookmarkHandler.News)

		authorized.POST("/posts", postHandler.Create)
		authorized.PATCH("/posts/:pid", postHandler.Update)
		authorized.DELETE("/posts/:pid", postHandler.Delete)
		authorized.POST("/posts/:pid/comments", postHandler.CreateComment)
		authorized.DELETE("/comments/:cid", postHandler.DeleteComment)

		// GET 查询，POST 切换，PUT/DELETE 幂等设置
		toggles := map[string]*handlers.ToggleHandler{
			"/posts/:pid/like":     postLike,
			"/posts/:pid/bookmark": postBookmark,
			"/comments/:cid/like":  commentLike,
			"/news/:id/like":       newsLike,
			"/news/:id/bookmark":   newsBookmark,
		}
		for path, h := range toggles {
			authorized.GET(path, h.Status)
			authorized.POST(path, h.Handle)
			authorized.PUT(path, h.Handle)
			authorized.DELETE(path, h.Handle)
		}
		authorized.POST("/users/:username/follow", userHandler.Follow)
		authorized.PUT("/users/:username/follow", userHandler.Follow)
		authorized.DELETE("/users/:username/follow", userHandler.Follow)

		authorized.POST("/parse/url", newsHandler.ParseURL)

		authorized.POST("/badges/:id/purchase", badgeHandler.Purchase)
		authorized.POST("/badges/:id/equip", badgeHandler.Equip)
		authorized.PUT("/badges/:id/equip", badgeHandler.Equip)
		authorized.DELETE("/badges/:id/equip", badgeHandler.Equip)

		authorized.GET("/notifications", notificationHandler.List)
		authorized.GET("/notifications/unread", notificationHandler.UnreadCount)
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll)
		authorized.POST("/notifications/:id/read", notificationHandler.Read)
		authorized.DELETE("/notifications/:id", notificationHandler.Delete)

		authorized.GET("/realtime", realtimeHandler.Subscribe)
	}

	// 聊天 (Chat Routes)
	chat := api.Group("/chat")
	chat.Use(middleware.AuthRequired())
	{
		chat.GET("/rooms", chatHandler.Rooms)
		chat.GET("/unread", chatHandler.UnreadTotal)
		chat.POST("/direct/:username", chatHandler.Direct)
		chat.POST("/groups", chatHandler.CreateGroup)
		chat.POST("/rooms/:id/members", chatHandler.AddMember)
		chat.DELETE("/rooms/:id/members/me", chatHandler.Leave)
		chat.GET("/rooms/:id/messages", chatHandler.Messages)
		chat.POST("/rooms/:id/messages", chatHandler.Send)
		chat.POST("/rooms/:id/read", chatHandler.MarkRead)
	}

	// 管理后台 (Admin Routes)
	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
	{
		admin.GET("/news-sources", newsHandler.Sources)
		admin.POST("/news-sources", adminHandler.AddSource)
		admin.PATCH("/news-sources/:id", adminHandler.UpdateSource)
		admin.DELETE("/news-sources/:id", adminHandler.DeleteSource)
		admin.POST("/news-sources/fetch", adminHandler.FetchNow)
		admin.POST("/users/:id/punish", adminHandler.PunishUser)
	}
}
