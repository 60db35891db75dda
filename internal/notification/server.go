package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/taskmantra/internal/notification/broadcast"
	"github.com/nao1215/taskmantra/internal/notification/store"
	"github.com/nao1215/taskmantra/pkg/event"
	"github.com/nao1215/taskmantra/pkg/logger"
	"github.com/nao1215/taskmantra/pkg/middleware"
)

const (
	// defaultListLimit は通知一覧の既定の取得件数。
	defaultListLimit = 50
	// maxListLimit は通知一覧で指定できる最大の取得件数。
	maxListLimit = 100
	// retryAfterSeconds は接続が拒否されたクライアントに再接続まで待たせる秒数。
	retryAfterSeconds = "5"
)

// Options はServerの設定。
type Options struct {
	// JWTSecret はBearerトークンの検証に使用するシークレット。
	JWTSecret string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
}

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// store は通知の永続化先。
	store store.Store
	// broadcaster はストリーム接続の登録簿。
	broadcaster *broadcast.Broadcaster
	// notifier は通知の作成と配信を行う。
	notifier *Notifier
	// events はEvent Storeへの記録を行う。
	events *EventRecorder
	log    *logger.Logger
}

// NewServer は新しい通知サーバーを生成する。
func NewServer(opts Options, st store.Store, b *broadcast.Broadcaster, n *Notifier, events *EventRecorder, log *logger.Logger) *Server {
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORS(opts.AllowedOrigins))

	s := &Server{
		router:      router,
		store:       st,
		broadcaster: b,
		notifier:    n,
		events:      events,
		log:         log.With("component", "Server"),
	}
	s.setupRoutes(middleware.JWTAuth(opts.JWTSecret))
	return s
}

// Handler はhttp.Serverに渡すハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はAPIルーティングを設定する。authは /api/v1 配下に適用する認証ミドルウェア。
func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	api := s.router.Group("/api/v1")
	api.Use(auth)
	{
		notifications := api.Group("/notifications")
		{
			// 通知一覧取得
			notifications.GET("", s.handleList())
			// 未読通知一覧取得
			notifications.GET("/unread", s.handleListUnread())
			// 通知ストリーム（Server-Sent Events）
			notifications.GET("/stream", s.handleStream())
			// 通知を既読にする
			notifications.PUT("/:id/read", s.handleMarkAsRead())
			// 全通知を既読にする
			notifications.PUT("/read-all", s.handleMarkAllAsRead())
			// 通知を削除する
			notifications.DELETE("/:id", s.handleDelete())
		}

		// 通知作成（内部API - 他サービスから呼び出される）
		internal := api.Group("/internal")
		internal.Use(middleware.RequireRole(middleware.RoleService))
		{
			internal.POST("/notifications", s.handleCreate())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "notification",
			"connections": s.broadcaster.Count(),
		})
	})
}

// handleStream は認証済みユーザーの通知ストリームを開くハンドラ。
// ユーザーごとに1本だけ開ける。既に開いている場合は429を返し、既存の接続はそのまま残す。
// クライアントが切断するか書き込みに失敗するまでハンドラは戻らない。
// 戻る前に書き込みgoroutineの終了を待ち、レスポンスへの書き込みが残らないようにする。
func (s *Server) handleStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		ctx := c.Request.Context()
		sink := newSSEWriter(c.Writer)
		conn, err := s.broadcaster.Open(ctx, userID, sink)
		switch {
		case errors.Is(err, broadcast.ErrTooManyConnections):
			c.Header("Retry-After", retryAfterSeconds)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too many connections",
				"message": "既に通知ストリームに接続しています。既存の接続を閉じてから再接続してください",
			})
			return
		case errors.Is(err, broadcast.ErrShuttingDown):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "サーバーを停止しています"})
			return
		case err != nil:
			// 初期イベントの書き込み中にクライアントが切断した。応答は送信済み。
			s.log.Debug("ストリームの開始に失敗しました", "user_id", userID, "error", err)
			return
		}

		select {
		case <-ctx.Done():
		case <-conn.Done():
		}
		s.broadcaster.Release(conn)
		conn.Wait()
		sink.finish()
	}
}

// parseLimit はlimitクエリを解釈する。未指定の場合は既定値、上限を超える場合は上限を返す。
func parseLimit(raw string) (int, bool) {
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, false
	}
	return min(limit, maxListLimit), true
}

// handleList は認証済みユーザーの通知一覧を新しい順に返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		limit, ok := parseLimit(c.Query("limit"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limitは1以上の整数で指定してください"})
			return
		}

		notifications, err := s.store.List(c.Request.Context(), userID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			s.log.Error("通知一覧取得エラー", "user_id", userID, "error", err)
			return
		}

		c.JSON(http.StatusOK, notifications)
	}
}

// handleListUnread は認証済みユーザーの未読通知一覧を新しい順に返すハンドラ。
func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notifications, err := s.store.RecentUnread(c.Request.Context(), userID, maxListLimit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			s.log.Error("未読通知一覧取得エラー", "user_id", userID, "error", err)
			return
		}

		c.JSON(http.StatusOK, notifications)
	}
}

// loadOwned は通知を取得し、認証済みユーザーが所有していることを確認する。
// 確認できなかった場合はレスポンスを書き込んでfalseを返す。
func (s *Server) loadOwned(c *gin.Context, userID string) (store.Notification, bool) {
	notificationID := c.Param("id")
	if notificationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "通知IDが必要です"})
		return store.Notification{}, false
	}

	n, err := s.store.Get(c.Request.Context(), notificationID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
		return store.Notification{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の取得に失敗しました"})
		s.log.Error("通知取得エラー", "notification_id", notificationID, "error", err)
		return store.Notification{}, false
	}

	if n.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "この通知を操作する権限がありません"})
		return store.Notification{}, false
	}
	return n, true
}

// handleMarkAsRead は指定された通知を既読にするハンドラ。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		n, ok := s.loadOwned(c, userID)
		if !ok {
			return
		}

		if err := s.store.MarkAsRead(c.Request.Context(), n.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			s.log.Error("通知既読処理エラー", "notification_id", n.ID, "error", err)
			return
		}

		s.events.Record(c.Request.Context(), n.ID, event.AggregateTypeNotification, event.TypeNotificationRead,
			event.NotificationReadData{UserID: userID})

		n.Read = true
		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました", "notification": n})
	}
}

// handleMarkAllAsRead は認証済みユーザーの全通知を既読にするハンドラ。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		updated, err := s.store.MarkAllAsRead(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			s.log.Error("全通知既読処理エラー", "user_id", userID, "error", err)
			return
		}

		if updated > 0 {
			s.events.Record(c.Request.Context(), userID, event.AggregateTypeUser, event.TypeAllNotificationsRead,
				event.AllNotificationsReadData{Updated: updated})
		}

		c.JSON(http.StatusOK, gin.H{"message": "全通知を既読にしました", "updated": updated})
	}
}

// handleDelete は指定された通知を削除するハンドラ。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		n, ok := s.loadOwned(c, userID)
		if !ok {
			return
		}

		if err := s.store.Delete(c.Request.Context(), n.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の削除に失敗しました"})
			s.log.Error("通知削除エラー", "notification_id", n.ID, "error", err)
			return
		}

		s.events.Record(c.Request.Context(), n.ID, event.AggregateTypeNotification, event.TypeNotificationDeleted,
			event.NotificationDeletedData{UserID: userID})

		c.JSON(http.StatusOK, gin.H{"message": "通知を削除しました"})
	}
}

// createRequest は通知作成リクエストのJSON構造。
type createRequest struct {
	// UserID は通知先のユーザーID。
	UserID string `json:"userId" binding:"required"`
	// Title は通知のタイトル。
	Title string `json:"title" binding:"required"`
	// Description は通知の本文。
	Description string `json:"description"`
	// Type は通知の種類。省略時は info。
	Type string `json:"type"`
	// Link は通知から遷移する画面のパス。
	Link string `json:"link"`
	// Metadata は通知に付随する任意の情報。
	Metadata map[string]any `json:"metadata"`
}

// handleCreate は通知を作成し、宛先ユーザーのストリームへ配信するハンドラ。
// 内部API（タスク管理などの他サービスから呼び出される）。サービス用トークンが必要。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です: userIdとtitleは必須です"})
			return
		}

		n, delivered, err := s.notifier.Create(c.Request.Context(), store.Notification{
			UserID:      req.UserID,
			Title:       req.Title,
			Description: req.Description,
			Type:        req.Type,
			Link:        req.Link,
			Metadata:    req.Metadata,
		})
		if errors.Is(err, ErrInvalidNotification) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です: userIdとtitleは必須です"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の作成に失敗しました"})
			s.log.Error("通知作成エラー", "user_id", req.UserID, "error", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"notification": n,
			"delivered":    delivered,
		})
	}
}
