package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/taskmantra/pkg/logger"
)

// headerKeyRequestID はリクエストを追跡するためのHTTPヘッダーキー。
const headerKeyRequestID = "X-Request-ID"

// RequestLogger はリクエストごとにメソッド、パス、ステータス、処理時間を記録するGinミドルウェアを返す。
// X-Request-IDが無いリクエストには新しいIDを払い出し、レスポンスヘッダーにも設定する。
// ストリーム接続は切断時に1行だけ記録される。
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(headerKeyRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(headerKeyRequestID, requestID)

		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID,
		}
		if userID := GetUserID(c); userID != "" {
			fields = append(fields, "user_id", userID)
		}

		switch {
		case status >= 500:
			log.Error("HTTPリクエスト", fields...)
		case status >= 400:
			log.Warn("HTTPリクエスト", fields...)
		default:
			log.Info("HTTPリクエスト", fields...)
		}
	}
}
