package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	// corsAllowMethods はプリフライトで許可するメソッド。
	corsAllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	// corsAllowHeaders はクライアントが送信できるリクエストヘッダー。
	corsAllowHeaders = []string{"Authorization", "Content-Type", headerKeyRequestID}
	// corsExposeHeaders はブラウザのスクリプトから読めるレスポンスヘッダー。
	// 接続拒否時の再接続待ち時間とリクエストIDを含める。
	corsExposeHeaders = []string{"Retry-After", headerKeyRequestID}
)

// CORS は指定されたオリジンからのクロスオリジンリクエストを許可するGinミドルウェアを返す。
// フロントエンドからのAPIアクセスとEventSourceによるストリーム接続を許可する。
// OPTIONSリクエストはオリジンに関係なく204で終了する。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	methods := strings.Join(corsAllowMethods, ", ")
	headers := strings.Join(corsAllowHeaders, ", ")
	expose := strings.Join(corsExposeHeaders, ", ")

	return func(c *gin.Context) {
		// 許可の有無がオリジンで変わるためキャッシュを分ける
		c.Writer.Header().Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		if _, ok := allowed[origin]; ok && origin != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Expose-Headers", expose)
			h.Set("Access-Control-Max-Age", "86400")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
