package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// ユーザーID等の情報をサービス間で伝播するために使用する。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Role は呼び出し元の種類。他サービスからの呼び出しでは RoleService になる。
	Role string `json:"role,omitempty"`
}

// RoleService は内部APIの呼び出しを許可されたサービスのロール。
const RoleService = "service"

// Issuer は GenerateJWT が発行するトークンの発行者。
const Issuer = "taskmantra"

// DefaultTokenTTL は GenerateJWT に0以下の有効期間を渡した場合の有効期間。
const DefaultTokenTTL = 24 * time.Hour

// GenerateJWT はユーザー情報からHS256で署名したJWTトークンを生成する。
// 本番のトークンは外部のIDプロバイダが発行する。ここでは開発・運用ツール用に同じ形式のトークンを作る。
func GenerateJWT(secret, userID, email string, ttl time.Duration) (string, error) {
	return sign(secret, JWTClaims{UserID: userID, Email: email}, ttl)
}

// GenerateServiceJWT は内部APIを呼び出すサービス用のトークンを生成する。
// serviceはトークンの主体として user_id に設定される。
func GenerateServiceJWT(secret, service string, ttl time.Duration) (string, error) {
	return sign(secret, JWTClaims{UserID: service, Role: RoleService}, ttl)
}

// sign は登録済みクレームを補ってHS256で署名する。
func sign(secret string, claims JWTClaims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    Issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "user_id" と "email"、"role" を設定する。
// user_id クレームを持たないトークンは無効として扱う。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetRole はGinコンテキストから呼び出し元のロールを取得する。
func GetRole(c *gin.Context) string {
	return c.GetString("role")
}

// RequireRole は指定したロールのトークンだけを通すGinミドルウェアを返す。
// JWTAuthの後に適用する。ロールが一致しない場合は403を返す。
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "この操作を行う権限がありません",
			})
			return
		}
		c.Next()
	}
}
