// Package config は通知サービスの設定を環境変数から読み込む。
//
// 起動時に .env ファイルが存在すれば先に読み込み、ローカル実行時の設定変更を反映する。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StoreKind は通知の永続化先の種類を表す。
type StoreKind string

const (
	// StoreSQLite はSQLiteに通知を保存する。
	StoreSQLite StoreKind = "sqlite"
	// StoreMongo はMongoDBに通知を保存する。
	StoreMongo StoreKind = "mongo"
)

// Config は通知サービスの設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// LogMode はロガーの動作モード（development / production）。
	LogMode string
	// JWTSecret はJWT検証用の秘密鍵。
	JWTSecret string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// Store は通知の永続化先の設定。
	Store StoreConfig
	// Stream はSSEストリームの設定。
	Stream StreamConfig
	// Redis はインスタンス間配信の設定。Addrが空の場合は無効。
	Redis RedisConfig
	// Kafka は通知作成イベントの受信設定。Brokersが空の場合は無効。
	Kafka KafkaConfig
	// EventStoreURL はNotificationSentイベントの送信先。空の場合は送信しない。
	EventStoreURL string
}

// StoreConfig は永続化先の設定。
type StoreConfig struct {
	Kind          StoreKind
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

// StreamConfig はSSEストリームの設定。
type StreamConfig struct {
	// HeartbeatInterval はハートビートの送信間隔。
	HeartbeatInterval time.Duration
	// BacklogLimit は接続時に再送する未読通知の最大件数。
	BacklogLimit int
}

// RedisConfig はRedis Pub/Subの設定。
type RedisConfig struct {
	Addr    string
	Channel string
}

// KafkaConfig はKafkaコンシューマの設定。
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Load は .env と環境変数から設定を読み込む。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf(".envの読み込みに失敗: %w", err)
	}

	cfg := &Config{
		Port:           getEnvOr("PORT", "8086"),
		LogMode:        getEnvOr("LOG_MODE", "development"),
		JWTSecret:      getEnvOr("JWT_SECRET", "dev-secret-key"),
		AllowedOrigins: splitList(getEnvOr("ALLOWED_ORIGINS", "http://localhost:3000")),
		Store: StoreConfig{
			Kind:          StoreKind(strings.ToLower(getEnvOr("NOTIFICATION_STORE", string(StoreSQLite)))),
			SQLitePath:    getEnvOr("SQLITE_PATH", "/data/notification.db"),
			MongoURI:      getEnvOr("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase: getEnvOr("MONGO_DATABASE", "taskmantra"),
		},
		Stream: StreamConfig{
			HeartbeatInterval: getDurationOr("HEARTBEAT_INTERVAL", 15*time.Second),
			BacklogLimit:      getIntOr("BACKLOG_LIMIT", 10),
		},
		Redis: RedisConfig{
			Addr:    strings.TrimSpace(os.Getenv("REDIS_ADDR")),
			Channel: getEnvOr("REDIS_CHANNEL", "notifications"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnvOr("KAFKA_TOPIC", "notification.created"),
			GroupID: getEnvOr("KAFKA_GROUP_ID", "notification-service"),
		},
		EventStoreURL: strings.TrimSpace(os.Getenv("EVENTSTORE_URL")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case StoreSQLite, StoreMongo:
	default:
		return fmt.Errorf("NOTIFICATION_STOREの値が不正です: %q", c.Store.Kind)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRETが空です")
	}
	return nil
}

// SQLiteDSN はSQLiteの接続文字列を返す。
func (s StoreConfig) SQLiteDSN() string {
	if s.SQLitePath == ":memory:" {
		return s.SQLitePath
	}
	return s.SQLitePath + "?_journal_mode=WAL&_busy_timeout=5000"
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// getIntOr は環境変数を正の整数として取得する。不正な値の場合はデフォルト値を返す。
func getIntOr(key string, defaultValue int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

// getDurationOr は環境変数を time.Duration として取得する。不正な値の場合はデフォルト値を返す。
func getDurationOr(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// splitList はカンマ区切りの文字列を空要素を除いたスライスに分割する。
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
