package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLiteドライバ

	notificationdb "github.com/nao1215/taskmantra/internal/notification/db"
	"github.com/nao1215/taskmantra/pkg/logger"
	"github.com/nao1215/taskmantra/pkg/migration"
)

// createdAtLayout はcreated_at列の書式。固定長のため文字列比較で時系列順になる。
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite はSQLiteを使用するStore実装。
type SQLite struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *notificationdb.Queries
}

// OpenSQLite はSQLiteデータベースを開き、マイグレーションを適用する。
func OpenSQLite(ctx context.Context, dsn string, log *logger.Logger) (*SQLite, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if dsn == ":memory:" {
		// インメモリDBは接続ごとに別DBになるため接続を1本に固定する
		sqlDB.SetMaxOpenConns(1)
	}

	if _, err := migration.Run(ctx, sqlDB, notificationdb.Migrations, notificationdb.MigrationsDir, log); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	return &SQLite{db: sqlDB, queries: notificationdb.New(sqlDB)}, nil
}

// Create は通知を保存する。
func (s *SQLite) Create(ctx context.Context, n Notification) error {
	metadata, err := encodeMetadata(n.Metadata)
	if err != nil {
		return err
	}
	var isRead int64
	if n.Read {
		isRead = 1
	}
	if err := s.queries.CreateNotification(ctx, notificationdb.CreateNotificationParams{
		ID:          n.ID,
		UserID:      n.UserID,
		Title:       n.Title,
		Description: n.Description,
		Type:        n.Type,
		Link:        n.Link,
		IsRead:      isRead,
		Metadata:    metadata,
		CreatedAt:   n.CreatedAt.UTC().Format(createdAtLayout),
	}); err != nil {
		return fmt.Errorf("通知の保存に失敗: %w", err)
	}
	return nil
}

// Get はIDを指定して通知を取得する。
func (s *SQLite) Get(ctx context.Context, id string) (Notification, error) {
	row, err := s.queries.GetNotificationByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, ErrNotFound
	}
	if err != nil {
		return Notification{}, fmt.Errorf("通知の取得に失敗: %w", err)
	}
	return fromRow(row)
}

// List はユーザーの通知を新しい順に返す。
func (s *SQLite) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	rows, err := s.queries.ListNotificationsByUserID(ctx, notificationdb.ListNotificationsByUserIDParams{
		UserID: userID,
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	return fromRows(rows)
}

// RecentUnread はユーザーの未読通知を新しい順に返す。
func (s *SQLite) RecentUnread(ctx context.Context, userID string, limit int) ([]Notification, error) {
	rows, err := s.queries.ListRecentUnread(ctx, notificationdb.ListRecentUnreadParams{
		UserID: userID,
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("未読通知一覧の取得に失敗: %w", err)
	}
	return fromRows(rows)
}

// MarkAsRead は通知を既読にする。
func (s *SQLite) MarkAsRead(ctx context.Context, id string) error {
	n, err := s.queries.MarkAsRead(ctx, id)
	if err != nil {
		return fmt.Errorf("通知の既読処理に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllAsRead はユーザーの未読通知をすべて既読にする。
func (s *SQLite) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.queries.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("全通知の既読処理に失敗: %w", err)
	}
	return n, nil
}

// Delete は通知を削除する。
func (s *SQLite) Delete(ctx context.Context, id string) error {
	n, err := s.queries.DeleteNotification(ctx, id)
	if err != nil {
		return fmt.Errorf("通知の削除に失敗: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close はデータベース接続を閉じる。
func (s *SQLite) Close(_ context.Context) error {
	return s.db.Close()
}

func fromRows(rows []notificationdb.Notification) ([]Notification, error) {
	out := make([]Notification, 0, len(rows))
	for _, r := range rows {
		n, err := fromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// fromRow はDB行を通知に変換する。
func fromRow(r notificationdb.Notification) (Notification, error) {
	createdAt, err := time.Parse(createdAtLayout, r.CreatedAt)
	if err != nil {
		return Notification{}, fmt.Errorf("作成日時の解析に失敗: id=%s: %w", r.ID, err)
	}
	metadata, err := decodeMetadata(r.Metadata)
	if err != nil {
		return Notification{}, fmt.Errorf("メタデータの解析に失敗: id=%s: %w", r.ID, err)
	}
	return Notification{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Type:        r.Type,
		Link:        r.Link,
		Read:        r.IsRead != 0,
		CreatedAt:   createdAt,
		Metadata:    metadata,
	}, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("メタデータのシリアライズに失敗: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(raw string) (map[string]any, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}
