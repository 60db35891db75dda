// Package store は通知の永続化を提供する。
//
// SQLite（既定）とMongoDBの2つの実装を持ち、いずれもStoreインターフェースを満たす。
// 接続時の未読通知の再送（バックログ）もこのパッケージのRecentUnreadを使用する。
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound は指定された通知が存在しないことを表す。
var ErrNotFound = errors.New("通知が見つかりません")

// DefaultType は種類が指定されなかった通知に設定する種類。
const DefaultType = "info"

// Notification はユーザーへの通知を表す。
// JSONのフィールド名はフロントエンドとの契約のため camelCase とする。
type Notification struct {
	// ID は通知の一意識別子（UUID）。
	ID string `json:"id" bson:"_id"`
	// UserID は通知先のユーザーID。
	UserID string `json:"userId" bson:"userId"`
	// Title は通知のタイトル。
	Title string `json:"title" bson:"title"`
	// Description は通知の本文。
	Description string `json:"description" bson:"description"`
	// Type は通知の種類（info, task_assigned, comment など）。
	Type string `json:"type" bson:"type"`
	// Link は通知から遷移する画面のパス。
	Link string `json:"link" bson:"link"`
	// Read は通知の既読状態。
	Read bool `json:"read" bson:"read"`
	// CreatedAt は通知の作成日時。
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	// Metadata は通知に付随する任意の情報。
	Metadata map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Store は通知の永続化先を表す。
type Store interface {
	// Create は通知を保存する。
	Create(ctx context.Context, n Notification) error
	// Get はIDを指定して通知を取得する。存在しない場合は ErrNotFound を返す。
	Get(ctx context.Context, id string) (Notification, error)
	// List はユーザーの通知を新しい順に最大limit件返す。
	List(ctx context.Context, userID string, limit int) ([]Notification, error)
	// RecentUnread はユーザーの未読通知を新しい順に最大limit件返す。
	RecentUnread(ctx context.Context, userID string, limit int) ([]Notification, error)
	// MarkAsRead は通知を既読にする。存在しない場合は ErrNotFound を返す。
	MarkAsRead(ctx context.Context, id string) error
	// MarkAllAsRead はユーザーの未読通知をすべて既読にし、更新件数を返す。
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	// Delete は通知を削除する。存在しない場合は ErrNotFound を返す。
	Delete(ctx context.Context, id string) error
	// Close は永続化先への接続を閉じる。
	Close(ctx context.Context) error
}
