package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeNotification は通知エンティティを表す。
	AggregateTypeNotification AggregateType = "Notification"
	// AggregateTypeUser はユーザーエンティティを表す。
	AggregateTypeUser AggregateType = "User"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeNotificationCreated は他サービスが通知の作成を要求したことを表す。
	// Kafkaの notification.created トピックで受信する。
	TypeNotificationCreated Type = "NotificationCreated"
	// TypeNotificationSent は通知が保存され配信処理が行われたことを表す。
	TypeNotificationSent Type = "NotificationSent"
	// TypeNotificationRead は通知が既読になったことを表す。
	TypeNotificationRead Type = "NotificationRead"
	// TypeAllNotificationsRead はユーザーの未読通知がすべて既読になったことを表す。
	TypeAllNotificationsRead Type = "AllNotificationsRead"
	// TypeNotificationDeleted は通知が削除されたことを表す。
	TypeNotificationDeleted Type = "NotificationDeleted"
)

// Event はEvent Sourcingにおける不変のイベントレコードを表す。
// すべての状態変更はこの構造体としてEvent Storeに永続化される。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// Version はAggregate内でのイベントの順序番号。楽観的排他制御に使用する。
	Version int64 `json:"version"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// NotificationCreatedData はNotificationCreatedイベントのデータ。
type NotificationCreatedData struct {
	// UserID は通知先のユーザーID。
	UserID string `json:"user_id"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Description は通知の本文。
	Description string `json:"description"`
	// NotificationType は通知の種類（task_assigned など）。空の場合は info。
	NotificationType string `json:"notification_type"`
	// Link は通知から遷移する画面のパス。
	Link string `json:"link"`
	// Metadata は通知に付随する任意の情報。
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NotificationSentData はNotificationSentイベントのデータ。
type NotificationSentData struct {
	// UserID は通知先のユーザーID。
	UserID string `json:"user_id"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// NotificationType は通知の種類。
	NotificationType string `json:"notification_type"`
	// Delivered はこのインスタンスで接続中のストリームへ配信できたかどうか。
	Delivered bool `json:"delivered"`
}

// NotificationReadData はNotificationReadイベントのデータ。
type NotificationReadData struct {
	// UserID は既読にしたユーザーのID。
	UserID string `json:"user_id"`
}

// AllNotificationsReadData はAllNotificationsReadイベントのデータ。
type AllNotificationsReadData struct {
	// Updated は既読にした件数。
	Updated int64 `json:"updated"`
}

// NotificationDeletedData はNotificationDeletedイベントのデータ。
type NotificationDeletedData struct {
	// UserID は削除を実行したユーザーのID。
	UserID string `json:"user_id"`
}
