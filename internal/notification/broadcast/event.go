package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nao1215/taskmantra/internal/notification/store"
)

// EventType はストリームで送信するイベントの種類。
type EventType string

const (
	// EventConnection は接続直後に1度だけ送信するハンドシェイク。
	EventConnection EventType = "connection"
	// EventNotifications は接続時に1度だけ送信する未読通知のバックログ。
	EventNotifications EventType = "notifications"
	// EventHeartbeat は接続維持のために定期送信するイベント。
	EventHeartbeat EventType = "heartbeat"
	// EventNotification は新しく作成された通知。
	EventNotification EventType = "notification"
)

// Event はストリームに書き込む1件のイベント。
// Typeに応じて他のフィールドのいずれか1つだけが意味を持つ。
type Event struct {
	Type          EventType            `json:"type"`
	Message       string               `json:"message,omitempty"`
	Notifications []store.Notification `json:"notifications,omitempty"`
	Timestamp     string               `json:"timestamp,omitempty"`
	Notification  *store.Notification  `json:"notification,omitempty"`
}

// ConnectionEvent はハンドシェイクイベントを生成する。
func ConnectionEvent(message string) Event {
	return Event{Type: EventConnection, Message: message}
}

// NotificationsEvent はバックログイベントを生成する。
func NotificationsEvent(ns []store.Notification) Event {
	return Event{Type: EventNotifications, Notifications: ns}
}

// HeartbeatEvent はハートビートイベントを生成する。
func HeartbeatEvent(now time.Time) Event {
	return Event{Type: EventHeartbeat, Timestamp: now.UTC().Format(time.RFC3339Nano)}
}

// NotificationEvent は新着通知イベントを生成する。
func NotificationEvent(n *store.Notification) Event {
	return Event{Type: EventNotification, Notification: n}
}

// MarshalJSON はイベントの種類ごとに必要なフィールドだけを出力する。
// バックログは0件でも "notifications":[] として出力する。
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventConnection:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
		}{e.Type, e.Message})
	case EventNotifications:
		ns := e.Notifications
		if ns == nil {
			ns = []store.Notification{}
		}
		return json.Marshal(struct {
			Type          EventType            `json:"type"`
			Notifications []store.Notification `json:"notifications"`
		}{e.Type, ns})
	case EventHeartbeat:
		return json.Marshal(struct {
			Type      EventType `json:"type"`
			Timestamp string    `json:"timestamp"`
		}{e.Type, e.Timestamp})
	case EventNotification:
		return json.Marshal(struct {
			Type         EventType           `json:"type"`
			Notification *store.Notification `json:"notification"`
		}{e.Type, e.Notification})
	default:
		return nil, fmt.Errorf("未知のイベント種類: %q", e.Type)
	}
}
