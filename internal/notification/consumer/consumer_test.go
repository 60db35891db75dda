package consumer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/nao1215/taskmantra/internal/notification/store"
	"github.com/nao1215/taskmantra/pkg/event"
	"github.com/nao1215/taskmantra/pkg/logger"
)

// TestDecodeMessage はKafkaメッセージからの通知の取り出しを検証する。
func TestDecodeMessage(t *testing.T) {
	t.Parallel()

	t.Run("NotificationCreatedイベントから通知を取り出せること", func(t *testing.T) {
		t.Parallel()

		ev, err := event.New("task-1", event.AggregateTypeUser, event.TypeNotificationCreated, 1, event.NotificationCreatedData{
			UserID:           "u1",
			Title:            "タスクが割り当てられました",
			Description:      "「設計レビュー」があなたに割り当てられました",
			NotificationType: "task_assigned",
			Link:             "/tasks/task-1",
			Metadata:         map[string]any{"taskId": "task-1"},
		})
		if err != nil {
			t.Fatalf("event.New()でエラーが発生: %v", err)
		}
		raw, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("イベントのシリアライズに失敗: %v", err)
		}

		n, err := decodeMessage(kafka.Message{Topic: "notification.created", Value: raw})
		if err != nil {
			t.Fatalf("decodeMessage()でエラーが発生: %v", err)
		}
		if n.UserID != "u1" || n.Type != "task_assigned" || n.Link != "/tasks/task-1" {
			t.Errorf("通知 = %+v", n)
		}
		if n.Metadata["taskId"] != "task-1" {
			t.Errorf("Metadata = %v", n.Metadata)
		}
	})

	t.Run("通知オブジェクトそのものも取り出せること", func(t *testing.T) {
		t.Parallel()

		raw := []byte(`{"userId":" u2 ","title":"コメントが追加されました","type":"comment","link":"/tasks/9","read":true,"id":"ignored"}`)
		n, err := decodeMessage(kafka.Message{Value: raw})
		if err != nil {
			t.Fatalf("decodeMessage()でエラーが発生: %v", err)
		}
		if n.UserID != "u2" || n.Title != "コメントが追加されました" || n.Type != "comment" {
			t.Errorf("通知 = %+v", n)
		}
		if n.ID != "" || n.Read {
			t.Errorf("発行側のIDと既読状態は引き継がないこと: %+v", n)
		}
	})

	t.Run("未対応のイベント種類はエラーになること", func(t *testing.T) {
		t.Parallel()

		raw := []byte(`{"event_type":"NotificationRead","data":{"user_id":"u1"}}`)
		if _, err := decodeMessage(kafka.Message{Value: raw}); err == nil {
			t.Error("decodeMessage()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("宛先ユーザーが無い場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := decodeMessage(kafka.Message{Value: []byte(`{"title":"宛先なし"}`)}); err == nil {
			t.Error("decodeMessage()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("タイトルが無い場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		raw := []byte(`{"event_type":"NotificationCreated","data":{"user_id":"u1","title":"  "}}`)
		if _, err := decodeMessage(kafka.Message{Value: raw}); err == nil {
			t.Error("decodeMessage()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("JSONでないメッセージはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := decodeMessage(kafka.Message{Value: []byte("plain text")}); err == nil {
			t.Error("decodeMessage()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestNew はConsumerの生成時の検証を確認する。
func TestNew(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, store.Notification) error { return nil }

	t.Run("ブローカーが無い場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := New(Config{Topic: "notification.created"}, noop, logger.NewNop()); err == nil {
			t.Error("New()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("トピックが無い場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := New(Config{Brokers: []string{"localhost:9092"}}, noop, logger.NewNop()); err == nil {
			t.Error("New()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("設定が揃っていれば生成できること", func(t *testing.T) {
		t.Parallel()

		c, err := New(Config{Brokers: []string{"localhost:9092"}, Topic: "notification.created", GroupID: "notification"}, noop, logger.NewNop())
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if err := c.Close(); err != nil {
			t.Errorf("Close()でエラーが発生: %v", err)
		}
	})

	t.Run("キャンセル済みのコンテキストではRunがすぐに戻ること", func(t *testing.T) {
		t.Parallel()

		c, err := New(Config{Brokers: []string{"127.0.0.1:1"}, Topic: "notification.created", GroupID: "notification"}, noop, logger.NewNop())
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		defer c.Close()

		ctx, cancel := context.WithCancel(testContext(t))
		cancel()
		if err := c.Run(ctx); err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	})
}
