package event

import (
	"encoding/json"
	"testing"
	"time"
)

// TestNew はNew関数でイベントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("NotificationSentDataでイベントを正常に生成できること", func(t *testing.T) {
		t.Parallel()

		data := NotificationSentData{
			UserID:           "user-1",
			Title:            "タスクが割り当てられました",
			NotificationType: "task_assigned",
			Delivered:        true,
		}

		before := time.Now().UTC()
		ev, err := New("notification-1", AggregateTypeNotification, TypeNotificationSent, 1, data)
		after := time.Now().UTC()

		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}
		if ev == nil {
			t.Fatal("New()がnilを返した")
		}

		// UUIDが生成されていること
		if ev.ID == "" {
			t.Error("IDが空文字列")
		}
		if ev.AggregateID != "notification-1" {
			t.Errorf("AggregateID = %q, want %q", ev.AggregateID, "notification-1")
		}
		if ev.AggregateType != AggregateTypeNotification {
			t.Errorf("AggregateType = %q, want %q", ev.AggregateType, AggregateTypeNotification)
		}
		if ev.EventType != TypeNotificationSent {
			t.Errorf("EventType = %q, want %q", ev.EventType, TypeNotificationSent)
		}

		// CreatedAtが呼び出し前後の範囲内であること
		if ev.CreatedAt.Before(before) || ev.CreatedAt.After(after) {
			t.Errorf("CreatedAt = %v, 期待する範囲: [%v, %v]", ev.CreatedAt, before, after)
		}

		var decoded NotificationSentData
		if err := json.Unmarshal(ev.Data, &decoded); err != nil {
			t.Fatalf("Dataのデシリアライズに失敗: %v", err)
		}
		if decoded != data {
			t.Errorf("Data = %+v, want %+v", decoded, data)
		}
	})

	t.Run("連続して生成したイベントのIDが異なること", func(t *testing.T) {
		t.Parallel()

		data := NotificationReadData{UserID: "user-4"}

		ev1, err := New("notification-3", AggregateTypeNotification, TypeNotificationRead, 1, data)
		if err != nil {
			t.Fatalf("1回目のNew()でエラーが発生: %v", err)
		}
		ev2, err := New("notification-3", AggregateTypeNotification, TypeNotificationRead, 2, data)
		if err != nil {
			t.Fatalf("2回目のNew()でエラーが発生: %v", err)
		}

		if ev1.ID == ev2.ID {
			t.Errorf("異なるイベントが同じIDを持っている: %q", ev1.ID)
		}
	})

	t.Run("シリアライズ不可能なデータでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		// json.Marshalでエラーになるチャネル型を渡す
		ev, err := New("notification-4", AggregateTypeNotification, TypeNotificationSent, 1, make(chan int))
		if err == nil {
			t.Fatal("New()がエラーを返すべきだが、nilが返った")
		}
		if ev != nil {
			t.Error("エラー時にnilでないEventが返った")
		}
	})
}

// TestDecodeData はDecodeData関数でイベントデータを正しくデシリアライズできることを検証する。
func TestDecodeData(t *testing.T) {
	t.Parallel()

	t.Run("NotificationCreatedDataを正しくデコードできること", func(t *testing.T) {
		t.Parallel()

		original := NotificationCreatedData{
			UserID:           "user-10",
			Title:            "新しいコメント",
			Description:      "レビューをお願いします",
			NotificationType: "comment",
			Link:             "/projects/p1/tasks/t1",
		}

		ev, err := New("user-10", AggregateTypeUser, TypeNotificationCreated, 1, original)
		if err != nil {
			t.Fatalf("New()でエラーが発生: %v", err)
		}

		decoded, err := DecodeData[NotificationCreatedData](ev)
		if err != nil {
			t.Fatalf("DecodeData()でエラーが発生: %v", err)
		}

		if decoded.UserID != original.UserID {
			t.Errorf("UserID = %q, want %q", decoded.UserID, original.UserID)
		}
		if decoded.Description != original.Description {
			t.Errorf("Description = %q, want %q", decoded.Description, original.Description)
		}
		if decoded.Link != original.Link {
			t.Errorf("Link = %q, want %q", decoded.Link, original.Link)
		}
	})

	t.Run("不正なJSONデータでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ev := &Event{
			Data: json.RawMessage(`{invalid json`),
		}

		decoded, err := DecodeData[NotificationCreatedData](ev)
		if err == nil {
			t.Fatal("DecodeData()がエラーを返すべきだが、nilが返った")
		}
		if decoded != nil {
			t.Error("エラー時にnilでないデータが返った")
		}
	})
}

// TestParse はParse関数でイベントレコードを読み込めることを検証する。
func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("イベントレコードを読み込めること", func(t *testing.T) {
		t.Parallel()

		raw := `{"id":"e1","aggregate_id":"u1","aggregate_type":"User","event_type":"NotificationCreated","data":{"user_id":"u1","title":"Test"},"version":1}`
		ev, err := Parse([]byte(raw))
		if err != nil {
			t.Fatalf("Parse()でエラーが発生: %v", err)
		}
		if ev.EventType != TypeNotificationCreated {
			t.Errorf("EventType = %q, want %q", ev.EventType, TypeNotificationCreated)
		}
	})

	t.Run("event_typeのないJSONはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Parse([]byte(`{"userId":"u1","title":"Test"}`)); err == nil {
			t.Error("Parse()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("不正なJSONはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Parse([]byte(`not json`)); err == nil {
			t.Error("Parse()がエラーを返すべきだが、nilが返った")
		}
	})
}
