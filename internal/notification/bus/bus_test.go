package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/taskmantra/internal/notification/store"
	"github.com/nao1215/taskmantra/pkg/logger"
)

// TestEnvelopeCodec はEnvelopeのバス上の表現を検証する。
func TestEnvelopeCodec(t *testing.T) {
	t.Parallel()

	t.Run("発行元と通知を復元できること", func(t *testing.T) {
		t.Parallel()

		env := Envelope{
			Origin: "instance-a",
			Notification: store.Notification{
				ID:        "n1",
				UserID:    "u1",
				Title:     "Test",
				Type:      "info",
				CreatedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
				Metadata:  map[string]any{"taskId": "t1"},
			},
		}
		raw, err := encodeEnvelope(env)
		if err != nil {
			t.Fatalf("encodeEnvelope()でエラーが発生: %v", err)
		}
		got, err := decodeEnvelope(raw)
		if err != nil {
			t.Fatalf("decodeEnvelope()でエラーが発生: %v", err)
		}
		if got.Origin != "instance-a" || got.Notification.ID != "n1" || got.Notification.UserID != "u1" {
			t.Errorf("decoded = %+v", got)
		}
		if !got.Notification.CreatedAt.Equal(env.Notification.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.Notification.CreatedAt, env.Notification.CreatedAt)
		}
		if got.Notification.Metadata["taskId"] != "t1" {
			t.Errorf("Metadata = %v", got.Notification.Metadata)
		}
	})

	t.Run("不正なJSONはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := decodeEnvelope([]byte("{broken")); err == nil {
			t.Error("decodeEnvelope()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("宛先ユーザーが無いメッセージはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := decodeEnvelope([]byte(`{"origin":"a","notification":{"id":"n1"}}`)); err == nil {
			t.Error("decodeEnvelope()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestMemoryBus はMemoryBusの発行と購読を検証する。
func TestMemoryBus(t *testing.T) {
	t.Parallel()

	t.Run("全フォワーダーにEnvelopeが届くこと", func(t *testing.T) {
		t.Parallel()

		b := NewMemoryBus()
		var gotA, gotB []Envelope
		if err := b.StartForwarder(testContext(t), func(e Envelope) { gotA = append(gotA, e) }); err != nil {
			t.Fatalf("StartForwarder()でエラーが発生: %v", err)
		}
		if err := b.StartForwarder(testContext(t), func(e Envelope) { gotB = append(gotB, e) }); err != nil {
			t.Fatalf("StartForwarder()でエラーが発生: %v", err)
		}

		env := Envelope{Origin: "a", Notification: store.Notification{ID: "n1", UserID: "u1"}}
		if err := b.Publish(testContext(t), env); err != nil {
			t.Fatalf("Publish()でエラーが発生: %v", err)
		}

		if len(gotA) != 1 || len(gotB) != 1 {
			t.Fatalf("受信件数 = %d/%d, want 1/1", len(gotA), len(gotB))
		}
		if gotA[0].Notification.ID != "n1" {
			t.Errorf("受信内容 = %+v", gotA[0])
		}
	})

	t.Run("キャンセルしたフォワーダーには届かないこと", func(t *testing.T) {
		t.Parallel()

		b := NewMemoryBus()
		ctx, cancel := context.WithCancel(testContext(t))
		received := make(chan Envelope, 1)
		if err := b.StartForwarder(ctx, func(e Envelope) { received <- e }); err != nil {
			t.Fatalf("StartForwarder()でエラーが発生: %v", err)
		}
		cancel()

		deadline := time.Now().Add(time.Second)
		for {
			if err := b.Publish(testContext(t), Envelope{Notification: store.Notification{UserID: "u1"}}); err != nil {
				t.Fatalf("Publish()でエラーが発生: %v", err)
			}
			select {
			case <-received:
				if time.Now().After(deadline) {
					t.Fatal("キャンセル後も受信し続けている")
				}
				time.Sleep(5 * time.Millisecond)
				continue
			default:
			}
			return
		}
	})

	t.Run("Close後の操作はErrClosedになること", func(t *testing.T) {
		t.Parallel()

		b := NewMemoryBus()
		if err := b.Close(); err != nil {
			t.Fatalf("Close()でエラーが発生: %v", err)
		}
		if err := b.Publish(testContext(t), Envelope{Notification: store.Notification{UserID: "u1"}}); !errors.Is(err, ErrClosed) {
			t.Errorf("Publish() error = %v, want ErrClosed", err)
		}
		if err := b.StartForwarder(testContext(t), func(Envelope) {}); !errors.Is(err, ErrClosed) {
			t.Errorf("StartForwarder() error = %v, want ErrClosed", err)
		}
	})
}

// TestNewRedisBus はRedisバスの生成時の検証を確認する。
func TestNewRedisBus(t *testing.T) {
	t.Parallel()

	t.Run("アドレスが空の場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := NewRedisBus(testContext(t), "", "", logger.NewNop()); err == nil {
			t.Error("NewRedisBus()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(testContext(t), 2*time.Second)
		defer cancel()
		if _, err := NewRedisBus(ctx, "127.0.0.1:1", "", logger.NewNop()); err == nil {
			t.Error("NewRedisBus()がエラーを返すべきだが、nilが返った")
		}
	})
}
