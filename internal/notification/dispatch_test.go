package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/taskmantra/internal/notification/broadcast"
	"github.com/nao1215/taskmantra/internal/notification/bus"
	"github.com/nao1215/taskmantra/internal/notification/store"
	"github.com/nao1215/taskmantra/pkg/logger"
)

// chanSink は受信したイベントの種類とタイトルをチャネルに流すテスト用のSink。
type chanSink struct {
	events chan broadcast.Event
}

func newChanSink() *chanSink {
	return &chanSink{events: make(chan broadcast.Event, 16)}
}

func (s *chanSink) Send(data []byte) error {
	var ev broadcast.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	s.events <- ev
	return nil
}

// collect は通知イベントをwant件受信するまで待ち、その後しばらく追加の受信がないかを確認して返す。
// 書き込みは接続ごとのgoroutineで非同期に行われるため、時間を区切って待つ。
func (s *chanSink) collect(want int) []broadcast.Event {
	var out []broadcast.Event
	wait := 2 * time.Second
	if want == 0 {
		wait = 30 * time.Millisecond
	}
	timeout := time.After(wait)
	for {
		select {
		case ev := <-s.events:
			if ev.Type == broadcast.EventNotification {
				out = append(out, ev)
			}
			if len(out) == want {
				timeout = time.After(30 * time.Millisecond)
			}
		case <-timeout:
			return out
		}
	}
}

// failingBus は常に発行に失敗するバス。
type failingBus struct{ bus.MemoryBus }

func (*failingBus) Publish(context.Context, bus.Envelope) error {
	return errors.New("redis unavailable")
}

func newInstance(t *testing.T, bs bus.Bus, origin string) (*broadcast.Broadcaster, *Dispatcher) {
	t.Helper()
	log := logger.NewNop()
	b := broadcast.New(log, nil, broadcast.Options{HeartbeatInterval: time.Hour})
	t.Cleanup(func() { _ = b.Shutdown(context.Background()) })
	d := NewDispatcher(b, bs, origin, log)
	if err := d.StartForwarding(testContext(t)); err != nil {
		t.Fatalf("StartForwarding()でエラーが発生: %v", err)
	}
	return b, d
}

// TestDispatcher は通知の配信とインスタンス間の中継を検証する。
func TestDispatcher(t *testing.T) {
	t.Parallel()

	t.Run("バスが無い場合はローカルの接続にだけ配信すること", func(t *testing.T) {
		t.Parallel()

		b, d := newInstance(t, nil, "a")
		sink := newChanSink()
		if _, err := b.Open(testContext(t), "u1", sink); err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}

		if !d.Dispatch(testContext(t), store.Notification{ID: "n1", UserID: "u1", Title: "Test"}) {
			t.Error("Dispatch() = false, want true")
		}
		if d.Dispatch(testContext(t), store.Notification{ID: "n2", UserID: "u2", Title: "Test"}) {
			t.Error("未接続ユーザーへのDispatch() = true, want false")
		}
		if got := len(sink.collect(1)); got != 1 {
			t.Errorf("受信件数 = %d, want 1", got)
		}
	})

	t.Run("他のインスタンスの接続へ中継し自身には重複配信しないこと", func(t *testing.T) {
		t.Parallel()

		shared := bus.NewMemoryBus()
		bA, dA := newInstance(t, shared, "a")
		bB, _ := newInstance(t, shared, "b")

		onA := newChanSink()
		onB := newChanSink()
		if _, err := bA.Open(testContext(t), "u1", onA); err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}
		if _, err := bB.Open(testContext(t), "u2", onB); err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}

		if !dA.Dispatch(testContext(t), store.Notification{ID: "n1", UserID: "u1", Title: "local"}) {
			t.Error("ローカル接続へのDispatch() = false, want true")
		}
		if dA.Dispatch(testContext(t), store.Notification{ID: "n2", UserID: "u2", Title: "remote"}) {
			t.Error("他インスタンスの接続へのDispatch() = true, want false")
		}

		gotA := onA.collect(1)
		if len(gotA) != 1 || gotA[0].Notification.Title != "local" {
			t.Errorf("インスタンスAの受信 = %+v, want [local]", gotA)
		}
		gotB := onB.collect(1)
		if len(gotB) != 1 || gotB[0].Notification.Title != "remote" {
			t.Errorf("インスタンスBの受信 = %+v, want [remote]", gotB)
		}
	})

	t.Run("バスへの発行に失敗してもローカルには配信すること", func(t *testing.T) {
		t.Parallel()

		b, d := newInstance(t, &failingBus{}, "a")
		sink := newChanSink()
		if _, err := b.Open(testContext(t), "u1", sink); err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}

		if !d.Dispatch(testContext(t), store.Notification{ID: "n1", UserID: "u1", Title: "Test"}) {
			t.Error("Dispatch() = false, want true")
		}
	})
}
