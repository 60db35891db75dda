package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nao1215/taskmantra/internal/notification/broadcast"
	"github.com/nao1215/taskmantra/internal/notification/store"
	"github.com/nao1215/taskmantra/pkg/logger"
)

// brokenStore は保存に必ず失敗するStore。
type brokenStore struct {
	store.Store
}

func (brokenStore) Create(context.Context, store.Notification) error {
	return errors.New("disk full")
}

// TestNotifier は通知の作成処理を検証する。
func TestNotifier(t *testing.T) {
	t.Parallel()

	newNotifier := func(t *testing.T, st store.Store) (*Notifier, *broadcast.Broadcaster) {
		t.Helper()
		log := logger.NewNop()
		b := broadcast.New(log, nil, broadcast.Options{HeartbeatInterval: time.Hour})
		t.Cleanup(func() { _ = b.Shutdown(context.Background()) })
		return NewNotifier(st, NewDispatcher(b, nil, "test", log), nil, log), b
	}

	t.Run("IDと作成日時と既定の種類を割り当てること", func(t *testing.T) {
		t.Parallel()

		st, err := store.OpenSQLite(testContext(t), ":memory:", logger.NewNop())
		if err != nil {
			t.Fatalf("インメモリDBの作成に失敗: %v", err)
		}
		defer st.Close(context.Background())

		nt, _ := newNotifier(t, st)
		fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
		nt.now = func() time.Time { return fixed }

		n, delivered, err := nt.Create(testContext(t), store.Notification{UserID: " u1 ", Title: "Test", ID: "caller-id", Read: true})
		if err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		if delivered {
			t.Error("未接続ユーザーへの配信結果 = true, want false")
		}
		if n.ID == "" || n.ID == "caller-id" {
			t.Errorf("ID = %q, 新しいIDが割り当てられていない", n.ID)
		}
		if n.UserID != "u1" || n.Type != store.DefaultType || n.Read {
			t.Errorf("通知 = %+v", n)
		}
		if !n.CreatedAt.Equal(fixed) {
			t.Errorf("CreatedAt = %v, want %v", n.CreatedAt, fixed)
		}
		if _, err := st.Get(testContext(t), n.ID); err != nil {
			t.Errorf("保存された通知の取得に失敗: %v", err)
		}
	})

	t.Run("保存に失敗した場合は配信しないこと", func(t *testing.T) {
		t.Parallel()

		nt, b := newNotifier(t, brokenStore{})
		sink := newChanSink()
		if _, err := b.Open(testContext(t), "u1", sink); err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}

		if _, _, err := nt.Create(testContext(t), store.Notification{UserID: "u1", Title: "Test"}); err == nil {
			t.Fatal("Create()がエラーを返すべきだが、nilが返った")
		}
		if got := len(sink.collect(0)); got != 0 {
			t.Errorf("受信件数 = %d, want 0", got)
		}
	})

	t.Run("宛先が無い場合はErrInvalidNotificationを返すこと", func(t *testing.T) {
		t.Parallel()

		nt, _ := newNotifier(t, brokenStore{})
		if err := nt.Handle(testContext(t), store.Notification{Title: "宛先なし"}); !errors.Is(err, ErrInvalidNotification) {
			t.Errorf("Handle() error = %v, want ErrInvalidNotification", err)
		}
	})
}
