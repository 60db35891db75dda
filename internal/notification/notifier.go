package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/taskmantra/internal/notification/store"
	"github.com/nao1215/taskmantra/pkg/event"
	"github.com/nao1215/taskmantra/pkg/logger"
)

// ErrInvalidNotification は宛先またはタイトルの無い通知を作成しようとしたことを表す。
var ErrInvalidNotification = errors.New("userIdとtitleは必須です")

// Notifier は通知を作成し、永続化してから配信する。
// REST APIとKafkaコンシューマーの両方がこの経路を使う。
type Notifier struct {
	store      store.Store
	dispatcher *Dispatcher
	events     *EventRecorder
	log        *logger.Logger
	now        func() time.Time
}

// NewNotifier は新しいNotifierを生成する。eventsがnilの場合はイベントを記録しない。
func NewNotifier(st store.Store, d *Dispatcher, events *EventRecorder, log *logger.Logger) *Notifier {
	return &Notifier{
		store:      st,
		dispatcher: d,
		events:     events,
		log:        log.With("component", "Notifier"),
		now:        time.Now,
	}
}

// Create は通知にIDと作成日時を割り当てて保存し、宛先ユーザーへ配信する。
// 戻り値のboolはこのインスタンスの接続が配信を受け付けたかどうか。
// 保存に失敗した場合は配信しない。
func (nt *Notifier) Create(ctx context.Context, in store.Notification) (store.Notification, bool, error) {
	n := store.Notification{
		ID:          uuid.NewString(),
		UserID:      strings.TrimSpace(in.UserID),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Type:        in.Type,
		Link:        in.Link,
		CreatedAt:   nt.now().UTC(),
		Metadata:    in.Metadata,
	}
	if n.UserID == "" || n.Title == "" {
		return store.Notification{}, false, ErrInvalidNotification
	}
	if n.Type == "" {
		n.Type = store.DefaultType
	}

	if err := nt.store.Create(ctx, n); err != nil {
		return store.Notification{}, false, fmt.Errorf("通知の保存に失敗: %w", err)
	}

	delivered := nt.dispatcher.Dispatch(ctx, n)
	nt.log.Debug("通知を作成しました", "notification_id", n.ID, "user_id", n.UserID, "delivered", delivered)

	nt.events.Record(ctx, n.ID, event.AggregateTypeNotification, event.TypeNotificationSent, event.NotificationSentData{
		UserID:           n.UserID,
		Title:            n.Title,
		NotificationType: n.Type,
		Delivered:        delivered,
	})
	return n, delivered, nil
}

// Handle はKafkaから受信した通知を取り込む。consumer.Handlerとして使用する。
func (nt *Notifier) Handle(ctx context.Context, n store.Notification) error {
	_, _, err := nt.Create(ctx, n)
	return err
}
