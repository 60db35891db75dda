package notification

import (
	"context"

	"github.com/nao1215/taskmantra/internal/notification/broadcast"
	"github.com/nao1215/taskmantra/internal/notification/bus"
	"github.com/nao1215/taskmantra/internal/notification/store"
	"github.com/nao1215/taskmantra/pkg/logger"
)

// Dispatcher は永続化済みの通知をストリームへ配信する。
// バスが設定されている場合は他のインスタンスにも中継する。
type Dispatcher struct {
	broadcaster *broadcast.Broadcaster
	bus         bus.Bus
	// origin はこのインスタンスの識別子。自身が発行したEnvelopeの再配信を防ぐ。
	origin string
	log    *logger.Logger
}

// NewDispatcher は新しいDispatcherを生成する。bsがnilの場合はこのインスタンス内でだけ配信する。
func NewDispatcher(b *broadcast.Broadcaster, bs bus.Bus, origin string, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		broadcaster: b,
		bus:         bs,
		origin:      origin,
		log:         log.With("component", "Dispatcher"),
	}
}

// Dispatch は通知をこのインスタンスの接続へ配信し、バスへ発行する。
// 戻り値はこのインスタンスで接続中のストリームへ配信を受け付けたかどうか。
// バスへの発行に失敗してもローカルの配信結果は変わらない。
func (d *Dispatcher) Dispatch(ctx context.Context, n store.Notification) bool {
	delivered := d.broadcaster.Push(n.UserID, n)
	if d.bus == nil {
		return delivered
	}
	if err := d.bus.Publish(ctx, bus.Envelope{Origin: d.origin, Notification: n}); err != nil {
		d.log.Warn("バスへの発行に失敗しました", "notification_id", n.ID, "user_id", n.UserID, "error", err)
	}
	return delivered
}

// StartForwarding はバスの購読を開始し、他のインスタンスが発行した通知を
// このインスタンスの接続へ配信する。バスが無い場合は何もしない。
func (d *Dispatcher) StartForwarding(ctx context.Context) error {
	if d.bus == nil {
		return nil
	}
	return d.bus.StartForwarder(ctx, d.forward)
}

func (d *Dispatcher) forward(env bus.Envelope) {
	if env.Origin == d.origin {
		return
	}
	if d.broadcaster.Push(env.Notification.UserID, env.Notification) {
		d.log.Debug("中継された通知を配信しました", "notification_id", env.Notification.ID, "origin", env.Origin)
	}
}
