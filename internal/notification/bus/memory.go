package bus

import (
	"context"
	"errors"
	"sync"
)

var _ Bus = (*MemoryBus)(nil)

// MemoryBus は同一プロセス内で完結するバス。
// 単一インスタンス構成の結合テストで複数インスタンスを模すために使用する。
type MemoryBus struct {
	mu          sync.RWMutex
	subscribers []func(Envelope)
	closed      bool
}

// NewMemoryBus は新しいMemoryBusを生成する。
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish は購読中のすべてのフォワーダーへ同期的にEnvelopeを渡す。
func (b *MemoryBus) Publish(_ context.Context, env Envelope) error {
	// Redis経由と同じくJSONを往復させ、受信側が発行側の値を共有しないようにする
	raw, err := encodeEnvelope(env)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, fn := range b.subscribers {
		decoded, err := decodeEnvelope(raw)
		if err != nil {
			return err
		}
		fn(decoded)
	}
	return nil
}

// StartForwarder はonMsgを購読者として登録する。ctxのキャンセルで登録を解除する。
func (b *MemoryBus) StartForwarder(ctx context.Context, onMsg func(Envelope)) error {
	if onMsg == nil {
		return errors.New("onMsgが指定されていません")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.subscribers = append(b.subscribers, onMsg)
	idx := len(b.subscribers) - 1
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.subscribers) {
			b.subscribers[idx] = func(Envelope) {}
		}
	}()
	return nil
}

// Close は以降の発行と購読を拒否する。
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subscribers = nil
	return nil
}
