package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nao1215/taskmantra/pkg/logger"
)

// DefaultChannel はRedisのチャネル名が指定されなかった場合に使用するチャネル。
const DefaultChannel = "notifications"

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisBus はRedisのPub/Subを使うバスを生成する。
// 接続確認のためPINGを送信し、失敗した場合はエラーを返す。
func NewRedisBus(ctx context.Context, addr, channel string, log *logger.Logger) (Bus, error) {
	if addr == "" {
		return nil, errors.New("Redisのアドレスが指定されていません")
	}
	if channel == "" {
		channel = DefaultChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("Redisへの接続確認に失敗: %w", err)
	}

	return &redisBus{
		log:     log.With("component", "redis_bus", "channel", channel),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, env Envelope) error {
	raw, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("Redisへの発行に失敗: %w", err)
	}
	return nil
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(Envelope)) error {
	if onMsg == nil {
		return errors.New("onMsgが指定されていません")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)

	// 購読が確立したことを確認してから受信ループを始める
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("Redisの購読に失敗: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				env, err := decodeEnvelope([]byte(m.Payload))
				if err != nil {
					b.log.Warn("不正なメッセージを読み飛ばしました", "error", err)
					continue
				}
				onMsg(env)
			}
		}
	}()

	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}
