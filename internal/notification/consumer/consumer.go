// Package consumer はKafkaから通知作成イベントを受信し、通知サービスへ取り込む。
//
// タスク管理やコメントなど他のサービスは notification.created トピックへ
// NotificationCreatedイベント（または通知オブジェクトそのもの）を発行する。
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nao1215/taskmantra/internal/notification/store"
	"github.com/nao1215/taskmantra/pkg/event"
	"github.com/nao1215/taskmantra/pkg/logger"
)

// retryDelay は読み込みエラー後に再試行するまでの待ち時間。
const retryDelay = time.Second

// Handler は受信した通知を保存・配信する関数。
type Handler func(ctx context.Context, n store.Notification) error

// Config はKafkaの接続設定。
type Config struct {
	// Brokers はブローカーのアドレス一覧。
	Brokers []string
	// Topic は購読するトピック。
	Topic string
	// GroupID はコンシューマーグループ。
	GroupID string
}

// Consumer はKafkaのトピックを読み続けるコンシューマー。
type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	log     *logger.Logger
}

// New は新しいConsumerを生成する。ブローカーとトピックは必須。
func New(cfg Config, handler Handler, log *logger.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("Kafkaのブローカーが指定されていません")
	}
	if cfg.Topic == "" {
		return nil, errors.New("Kafkaのトピックが指定されていません")
	}
	if handler == nil {
		return nil, errors.New("handlerが指定されていません")
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topic:   cfg.Topic,
		}),
		handler: handler,
		log:     log.With("component", "kafka_consumer", "topic", cfg.Topic),
	}, nil
}

// Run はctxがキャンセルされるまでメッセージを読み込み、Handlerへ渡す。
// 不正なメッセージとHandlerのエラーはログに記録して次のメッセージへ進む。
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("Kafkaからの読み込みに失敗しました", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		n, err := decodeMessage(m)
		if err != nil {
			c.log.Warn("不正なメッセージを読み飛ばしました",
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
			continue
		}
		if err := c.handler(ctx, n); err != nil {
			c.log.Error("通知の取り込みに失敗しました", "user_id", n.UserID, "error", err)
		}
	}
}

// Close はKafkaとの接続を閉じる。
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// decodeMessage はメッセージから通知を取り出す。
// イベントレコード形式を優先し、event_typeを持たない場合は通知オブジェクトとして読む。
func decodeMessage(m kafka.Message) (store.Notification, error) {
	if e, err := event.Parse(m.Value); err == nil {
		return fromEvent(e)
	}

	var n store.Notification
	if err := json.Unmarshal(m.Value, &n); err != nil {
		return store.Notification{}, fmt.Errorf("メッセージのデシリアライズに失敗: %w", err)
	}
	return validate(store.Notification{
		UserID:      n.UserID,
		Title:       n.Title,
		Description: n.Description,
		Type:        n.Type,
		Link:        n.Link,
		Metadata:    n.Metadata,
	})
}

func fromEvent(e *event.Event) (store.Notification, error) {
	if e.EventType != event.TypeNotificationCreated {
		return store.Notification{}, fmt.Errorf("未対応のイベント種類: %s", e.EventType)
	}
	data, err := event.DecodeData[event.NotificationCreatedData](e)
	if err != nil {
		return store.Notification{}, err
	}
	return validate(store.Notification{
		UserID:      data.UserID,
		Title:       data.Title,
		Description: data.Description,
		Type:        data.NotificationType,
		Link:        data.Link,
		Metadata:    data.Metadata,
	})
}

// validate は宛先とタイトルの有無を確認する。
func validate(n store.Notification) (store.Notification, error) {
	n.UserID = strings.TrimSpace(n.UserID)
	n.Title = strings.TrimSpace(n.Title)
	if n.UserID == "" {
		return store.Notification{}, errors.New("userIdがありません")
	}
	if n.Title == "" {
		return store.Notification{}, errors.New("titleがありません")
	}
	return n, nil
}
