package notification

import (
	"context"
	"encoding/json"

	"github.com/nao1215/taskmantra/pkg/event"
	"github.com/nao1215/taskmantra/pkg/httpclient"
	"github.com/nao1215/taskmantra/pkg/logger"
)

// appendEventRequest はEvent Storeへのイベント追記リクエストのJSON構造。
type appendEventRequest struct {
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType string `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType string `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
}

// EventRecorder は通知の状態変更をEvent Storeへ記録する。
// Event Storeが設定されていない場合は何もしない。
type EventRecorder struct {
	client *httpclient.Client
	log    *logger.Logger
}

// NewEventRecorder は新しいEventRecorderを生成する。baseURLが空の場合は記録を行わない。
func NewEventRecorder(baseURL string, log *logger.Logger) *EventRecorder {
	r := &EventRecorder{log: log.With("component", "EventRecorder")}
	if baseURL != "" {
		r.client = httpclient.New(baseURL)
	}
	return r
}

// Record はイベントをEvent Storeへ追記する。
// 失敗してもログに記録するだけで、呼び出し元の処理は成功として扱う。
func (r *EventRecorder) Record(ctx context.Context, aggregateID string, aggregateType event.AggregateType, eventType event.Type, data any) {
	if r == nil || r.client == nil {
		return
	}

	ev, err := event.New(aggregateID, aggregateType, eventType, 0, data)
	if err != nil {
		r.log.Error("イベントの生成に失敗しました", "event_type", eventType, "error", err)
		return
	}

	req := appendEventRequest{
		AggregateID:   ev.AggregateID,
		AggregateType: string(ev.AggregateType),
		EventType:     string(ev.EventType),
		Data:          ev.Data,
	}
	if err := r.client.PostJSON(ctx, "/api/v1/events", req, nil); err != nil {
		r.log.Warn("Event Storeへのイベント送信に失敗しました", "event_type", eventType, "aggregate_id", aggregateID, "error", err)
	}
}
