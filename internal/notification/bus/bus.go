// Package bus は複数の通知サービスインスタンス間で通知を中継するバックプレーンを提供する。
//
// ストリーム接続は接続を受け付けたインスタンスのメモリ上にしか存在しない。
// 通知を作成したインスタンスは自身の接続へ直接配信した後、Envelopeをバスへ発行し、
// 他のインスタンスはそれを受け取って自身の接続へ配信する。
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nao1215/taskmantra/internal/notification/store"
)

// ErrClosed はClose済みのバスを操作したことを表す。
var ErrClosed = errors.New("バスはクローズ済みです")

// Envelope はバスを流れる1件のメッセージ。
type Envelope struct {
	// Origin は発行したインスタンスの識別子。受信側は自身が発行したものを読み飛ばす。
	Origin string `json:"origin"`
	// Notification は配信する通知。
	Notification store.Notification `json:"notification"`
}

// Bus はインスタンス間のメッセージ中継を表す。
type Bus interface {
	// Publish はEnvelopeを全インスタンスへ発行する。
	Publish(ctx context.Context, env Envelope) error
	// StartForwarder は購読を開始し、受信したEnvelopeごとにonMsgを呼び出す。
	// 購読はctxがキャンセルされるまで続く。
	StartForwarder(ctx context.Context, onMsg func(Envelope)) error
	// Close はバスへの接続を閉じる。
	Close() error
}

// encodeEnvelope はEnvelopeをバス上の表現に変換する。
func encodeEnvelope(env Envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("Envelopeのシリアライズに失敗: %w", err)
	}
	return raw, nil
}

// decodeEnvelope はバス上の表現からEnvelopeを復元する。
// 宛先ユーザーを持たないメッセージは配信できないためエラーとする。
func decodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("Envelopeのデシリアライズに失敗: %w", err)
	}
	if env.Notification.UserID == "" {
		return Envelope{}, errors.New("Envelopeに宛先ユーザーがありません")
	}
	return env, nil
}
