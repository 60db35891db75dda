package notification

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// streamWriteTimeout は1件のイベントの書き込みに許す時間。
// 読み取りが止まったクライアントへの書き込みはこの時間で失敗する。
const streamWriteTimeout = 10 * time.Second

// sseWriter はGinのレスポンスにServer-Sent Eventsのフレームを書き込むbroadcast.Sink。
// ヘッダーは最初の書き込みで送信するため、接続が拒否された場合は
// 通常のJSONエラーレスポンスを返せる。
type sseWriter struct {
	w       gin.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
	started bool
}

func newSSEWriter(w gin.ResponseWriter) *sseWriter {
	return &sseWriter{
		w:       w,
		rc:      http.NewResponseController(w),
		timeout: streamWriteTimeout,
	}
}

// Send は1件のイベントを "data: <json>\n\n" として書き込み、即座にフラッシュする。
// 呼び出しはbroadcast.Connの書き込みgoroutineだけが行う。
func (s *sseWriter) Send(data []byte) error {
	if err := s.setDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		// nginx等のリバースプロキシによるバッファリングを無効にする
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("ストリームへの書き込みに失敗: %w", err)
	}
	s.w.Flush()
	return nil
}

// finish はストリームの書き込み期限を解除する。接続が次のリクエストで再利用されるため。
func (s *sseWriter) finish() {
	_ = s.setDeadline(time.Time{})
}

// setDeadline は書き込み期限を設定する。期限を設定できないResponseWriterでは何もしない。
func (s *sseWriter) setDeadline(t time.Time) error {
	if err := s.rc.SetWriteDeadline(t); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("書き込み期限の設定に失敗: %w", err)
	}
	return nil
}
