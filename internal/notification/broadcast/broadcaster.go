package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/taskmantra/internal/notification/store"
	"github.com/nao1215/taskmantra/pkg/logger"
)

var (
	// ErrTooManyConnections はユーザーの接続が既に存在することを表す。
	ErrTooManyConnections = errors.New("too many connections")
	// ErrConnectionClosed は解放済みの接続に書き込もうとしたことを表す。
	ErrConnectionClosed = errors.New("connection closed")
	// ErrShuttingDown は停止処理中のため新しい接続を受け付けないことを表す。
	ErrShuttingDown = errors.New("broadcaster is shutting down")
)

const (
	// DefaultHeartbeatInterval はハートビートの既定の送信間隔。
	DefaultHeartbeatInterval = 15 * time.Second
	// DefaultBacklogLimit は接続時に再送する未読通知の既定の最大件数。
	DefaultBacklogLimit = 10
	// DefaultOutboundBuffer は接続ごとに書き込み待ちにできるイベントの既定の件数。
	DefaultOutboundBuffer = 32
	// defaultHandshakeMessage はハンドシェイクイベントのメッセージ。
	defaultHandshakeMessage = "通知ストリームに接続しました"
)

// Sink は1本の接続の書き込み先。
// Sendは1件のイベント（JSON）を書き込み、クライアントへ即時に送出する。
// 呼び出しは接続ごとに1つのgoroutineからだけ行われる。
type Sink interface {
	Send(data []byte) error
}

// BacklogSource は接続時に再送する未読通知の取得元。
type BacklogSource interface {
	RecentUnread(ctx context.Context, userID string, limit int) ([]store.Notification, error)
}

// Options はBroadcasterの動作設定。ゼロ値の項目には既定値を使用する。
type Options struct {
	// HeartbeatInterval はハートビートの送信間隔。
	HeartbeatInterval time.Duration
	// BacklogLimit は接続時に再送する未読通知の最大件数。
	BacklogLimit int
	// OutboundBuffer は書き込み待ちにできるイベントの件数。
	// 溢れた接続は読み取りが止まったクライアントとみなして解放する。
	OutboundBuffer int
	// HandshakeMessage はハンドシェイクイベントのメッセージ。
	HandshakeMessage string
	// Now は現在時刻を返す関数。テストで差し替える。
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.BacklogLimit <= 0 {
		o.BacklogLimit = DefaultBacklogLimit
	}
	if o.OutboundBuffer <= 0 {
		o.OutboundBuffer = DefaultOutboundBuffer
	}
	if o.HandshakeMessage == "" {
		o.HandshakeMessage = defaultHandshakeMessage
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Broadcaster はユーザーIDから接続への登録簿を持ち、通知を配信する。
// プロセス起動時に生成し、終了時にShutdownで全接続を解放する。
type Broadcaster struct {
	log     *logger.Logger
	backlog BacklogSource
	opts    Options

	// mu はconnsとstoppedを保護する。
	mu      sync.Mutex
	conns   map[string]*Conn
	stopped bool

	// writers は稼働中の書き込みgoroutine。
	writers sync.WaitGroup
}

// New は新しいBroadcasterを生成する。backlogがnilの場合、バックログは常に空になる。
func New(log *logger.Logger, backlog BacklogSource, opts Options) *Broadcaster {
	return &Broadcaster{
		log:     log.With("component", "Broadcaster"),
		backlog: backlog,
		opts:    opts.withDefaults(),
		conns:   make(map[string]*Conn),
	}
}

// Conn はユーザーの1本の接続。書き込み先と、書き込み・ハートビートを担うgoroutineを
// 1つの単位として所有する。Sinkへの書き込みはこのgoroutineだけが行う。
type Conn struct {
	userID   string
	sink     Sink
	outbound chan Event

	// mu はclosedを保護する。
	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	stopped chan struct{}
}

// UserID は接続を所有するユーザーのIDを返す。
func (c *Conn) UserID() string {
	return c.userID
}

// Done は接続が解放されたときに閉じられるチャネルを返す。
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Wait は書き込みgoroutineが終了するまで待つ。
// 戻った後はSinkへの書き込みは行われない。
func (c *Conn) Wait() {
	<-c.stopped
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// write はイベントをSinkへ書き込む。
func (c *Conn) write(ev Event) error {
	if c.isClosed() {
		return ErrConnectionClosed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗: %w", err)
	}
	return c.sink.Send(data)
}

// shut は接続を閉じた状態にする。実際に閉じた呼び出しだけがtrueを返す。
func (c *Conn) shut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.done)
	return true
}

// Open はユーザーの接続を登録し、ハンドシェイクと未読通知のバックログを送信してから
// 書き込みgoroutineを開始する。既に接続が存在する場合は何も作成せずに
// ErrTooManyConnections を返し、既存の接続には触れない。
//
// 初期イベントは呼び出し側のgoroutineで書き込む。その間にPushされた通知は
// 書き込み待ちに積まれ、バックログの後に送信される。
func (b *Broadcaster) Open(ctx context.Context, userID string, sink Sink) (*Conn, error) {
	c := &Conn{
		userID:   userID,
		sink:     sink,
		outbound: make(chan Event, b.opts.OutboundBuffer),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil, ErrShuttingDown
	}
	if _, exists := b.conns[userID]; exists {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	b.conns[userID] = c
	// Shutdownの待機と競合しないよう登録と同時に数える
	b.writers.Add(1)
	b.mu.Unlock()

	err := c.write(ConnectionEvent(b.opts.HandshakeMessage))
	if err == nil {
		err = c.write(NotificationsEvent(b.loadBacklog(ctx, userID)))
	}
	if err != nil {
		b.Release(c)
		close(c.stopped)
		b.writers.Done()
		return nil, fmt.Errorf("初期イベントの送信に失敗: %w", err)
	}

	go b.run(c)

	b.log.Info("接続を登録しました", "user_id", userID)
	return c, nil
}

// loadBacklog は未読通知を取得する。取得に失敗した場合はログに記録して空のバックログを返す。
func (b *Broadcaster) loadBacklog(ctx context.Context, userID string) []store.Notification {
	if b.backlog == nil {
		return nil
	}
	ns, err := b.backlog.RecentUnread(ctx, userID, b.opts.BacklogLimit)
	if err != nil {
		b.log.Warn("未読通知の取得に失敗したためバックログなしで接続します", "user_id", userID, "error", err)
		return nil
	}
	if len(ns) > b.opts.BacklogLimit {
		ns = ns[:b.opts.BacklogLimit]
	}
	return ns
}

// run は接続が解放されるまで、書き込み待ちのイベントと一定間隔のハートビートを送信する。
// 書き込みに失敗した場合は接続を解放して終了する。
func (b *Broadcaster) run(c *Conn) {
	defer b.writers.Done()
	defer close(c.stopped)

	ticker := time.NewTicker(b.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		var ev Event
		select {
		case <-c.done:
			return
		case ev = <-c.outbound:
		case <-ticker.C:
			ev = HeartbeatEvent(b.opts.Now())
		}
		if err := c.write(ev); err != nil {
			if !errors.Is(err, ErrConnectionClosed) {
				b.log.Debug("イベントの送信に失敗したため接続を解放します", "user_id", c.userID, "type", ev.Type, "error", err)
			}
			b.Release(c)
			return
		}
	}
}

// Push はユーザーの接続に通知イベントを1件積み、書き込みgoroutineに送信させる。
// 接続が存在しない場合はfalseを返す。通知は呼び出し側で永続化済みであること。
// 書き込み待ちが溢れている接続は読み取りが止まったものとして解放し、falseを返す。
// クライアントへの書き込みを待たないため、遅いクライアントが呼び出し側を止めることはない。
func (b *Broadcaster) Push(userID string, n store.Notification) bool {
	b.mu.Lock()
	c, ok := b.conns[userID]
	b.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.outbound <- NotificationEvent(&n):
		return true
	default:
		b.log.Warn("書き込み待ちが溢れたため接続を解放します", "user_id", userID, "buffer", cap(c.outbound))
		b.Release(c)
		return false
	}
}

// Close はユーザーの接続を登録簿から削除し、書き込みgoroutineを停止する。
// 接続が存在しない場合は何もしない。
func (b *Broadcaster) Close(userID string) {
	b.mu.Lock()
	c, ok := b.conns[userID]
	if ok {
		delete(b.conns, userID)
	}
	b.mu.Unlock()

	if ok && c.shut() {
		b.log.Info("接続を解放しました", "user_id", userID)
	}
}

// Release は指定の接続を解放する。登録簿の項目がこの接続である場合だけ削除するため、
// 同じユーザーの新しい接続を誤って削除することはない。何度呼び出してもよい。
func (b *Broadcaster) Release(c *Conn) {
	if c == nil {
		return
	}
	b.mu.Lock()
	if cur, ok := b.conns[c.userID]; ok && cur == c {
		delete(b.conns, c.userID)
	}
	b.mu.Unlock()

	if c.shut() {
		b.log.Info("接続を解放しました", "user_id", c.userID)
	}
}

// Connected はユーザーの接続が登録されているかを返す。
func (b *Broadcaster) Connected(userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conns[userID]
	return ok
}

// Count は登録されている接続数を返す。
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Shutdown は新しい接続の受け付けを停止し、全接続を解放する。
// 書き込みgoroutineの終了を待つが、ctxが先に終了した場合はそのエラーを返す。
func (b *Broadcaster) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	b.stopped = true
	conns := make([]*Conn, 0, len(b.conns))
	for _, c := range b.conns {
		conns = append(conns, c)
	}
	b.conns = make(map[string]*Conn)
	b.mu.Unlock()

	for _, c := range conns {
		c.shut()
	}
	b.log.Info("全接続を解放しました", "count", len(conns))

	waited := make(chan struct{})
	go func() {
		b.writers.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
