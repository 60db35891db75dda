// 通知サービスのエントリポイント。
// タスクの割り当てやコメントなどで作成された通知を保存し、
// 接続中のユーザーへServer-Sent Eventsでリアルタイムに配信する。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/taskmantra/internal/config"
	"github.com/nao1215/taskmantra/internal/notification"
	"github.com/nao1215/taskmantra/internal/notification/broadcast"
	"github.com/nao1215/taskmantra/internal/notification/bus"
	"github.com/nao1215/taskmantra/internal/notification/consumer"
	"github.com/nao1215/taskmantra/internal/notification/store"
	"github.com/nao1215/taskmantra/pkg/logger"
)

// shutdownTimeout は停止処理全体に許す時間。
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ロガーの初期化に失敗: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("通知サービスが異常終了しました", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			log.Warn("永続化先のクローズに失敗しました", "error", err)
		}
	}()

	broadcaster := broadcast.New(log, st, broadcast.Options{
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		BacklogLimit:      cfg.Stream.BacklogLimit,
	})

	// バックグラウンド処理はシグナル受信でまとめて停止する
	bgCtx, cancelBackground := context.WithCancel(ctx)
	defer cancelBackground()

	var backplane bus.Bus
	if cfg.Redis.Addr != "" {
		backplane, err = bus.NewRedisBus(ctx, cfg.Redis.Addr, cfg.Redis.Channel, log)
		if err != nil {
			return err
		}
		defer backplane.Close()
	}

	origin := instanceID()
	dispatcher := notification.NewDispatcher(broadcaster, backplane, origin, log)
	if err := dispatcher.StartForwarding(bgCtx); err != nil {
		return err
	}

	events := notification.NewEventRecorder(cfg.EventStoreURL, log)
	notifier := notification.NewNotifier(st, dispatcher, events, log)

	if len(cfg.Kafka.Brokers) > 0 {
		c, err := consumer.New(consumer.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, notifier.Handle, log)
		if err != nil {
			return err
		}
		defer c.Close()
		go func() {
			if err := c.Run(bgCtx); err != nil {
				log.Error("Kafkaコンシューマーが停止しました", "error", err)
			}
		}()
	}

	server := notification.NewServer(notification.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
	}, st, broadcaster, notifier, events, log)

	// ストリームは長時間開いたままになるため書き込みタイムアウトは設定しない
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("通知サービスを起動します",
			"port", cfg.Port,
			"store", cfg.Store.Kind,
			"redis", cfg.Redis.Addr != "",
			"kafka", len(cfg.Kafka.Brokers) > 0,
			"instance", origin,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("通知サービスの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("通知サービスを停止します")
	cancelBackground()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// 先にストリームを閉じ、待機中のハンドラを戻らせてからHTTPサーバーを止める
	if err := broadcaster.Shutdown(shutdownCtx); err != nil {
		log.Warn("ストリームの停止がタイムアウトしました", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// openStore は設定に応じた永続化先を開く。
func openStore(ctx context.Context, cfg config.StoreConfig, log *logger.Logger) (store.Store, error) {
	if cfg.Kind == config.StoreMongo {
		m, err := store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	s, err := store.OpenSQLite(ctx, cfg.SQLiteDSN(), log)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// instanceID はバス上でこのプロセスを識別する値を返す。
func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "notification"
	}
	return host + "-" + uuid.NewString()[:8]
}
