// notifyctl は通知サービスを操作する運用・開発用のCLI。
// 開発用トークンの発行、通知の作成と一覧表示、通知ストリームの受信を行う。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// globalOptions は全サブコマンドで共通の設定。
type globalOptions struct {
	// server は通知サービスのベースURL。
	server string
	// secret はトークン署名用のシークレット。通知サービスのJWT_SECRETと同じ値を指定する。
	secret string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "notifyctl",
		Short:         "TaskMantra通知サービスの操作ツール",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", envOr("NOTIFY_SERVER", "http://localhost:8086"), "通知サービスのベースURL")
	rootCmd.PersistentFlags().StringVar(&opts.secret, "secret", envOr("JWT_SECRET", "dev-secret-key"), "トークン署名用のシークレット")

	rootCmd.AddCommand(newTokenCmd(opts))
	rootCmd.AddCommand(newSendCmd(opts))
	rootCmd.AddCommand(newListCmd(opts))
	rootCmd.AddCommand(newStreamCmd(opts))
	return rootCmd
}

func envOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
