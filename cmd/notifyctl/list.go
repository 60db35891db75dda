package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nao1215/taskmantra/internal/notification/store"
	"github.com/nao1215/taskmantra/pkg/httpclient"
	"github.com/nao1215/taskmantra/pkg/middleware"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var (
		unreadOnly bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "ユーザーの通知を新しい順に表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := middleware.GenerateJWT(opts.secret, args[0], "", 5*time.Minute)
			if err != nil {
				return err
			}
			client := httpclient.New(opts.server, httpclient.WithBearerToken(token))

			path := "/api/v1/notifications?limit=" + strconv.Itoa(limit)
			if unreadOnly {
				path = "/api/v1/notifications/unread"
			}
			var notifications []store.Notification
			if err := client.GetJSON(cmd.Context(), path, &notifications); err != nil {
				return fmt.Errorf("通知一覧の取得に失敗: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(notifications) == 0 {
				fmt.Fprintln(out, "通知はありません")
				return nil
			}
			for _, n := range notifications {
				fmt.Fprintln(out, formatNotification(n))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "未読の通知だけを表示する")
	cmd.Flags().IntVar(&limit, "limit", 20, "表示する最大件数（1〜100）")
	return cmd
}

// formatNotification は通知を1行の表示用文字列にする。未読の通知は強調する。
func formatNotification(n store.Notification) string {
	line := fmt.Sprintf("%s %s (%s) %s", n.CreatedAt.UTC().Format(time.RFC3339), n.Title, n.Type, n.ID)
	if n.Read {
		return "  " + line
	}
	return color.YellowString("* %s", line)
}
