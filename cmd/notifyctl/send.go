package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nao1215/taskmantra/internal/notification/store"
	"github.com/nao1215/taskmantra/pkg/httpclient"
	"github.com/nao1215/taskmantra/pkg/middleware"
)

// serviceName は内部APIを呼び出すときのサービス用トークンの主体。
const serviceName = "notifyctl"

// sendRequest は通知作成APIのリクエスト。
type sendRequest struct {
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Link        string `json:"link,omitempty"`
}

// sendResponse は通知作成APIのレスポンス。
type sendResponse struct {
	Notification store.Notification `json:"notification"`
	Delivered    bool               `json:"delivered"`
}

func newSendCmd(opts *globalOptions) *cobra.Command {
	req := sendRequest{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "通知を作成して宛先ユーザーへ配信する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := middleware.GenerateServiceJWT(opts.secret, serviceName, 5*time.Minute)
			if err != nil {
				return err
			}
			client := httpclient.New(opts.server, httpclient.WithBearerToken(token))

			var resp sendResponse
			if err := client.PostJSON(cmd.Context(), "/api/v1/internal/notifications", req, &resp); err != nil {
				return fmt.Errorf("通知の作成に失敗: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "通知を作成しました: id=%s user=%s\n", resp.Notification.ID, resp.Notification.UserID)
			if resp.Delivered {
				fmt.Fprintln(out, color.GreenString("接続中のストリームへ配信しました"))
			} else {
				fmt.Fprintln(out, color.YellowString("このインスタンスに接続はありません（次回接続時に未読として届きます）"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.UserID, "to", "", "宛先のユーザーID")
	cmd.Flags().StringVar(&req.Title, "title", "", "通知のタイトル")
	cmd.Flags().StringVar(&req.Description, "description", "", "通知の本文")
	cmd.Flags().StringVar(&req.Type, "type", "", "通知の種類（省略時は info）")
	cmd.Flags().StringVar(&req.Link, "link", "", "通知から遷移する画面のパス")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
