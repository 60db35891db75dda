package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nao1215/taskmantra/internal/notification/broadcast"
	"github.com/nao1215/taskmantra/pkg/httpclient"
	"github.com/nao1215/taskmantra/pkg/middleware"
)

func newStreamCmd(opts *globalOptions) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "stream <user-id>",
		Short: "ユーザーの通知ストリームを受信して表示する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				t, err := middleware.GenerateJWT(opts.secret, args[0], "", 0)
				if err != nil {
					return err
				}
				token = t
			}
			client := httpclient.New(opts.server, httpclient.WithBearerToken(token))

			body, err := client.OpenStream(cmd.Context(), "/api/v1/notifications/stream")
			if se, ok := httpclient.AsStatusError(err); ok && se.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("既に別の接続が開いています。%v後に再接続してください", se.RetryAfter)
			}
			if err != nil {
				return fmt.Errorf("ストリームへの接続に失敗: %w", err)
			}
			defer body.Close()

			err = readFrames(body, func(ev broadcast.Event) {
				fmt.Fprintln(cmd.OutOrStdout(), formatEvent(ev))
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "使用するBearerトークン（省略時は --secret で発行する）")
	return cmd
}

// readFrames はSSEのフレームを読み取り、イベントごとにfnを呼び出す。
// ストリームが終了するまで戻らない。
func readFrames(r io.Reader, fn func(broadcast.Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var ev broadcast.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("イベントのデコードに失敗: %w", err)
		}
		fn(ev)
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// formatEvent はイベントを1行の表示用文字列にする。
func formatEvent(ev broadcast.Event) string {
	switch ev.Type {
	case broadcast.EventConnection:
		return color.GreenString("[connection] %s", ev.Message)
	case broadcast.EventNotifications:
		lines := []string{color.CyanString("[backlog] 未読 %d 件", len(ev.Notifications))}
		for _, n := range ev.Notifications {
			lines = append(lines, fmt.Sprintf("  - %s (%s) %s", n.Title, n.Type, n.ID))
		}
		return strings.Join(lines, "\n")
	case broadcast.EventHeartbeat:
		return color.HiBlackString("[heartbeat] %s", ev.Timestamp)
	case broadcast.EventNotification:
		if ev.Notification == nil {
			return color.YellowString("[notification] (empty)")
		}
		return color.YellowString("[notification] %s (%s) %s", ev.Notification.Title, ev.Notification.Type, ev.Notification.ID)
	default:
		return fmt.Sprintf("[%s]", ev.Type)
	}
}
