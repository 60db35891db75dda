// Package notification はTaskMantraの通知サービスを提供する。
//
// 通知の作成・一覧・既読化・削除のREST APIと、ユーザーごとに1本だけ開ける
// Server-Sent Eventsの通知ストリームを公開する。作成された通知は永続化した後に
// Dispatcherが接続中のストリームへ配信し、Redisバスが設定されていれば
// 他のインスタンスへも中継する。Kafkaから受信した通知も同じ経路で取り込む。
package notification
