// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 通知サービスからEvent Storeへのイベント送信と、notifyctlからの
// 通知作成・一覧取得・ストリーム受信に使用する。2xx以外のレスポンスは
// StatusErrorとして返し、429のRetry-Afterも保持する。
package httpclient
