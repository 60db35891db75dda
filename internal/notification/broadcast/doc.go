// Package broadcast はユーザーごとのSSE接続を管理し、通知をリアルタイムに配信する。
//
// 1ユーザーにつき同時に1本の接続だけを登録する。接続はストリームと、書き込みと
// ハートビートを担うgoroutineをひとまとまりで所有し、明示的な切断・書き込み失敗・リクエストのキャンセルの
// いずれで終了しても両方が1度だけ解放される。2本目の接続要求は既存の接続を
// 置き換えず ErrTooManyConnections で拒否する。
//
// Pushは接続ごとの上限付きの書き込み待ちに積むだけで、クライアントへの書き込みを待たない。
// 書き込み待ちが溢れた接続は読み取りが止まったものとして解放する。
//
// 登録情報はプロセス内のメモリにのみ存在する。複数インスタンス間の配信は
// bus パッケージが担う。
package broadcast
