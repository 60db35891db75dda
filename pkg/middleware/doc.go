// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWT認証トークンの検証、zapによるリクエストログ、パニックリカバリ、
// CORS設定など、通知サービスとその周辺ツールで共通して使用するミドルウェアを含む。
package middleware
