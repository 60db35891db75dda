// Package logger はzapをラップした構造化ロガーを提供する。
//
// 全サービス・CLIで共通のキーバリュー形式のログ出力に使用する。
package logger
