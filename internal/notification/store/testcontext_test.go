package store

import (
	"context"
	"testing"
)

// testContext は testing.T.Context (Go 1.24+) の代替。テスト終了時にキャンセルされる。
func testContext(tb testing.TB) context.Context {
	tb.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	tb.Cleanup(cancel)
	return ctx
}
