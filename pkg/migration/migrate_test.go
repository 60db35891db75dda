package migration

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

// openTestDB はテスト用のインメモリSQLiteを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	// インメモリDBは接続ごとに別DBになるため接続を1本に固定する
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRun はマイグレーションの適用を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/000002_add_index.up.sql":   {Data: []byte("CREATE INDEX idx_items_name ON items(name);")},
		"migrations/000001_create_items.up.sql": {Data: []byte("CREATE TABLE items (id TEXT PRIMARY KEY, name TEXT NOT NULL);")},
		"migrations/000001_create_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"migrations/README.md":                   {Data: []byte("無視される")},
	}

	t.Run("未適用のマイグレーションをバージョン順に適用すること", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)

		n, err := Run(testContext(t), db, fsys, "migrations", nil)
		if err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}
		if n != 2 {
			t.Errorf("適用件数 = %d, want 2", n)
		}

		if _, err := db.Exec("INSERT INTO items (id, name) VALUES ('1', 'a')"); err != nil {
			t.Errorf("作成されたテーブルへの挿入に失敗: %v", err)
		}
	})

	t.Run("2回目の実行では何も適用しないこと", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)

		if _, err := Run(testContext(t), db, fsys, "migrations", nil); err != nil {
			t.Fatalf("1回目のRun()でエラーが発生: %v", err)
		}
		n, err := Run(testContext(t), db, fsys, "migrations", nil)
		if err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
		if n != 0 {
			t.Errorf("適用件数 = %d, want 0", n)
		}
	})

	t.Run("SQLが不正な場合はエラーを返すこと", func(t *testing.T) {
		t.Parallel()
		db := openTestDB(t)

		broken := fstest.MapFS{
			"migrations/000001_broken.up.sql": {Data: []byte("CREATE TABL broken;")},
		}
		if _, err := Run(testContext(t), db, broken, "migrations", nil); err == nil {
			t.Fatal("Run()がエラーを返さなかった")
		}
	})
}

// TestParseName はファイル名の分解を検証する。
func TestParseName(t *testing.T) {
	t.Parallel()

	t.Run("正しい形式のファイル名を分解できること", func(t *testing.T) {
		t.Parallel()

		v, name, ok := parseName("000003_add_metadata.up.sql")
		if !ok || v != 3 || name != "add_metadata" {
			t.Errorf("parseName() = (%d, %q, %v)", v, name, ok)
		}
	})

	t.Run("バージョンが数値でない場合は無視すること", func(t *testing.T) {
		t.Parallel()

		if _, _, ok := parseName("abc_init.up.sql"); ok {
			t.Error("数値でないバージョンが受理された")
		}
	})
}
