// Package dbtest opens in-memory SQLite databases carrying the ledger schema.
package dbtest

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/migrate"
)

// sqliteTypes rewrites Postgres column types the SQLite driver would not map
// back onto Go values.
var sqliteTypes = strings.NewReplacer(
	"TIMESTAMPTZ", "DATETIME",
)

// Open returns a gorm connection to a private in-memory database with every
// embedded migration's Up section applied.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", name)), db.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	files, err := fs.Glob(migrate.Embedded(), "migrations/*.sql")
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	sort.Strings(files)
	for _, file := range files {
		raw, err := fs.ReadFile(migrate.Embedded(), file)
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		if err := conn.Exec(sqliteTypes.Replace(upSection(string(raw)))).Error; err != nil {
			t.Fatalf("apply %s: %v", file, err)
		}
	}
	return conn
}

func upSection(migration string) string {
	if i := strings.Index(migration, "-- +goose Down"); i >= 0 {
		migration = migration[:i]
	}
	return migration
}
