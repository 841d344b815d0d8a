package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/payoutledger/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestTransactionsMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_transactions"), []string{
		"CREATE TABLE IF NOT EXISTS transactions",
		"id UUID PRIMARY KEY",
		"amount NUMERIC(28, 18) NOT NULL",
		"CHECK (amount > 0)",
		"settlement_amount NUMERIC(28, 18)",
		"channel TEXT",
		"DROP TABLE IF EXISTS transactions",
	})
}

func TestVotesMigrationReferencesSurveyors(t *testing.T) {
	assertContains(t, readMigration(t, "create_votes"), []string{
		"CREATE TABLE IF NOT EXISTS votes",
		"tally NUMERIC(28, 18) NOT NULL",
		"excluded BOOLEAN NOT NULL DEFAULT FALSE",
		"transacted BOOLEAN NOT NULL DEFAULT FALSE",
		"FOREIGN KEY (surveyor_id) REFERENCES surveyor_groups(id)",
		"DROP TABLE IF EXISTS votes",
	})
	assertContains(t, readMigration(t, "create_surveyor_groups"), []string{
		"CREATE TABLE IF NOT EXISTS surveyor_groups",
		"frozen BOOLEAN NOT NULL DEFAULT FALSE",
		"virtual BOOLEAN NOT NULL DEFAULT FALSE",
	})
}

func TestAccountBalancesViewSumsBothSides(t *testing.T) {
	assertContains(t, readMigration(t, "create_account_balances_view"), []string{
		"CREATE VIEW account_balances",
		"SELECT to_account AS account_id",
		"-amount FROM transactions",
		"GROUP BY account_id, account_type",
		"DROP VIEW IF EXISTS account_balances",
	})
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	embedded, err := fs.Glob(migrate.Embedded(), "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) != len(onDisk) || len(embedded) == 0 {
		t.Fatalf("expected embedded (%d) to match disk (%d)", len(embedded), len(onDisk))
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Payout Index!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_payout_index.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationRejectsDuplicateName(t *testing.T) {
	dir := t.TempDir()
	if _, err := migrate.CreateSQLMigration(dir, "add_payout_index"); err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "Add payout index"); err == nil {
		t.Fatal("expected duplicate migration name to be rejected")
	}
}

func TestCreateSQLMigrationBumpsTakenVersion(t *testing.T) {
	dir := t.TempDir()
	pinned := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	t.Cleanup(migrate.SetCreateNow(func() time.Time { return pinned }))

	first, err := migrate.CreateSQLMigration(dir, "add_settlements")
	if err != nil {
		t.Fatalf("first migration: %v", err)
	}
	second, err := migrate.CreateSQLMigration(dir, "add_referrals")
	if err != nil {
		t.Fatalf("second migration: %v", err)
	}
	if filepath.Base(first) != "20240105120000_add_settlements.sql" {
		t.Fatalf("unexpected first filename %s", first)
	}
	if filepath.Base(second) != "20240105120001_add_referrals.sql" {
		t.Fatalf("unexpected second filename %s", second)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migrations should validate: %v", err)
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := migrate.CreateSQLMigration(t.TempDir(), " !! "); err == nil {
		t.Fatal("expected empty sanitized name to be rejected")
	}
}
