package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/payoutledger/pkg/errors"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), GormConfig())
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromConn(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := db.Create(&testModel{Name: "dup"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected sqlite unique violation to be detected: %v", err)
	}

	pgErr := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "transactions_pkey"})
	if !IsUniqueViolation(pgErr, "transactions_pkey") {
		t.Fatalf("expected pgx unique violation")
	}
	if IsUniqueViolation(pgErr, "votes_pkey") {
		t.Fatalf("constraint filter should not match other constraints")
	}
	if !IsUniqueViolation(&pq.Error{Code: "23505"}, "") {
		t.Fatalf("expected pq unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "40001"}, "") {
		t.Fatalf("serialization failure is not a unique violation")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatalf("nil is not a violation")
	}
}

func TestErrorCode(t *testing.T) {
	db := newTestDB(t)
	if err := db.Exec("CREATE TABLE checked (amount NUMERIC NOT NULL CHECK (amount > 0))").Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	err := db.Exec("INSERT INTO checked (amount) VALUES (?)", -1).Error
	if ErrorCode(err) != pkgerrors.CodeValidation {
		t.Fatalf("sqlite check violation should be permanent: %v", err)
	}

	permanent := []error{
		fmt.Errorf("insert: %w", &pgconn.PgError{Code: "22003"}),
		&pgconn.PgError{Code: "22P02"},
		&pgconn.PgError{Code: "23514"},
		&pq.Error{Code: "23503"},
	}
	for _, err := range permanent {
		if ErrorCode(err) != pkgerrors.CodeValidation {
			t.Fatalf("expected %v to be permanent", err)
		}
	}

	transient := []error{
		errors.New("connection reset by peer"),
		&pgconn.PgError{Code: "40001"},
		&pq.Error{Code: "57P01"},
	}
	for _, err := range transient {
		if ErrorCode(err) != pkgerrors.CodeDependency {
			t.Fatalf("expected %v to be retryable", err)
		}
	}
}

func TestDialectHelpers(t *testing.T) {
	db := newTestDB(t)
	if IsPostgres(db) {
		t.Fatalf("sqlite must not be reported as postgres")
	}
	if NumericParam(db) != "?" || TextParam(db) != "?" || UUIDParam(db) != "?" {
		t.Fatalf("sqlite placeholders should be bare")
	}
}
