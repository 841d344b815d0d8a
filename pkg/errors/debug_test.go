package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpExtractsPgxDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "transactions_pkey", TableName: "transactions"}
	err := Wrap(CodeDependency, fmt.Errorf("insert: %w", pgErr), "insert transaction")

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if d.PGCode != "23505" || d.PGConstraint != "transactions_pkey" || d.PGTable != "transactions" {
		t.Fatalf("unexpected pg fields %+v", d)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected chain of 3, got %v", d.Chain)
	}

	fields := d.Fields()
	if fields["pg_code"] != "23505" || fields["error_code"] != string(CodeDependency) {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestDumpExtractsPqDiagnostics(t *testing.T) {
	d := Dump(&pq.Error{Code: "40001", Table: "votes"})
	if d.PGCode != "40001" || d.PGTable != "votes" {
		t.Fatalf("unexpected pq fields %+v", d)
	}
	if _, ok := d.Fields()["error_code"]; ok {
		t.Fatalf("untyped errors should not carry an error_code field")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || len(d.Chain) != 0 {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
