package votes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/angelmondragon/payoutledger/pkg/db"
	"github.com/angelmondragon/payoutledger/pkg/db/dbtest"
)

func captureQueries(t *testing.T, conn *gorm.DB) *[]string {
	t.Helper()
	var captured []string
	err := conn.Callback().Query().After("gorm:query").Register("test:capture", func(tx *gorm.DB) {
		captured = append(captured, tx.Statement.SQL.String())
	})
	require.NoError(t, err)
	return &captured
}

func TestFindSurveyorSharesRowLockOnPostgres(t *testing.T) {
	conn, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "postgres://ledger@localhost:5432/ledger?sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	captured := captureQueries(t, conn)

	_, _ = NewRepository(conn).FindSurveyor(context.Background(), "2024-01-05_uphold")
	require.Len(t, *captured, 1)
	require.Contains(t, (*captured)[0], "FOR SHARE")
}

func TestFindSurveyorSkipsLockingOnSQLite(t *testing.T) {
	conn := dbtest.Open(t)
	require.False(t, db.IsPostgres(conn))
	captured := captureQueries(t, conn)

	_, err := NewRepository(conn).FindSurveyor(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSurveyorNotFound)
	require.Len(t, *captured, 1)
	require.NotContains(t, (*captured)[0], "FOR ")
}
