// Package testutil opens the postgres database used by repository tests.
package testutil

import (
	"os"
	"testing"

	"go-dispatch-ws/internal/repository"
	"go-dispatch-ws/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// EnvDatabaseURL names the DSN of a disposable database. Tests needing postgres
// skip when it is unset.
const EnvDatabaseURL = "TEST_DATABASE_URL"

var engineTables = []string{"barcode_scans", "dispatch_events", "dispatch_items", "dispatches", "batches"}

// Postgres connects, migrates and empties the engine tables. The tables are
// emptied again when the test ends.
func Postgres(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(EnvDatabaseURL)
	if dsn == "" {
		t.Skipf("%s not set", EnvDatabaseURL)
	}

	db, err := database.ConnectDB(database.Config{DSN: dsn, MaxOpenConns: 10})
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))

	truncate(t, db)
	t.Cleanup(func() {
		truncate(t, db)
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func truncate(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, table := range engineTables {
		require.NoError(t, db.Exec("TRUNCATE TABLE "+table+" CASCADE").Error)
	}
}
