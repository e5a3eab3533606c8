package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"shareme/app/internal/data/database"
	platformlog "shareme/app/internal/platform/log"
)

func TestMigrateRequiresDatabase(t *testing.T) {
	t.Parallel()

	if err := Migrate(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error when database is nil")
	}
}

func TestMigrateCreatesTablesAndIsRepeatable(t *testing.T) {
	t.Parallel()

	gormDB, err := database.Open(database.Options{Path: filepath.Join(t.TempDir(), "schema.db")})
	if err != nil {
		t.Fatalf("database.Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := database.Close(gormDB); closeErr != nil {
			t.Fatalf("closing database failed: %v", closeErr)
		}
	})

	logger := platformlog.Discard()
	for i := 0; i < 2; i++ {
		if err := Migrate(context.Background(), gormDB, logger); err != nil {
			t.Fatalf("Migrate run %d returned error: %v", i+1, err)
		}
	}

	for _, table := range []string{"pages", "recent_pages", "owner_pages", "users", "login_tokens"} {
		if !gormDB.Migrator().HasTable(table) {
			t.Fatalf("expected table %q to exist", table)
		}
	}
}
