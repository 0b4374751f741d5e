package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"

	"github.com/hrygo/notesrag/internal/profile"
	"github.com/hrygo/notesrag/store"
	"github.com/hrygo/notesrag/store/db"
)

// NewTestingStore opens a migrated store for tests.
// SQLite in a temporary directory is used unless DRIVER=postgres.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	p := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	s := store.New(dbDriver, p)
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return s
}

func getTestingProfile(t *testing.T) *profile.Profile {
	// Best effort: a local .env may carry POSTGRES_TEST_DSN.
	_ = godotenv.Load(".env")

	dir := t.TempDir()
	driver := getDriverFromEnv()
	p := &profile.Profile{
		Mode:   "dev",
		Port:   8000,
		Data:   dir,
		Driver: driver,
	}
	switch driver {
	case "postgres":
		p.DSN = GetPostgresDSN(t)
	default:
		p.DSN = filepath.Join(dir, "notesrag_test.db")
	}
	return p
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}
