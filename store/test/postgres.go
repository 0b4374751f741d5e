package test

import (
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	testUser     = "testuser"
	testPassword = "testpassword"
	// pgvectorImage ships the vector extension required by the schema.
	pgvectorImage = "pgvector/pgvector:pg16"
)

// GetPostgresDSN returns a DSN for PostgreSQL testing.
// It uses testcontainers to create a fresh PostgreSQL instance for each test.
func GetPostgresDSN(t *testing.T) string {
	// Check if a custom DSN is provided via environment variable
	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		return dsn
	}

	pgContainer, err := postgres.Run(t.Context(),
		pgvectorImage,
		postgres.WithDatabase("notesrag_test"),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(t.Context(), "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return connStr
}
