//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"attestor/migrations"
)

const postgresImage = "postgres:17-alpine"

// ownedTables lists every table created by migrations, children first.
var ownedTables = []string{"attestation_audit", "revoke_proofs", "sync_cursor"}

// PostgresContainer is a migrated Postgres instance shared by a test binary.
type PostgresContainer struct {
	Container *postgres.PostgresContainer
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres, opens a pgx-backed *sql.DB and
// applies the embedded migrations. Ryuk reaps the container on exit.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	c, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("attestor_test"),
		postgres.WithUsername("attestor"),
		postgres.WithPassword("attestor"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	abort := func(format string, args ...any) {
		_ = c.Terminate(ctx)
		t.Fatalf(format, args...)
	}

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		abort("postgres dsn: %v", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		abort("open postgres: %v", err)
	}
	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		abort("migrate postgres: %v", err)
	}
	return &PostgresContainer{Container: c, DSN: dsn, DB: db}
}

// TruncateTables empties the named tables in one statement.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	stmt := "TRUNCATE TABLE " + strings.Join(tables, ", ") + " CASCADE"
	if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("truncate %v: %w", tables, err)
	}
	return nil
}

// TruncateAll empties every table the service owns.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	return p.TruncateTables(ctx, ownedTables...)
}
