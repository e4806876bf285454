package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/andreasstove999/littlecarts/internal/db"
)

const (
	dbUser     = "littlecarts"
	dbPassword = "littlecarts"
	dbName     = "littlecarts"
)

// StartPostgres launches a migrated PostgreSQL container and returns its DSN and a pool.
func StartPostgres(t *testing.T) (string, *pgxpool.Pool) {
	t.Helper()

	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     dbUser,
			"POSTGRES_PASSWORD": dbPassword,
			"POSTGRES_DB":       dbName,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			listening("5432"),
		),
	}, "5432")

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + addr + "/" + dbName + "?sslmode=disable"
	require.NoError(t, db.RunMigrations(dsn, log.New(io.Discard, "", 0)))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return dsn, pool
}
