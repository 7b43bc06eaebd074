package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/safar/go-sql-shop/internal/config"
	"github.com/safar/go-sql-shop/internal/database"
)

func setupTestDB(t *testing.T, driver string) (*sql.DB, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	db, err := database.NewConnection(&config.DatabaseConfig{
		URL:             fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port()),
		Driver:          driver,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if _, err := database.Migrate(ctx, db, filepath.Join("..", "..", "..", "migrations"), "up", nil); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func seedItem(t *testing.T, db *sql.DB, sku, name string, price int64, quantity int) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(
		`INSERT INTO items (sku, name, price, quantity) VALUES ($1, $2, $3, $4) RETURNING id`,
		sku, name, price, quantity).Scan(&id)
	if err != nil {
		t.Fatalf("Seed item %s: %v", sku, err)
	}
	return id
}

func seedSpecification(t *testing.T, db *sql.DB, itemID int64, name, value string) {
	t.Helper()

	_, err := db.Exec(
		`WITH st AS (
			INSERT INTO specification_types (name) VALUES ($2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		)
		INSERT INTO specifications (item_id, specification_type_id, value)
		SELECT $1, st.id, $3 FROM st`,
		itemID, name, value)
	if err != nil {
		t.Fatalf("Seed specification %s: %v", name, err)
	}
}

func stockOf(t *testing.T, db *sql.DB, itemID int64) int {
	t.Helper()

	var quantity int
	if err := db.QueryRow(`SELECT quantity FROM items WHERE id = $1`, itemID).Scan(&quantity); err != nil {
		t.Fatalf("Read stock of %d: %v", itemID, err)
	}
	return quantity
}
