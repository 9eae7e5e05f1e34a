// Package testutil provides a migrated Postgres database and fixtures for
// integration tests. Tests using it are skipped unless TEST_POSTGRES_DSN is set.
package testutil

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/pkg/logger"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	dbOnce sync.Once
	db     *database.Database
	dbErr  error
)

// DB returns the shared test database with every table emptied.
func DB(tb testing.TB) *database.Database {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}

		conn, err := sqlx.Connect("postgres", dsn)
		if err != nil {
			dbErr = err
			return
		}

		db = database.Wrap(conn, 16, logger.NewNop())
		dbErr = db.RunMigrations()
	})

	if errors.Is(dbErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run integration tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}

	truncate(tb, db)
	return db
}

func truncate(tb testing.TB, db *database.Database) {
	tb.Helper()

	_, err := db.DB.Exec(`TRUNCATE
		dead_letter_messages, outbox_messages, status_histories,
		support_requests, inventory_check_details, inventory_checks,
		purchase_order_details, purchase_orders, payments, order_details,
		orders, product_variants
		RESTART IDENTITY CASCADE`)
	if err != nil {
		tb.Fatalf("truncate: %v", err)
	}
}

// SeedVariant inserts a variant with the given stock and price
func SeedVariant(tb testing.TB, db *database.Database, quantity int, price string) *models.Variant {
	tb.Helper()

	now := models.GetCurrentTime()
	v := &models.Variant{
		ID:        models.GenerateID("var"),
		Name:      "Test variant",
		Price:     decimal.RequireFromString(price),
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	v.SKU = "SKU-" + v.ID

	_, err := db.DB.NamedExec(`
		INSERT INTO product_variants (id, sku, name, price, quantity, created_at, updated_at)
		VALUES (:id, :sku, :name, :price, :quantity, :created_at, :updated_at)`, v)
	if err != nil {
		tb.Fatalf("seed variant: %v", err)
	}
	return v
}

// VariantQuantity reads the current stock of a variant
func VariantQuantity(tb testing.TB, db *database.Database, id string) int {
	tb.Helper()

	var q int
	if err := db.DB.Get(&q, `SELECT quantity FROM product_variants WHERE id = $1`, id); err != nil {
		tb.Fatalf("read variant quantity: %v", err)
	}
	return q
}

// InTx runs fn in a committed transaction and fails the test on error
func InTx(tb testing.TB, db *database.Database, fn func(tx *sqlx.Tx) error) {
	tb.Helper()

	if err := db.WithTx(context.Background(), fn); err != nil {
		tb.Fatalf("tx: %v", err)
	}
}
