// Package testutil provides integration test scaffolding backed by a real
// Postgres database. Tests using it skip unless DATABASE_URL is set.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	postgresRepo "github.com/escrowd/escrowd/internal/adapter/repository/postgres"
	"github.com/escrowd/escrowd/internal/domain"
	"github.com/escrowd/escrowd/internal/infrastructure/postgres"
)

// TestDB provides an isolated, migrated test database.
type TestDB struct {
	Pool     *pgxpool.Pool
	Accounts *postgresRepo.AccountRepository
	t        *testing.T
}

// NewTestDB connects to the database named by DATABASE_URL and runs
// migrations. The calling test is skipped when no database is configured.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	migrationsPath := "file://../../migrations"
	if err := postgres.RunMigrations(dbURL, migrationsPath, zerolog.Nop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping test database: %v", err)
	}

	return &TestDB{
		Pool:     pool,
		Accounts: postgresRepo.NewAccountRepository(pool),
		t:        t,
	}
}

// Cleanup closes the database connection.
func (db *TestDB) Cleanup() {
	db.Pool.Close()
}

// TruncateAll removes all data from tables.
func (db *TestDB) TruncateAll(ctx context.Context) {
	db.t.Helper()

	_, err := db.Pool.Exec(ctx, `
		TRUNCATE TABLE outbox_events CASCADE;
		TRUNCATE TABLE entries CASCADE;
		TRUNCATE TABLE transfer_credits CASCADE;
		TRUNCATE TABLE transfer_debits CASCADE;
		TRUNCATE TABLE transfers CASCADE;
		TRUNCATE TABLE accounts CASCADE;
	`)
	if err != nil {
		db.t.Fatalf("failed to truncate tables: %v", err)
	}
}

// AccountSpec describes a fixture account.
type AccountSpec struct {
	Name           string
	Balance        decimal.Decimal
	Password       string
	IsAdmin        bool
	NoBalanceFloor bool
}

// CreateAccount inserts a fixture account.
func (db *TestDB) CreateAccount(ctx context.Context, spec AccountSpec) *domain.Account {
	db.t.Helper()

	var passwordHash string
	if spec.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(spec.Password), bcrypt.MinCost)
		if err != nil {
			db.t.Fatalf("failed to hash password: %v", err)
		}
		passwordHash = string(hash)
	}

	now := time.Now().UTC()
	account := &domain.Account{
		Name:           spec.Name,
		Balance:        spec.Balance,
		NoBalanceFloor: spec.NoBalanceFloor,
		IsAdmin:        spec.IsAdmin,
		PasswordHash:   passwordHash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := db.Accounts.Create(ctx, account); err != nil {
		db.t.Fatalf("failed to create test account %s: %v", spec.Name, err)
	}

	return account
}

// Balance reads an account's current balance.
func (db *TestDB) Balance(ctx context.Context, name string) decimal.Decimal {
	db.t.Helper()

	account, err := db.Accounts.GetByName(ctx, name)
	if err != nil {
		db.t.Fatalf("failed to read account %s: %v", name, err)
	}
	return account.Balance
}
