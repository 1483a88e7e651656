// Package testutil holds helpers shared by the integration tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/bulletin/internal/database"
	"github.com/BradenHooton/bulletin/internal/models"
	"github.com/BradenHooton/bulletin/internal/repositories"
	"github.com/BradenHooton/bulletin/pkg/auth"
)

// TestDB manages a PostgreSQL testcontainer with the schema applied
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// DiscardLogger is a logger for tests that do not inspect log output
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// SetupTestDatabase starts PostgreSQL, runs the embedded migrations and returns TestDB
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("bulletin"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger := DiscardLogger()
	if err := database.Migrate(ctx, pool, logger); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         database.NewFromPool(pool, logger),
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{"announcements", "attachments", "users", "roles"}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

// SeedRoles inserts the default roles and returns them by name
func SeedRoles(ctx context.Context, db *database.DB) (map[string]*models.Role, error) {
	repo := repositories.NewRoleRepository(db)
	out := make(map[string]*models.Role)

	for _, r := range models.DefaultRoles() {
		role, err := repo.Upsert(ctx, &r)
		if err != nil {
			return nil, fmt.Errorf("failed to seed role %s: %w", r.Name, err)
		}
		out[role.Name] = role
	}
	return out, nil
}

// SeedUser inserts a verified, enabled user with the given role
func SeedUser(ctx context.Context, db *database.DB, email, password string, role *models.Role) (*models.User, error) {
	// Low cost keeps the suite fast
	hash, err := auth.HashPassword(password, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return repositories.NewUserRepository(db).Create(ctx, &models.User{
		Email:        email,
		VAT:          UniqueVAT(),
		PasswordHash: hash,
		Enabled:      true,
		Verified:     true,
		RoleID:       role.ID,
	})
}
