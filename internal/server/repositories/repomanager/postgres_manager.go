package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/weavekeeper/internal/server/migrations"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/uploads"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	db      *sql.DB
	users   *users.PostgresRepository
	uploads *uploads.PostgresRepository
}

// OpenPostgres opens a pgx-backed *sql.DB and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return NewPostgresRepositoryManager(db), nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager
// over an already opened connection pool.
func NewPostgresRepositoryManager(db *sql.DB) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{
		db:      db,
		users:   users.NewPostgresRepository(db),
		uploads: uploads.NewPostgresRepository(db),
	}
}

func (m *PostgresRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *PostgresRepositoryManager) Uploads() uploads.Repository {
	return m.uploads
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the manager's connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

func (m *PostgresRepositoryManager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *PostgresRepositoryManager) Close(context.Context) error {
	return m.db.Close()
}
