// Package repomanager wires repository implementations to a concrete
// database backend and runs its schema setup.
package repomanager

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/uploads"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	// RunMigrations brings the schema (tables or indexes) up to date.
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Uploads() uploads.Repository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open connects to the database named by dsn. mongodb:// and mongodb+srv://
// select MongoDB; postgres:// and postgresql:// select PostgreSQL; memory://
// keeps everything in process memory.
func Open(ctx context.Context, dsn string) (RepositoryManager, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: bad database DSN: %v", common.ErrConfig, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return OpenMongo(ctx, dsn, databaseName(u))
	case "postgres", "postgresql":
		return OpenPostgres(ctx, dsn)
	case "memory":
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported database scheme %q", common.ErrConfig, u.Scheme)
	}
}

// databaseName takes the database from the URI path, defaulting to weavekeeper.
func databaseName(u *url.URL) string {
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return "weavekeeper"
}
