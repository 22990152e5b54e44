// Package repomanager vends repository implementations for the configured
// storage backend and owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/webshelf/internal/dbx"
	"github.com/dmitrijs2005/webshelf/internal/server/repositories/users"
)

// MemoryDSN selects the in-process store instead of PostgreSQL.
const MemoryDSN = "memory://"

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// Open connects to dsn and returns the pool together with the matching
// manager. For MemoryDSN the pool is nil.
func Open(ctx context.Context, dsn string) (*sql.DB, RepositoryManager, error) {
	if strings.EqualFold(dsn, MemoryDSN) {
		return nil, NewMemoryRepositoryManager(), nil
	}

	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	m, err := NewPostgresRepositoryManager(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, m, nil
}
