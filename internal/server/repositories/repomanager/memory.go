package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/webshelf/internal/dbx"
	"github.com/dmitrijs2005/webshelf/internal/server/repositories/users"
)

// MemoryRepositoryManager hands out one shared in-memory store; the db
// handle passed to its methods is ignored.
type MemoryRepositoryManager struct {
	users *users.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{users: users.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }
