package repomanager

import (
	"context"

	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/uploads"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps everything in process memory.
type MemoryRepositoryManager struct {
	users   *memory.UserRepository
	uploads *memory.UploadRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:   memory.NewUserRepository(),
		uploads: memory.NewUploadRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *MemoryRepositoryManager) Users() users.Repository             { return m.users }
func (m *MemoryRepositoryManager) Uploads() uploads.Repository         { return m.uploads }
func (m *MemoryRepositoryManager) Ping(context.Context) error          { return nil }
func (m *MemoryRepositoryManager) Close(context.Context) error         { return nil }
