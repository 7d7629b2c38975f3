package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/users"
)

// MemoryRepositoryManager serves a single in-memory users repository.
// Transactions are serialized; fn sees changes immediately and nothing is
// rolled back on error.
type MemoryRepositoryManager struct {
	txMu  sync.Mutex
	users *users.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{users: users.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Users() users.Repository { return m.users }

// Store exposes the concrete repository, e.g. for seeding.
func (m *MemoryRepositoryManager) Store() *users.MemoryRepository { return m.users }

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn TxFunc) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, m.users)
}

func (m *MemoryRepositoryManager) Close() error { return nil }
