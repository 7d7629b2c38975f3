// Package repomanager vends the credential store repositories and runs work
// inside a transaction, for either PostgreSQL or the in-memory store.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/users"
)

// TxFunc receives a users repository bound to the running transaction.
type TxFunc func(ctx context.Context, users users.Repository) error

type RepositoryManager interface {
	// RunMigrations brings the schema up to date.
	RunMigrations(ctx context.Context) error
	// Users returns a repository outside any transaction.
	Users() users.Repository
	// WithTx runs fn in a transaction that commits when fn returns nil.
	WithTx(ctx context.Context, fn TxFunc) error
	Close() error
}
