package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pgfinder/internal/dbx"
	"github.com/dmitrijs2005/pgfinder/internal/server/repositories/accounts"
)

// RepositoryManager vends repositories bound to a DBTX, so the same service
// code runs against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
}
