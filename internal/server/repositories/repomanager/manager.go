package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/onetimecodes"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/pending"
)

// RepositoryManager vends repositories bound to a connection or transaction
// handle, so one unit of work can span several repositories.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Pending(db dbx.DBTX) pending.Repository
	OneTimeCodes(db dbx.DBTX) onetimecodes.Repository
}
