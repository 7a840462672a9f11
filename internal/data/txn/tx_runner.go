package txn

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/tunebridge-backend/internal/data/db"
	"github.com/yungbote/tunebridge-backend/internal/platform/dbctx"
)

// Runner provides the transaction boundary for multi-entity writes.
type Runner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormRunner struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

// NewGormRunner returns a runner that opens SERIALIZABLE transactions on
// Postgres and default transactions elsewhere.
func NewGormRunner(conn *gorm.DB) Runner {
	r := &gormRunner{db: conn}
	if conn != nil && db.IsPostgres(conn) {
		r.opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return r
}

func (r *gormRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return errors.New("transaction runner has nil db")
	}
	fc := func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	}
	if r.opts != nil {
		return r.db.WithContext(ctx).Transaction(fc, r.opts)
	}
	return r.db.WithContext(ctx).Transaction(fc)
}
