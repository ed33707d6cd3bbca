package application

import (
	"context"
	"database/sql"

	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
)

// txRunner 封装服务层事务入口
// 引擎内所有资金写入都走串行化隔离级别，事务通过 contextx 传递给仓储。
type txRunner struct {
	db     *gorm.DB
	txOpts []*sql.TxOptions
}

func newTxRunner(db *gorm.DB) txRunner {
	return txRunner{
		db:     db,
		txOpts: []*sql.TxOptions{{Isolation: sql.LevelSerializable}},
	}
}

func (r *txRunner) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	}, r.txOpts...)
}
