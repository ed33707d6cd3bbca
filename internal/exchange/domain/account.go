package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Account 资金账户
// 每个用户在每个币种下最多一个账户，余额永不为负。
type Account struct {
	ID        string
	UserID    string
	Currency  string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanDebit 余额是否足以扣减 amount
func (a *Account) CanDebit(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}

// AccountTransfer 账户间转账流水
// 记录转账前双方余额快照，便于审计对账。
type AccountTransfer struct {
	ID               string
	SrcAccountID     string
	DstAccountID     string
	SrcBalanceBefore decimal.Decimal
	DstBalanceBefore decimal.Decimal
	Amount           decimal.Decimal
	Description      string
	CreatedAt        time.Time
}

// AccountRepository 账户仓储接口
type AccountRepository interface {
	Save(ctx context.Context, account *Account) error
	Get(ctx context.Context, accountID string) (*Account, error)
	GetByUserCurrency(ctx context.Context, userID, currency string) (*Account, error)
	ListByUser(ctx context.Context, userID string) ([]*Account, error)
}

// TransferRepository 转账流水仓储接口
type TransferRepository interface {
	Save(ctx context.Context, transfer *AccountTransfer) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*AccountTransfer, int64, error)
}
