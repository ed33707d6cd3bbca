package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
)

// 新用户在所有已注册币种下自动开户
func TestCreateUserAutoCreatesAccounts(t *testing.T) {
	e := newTestEngine(t)
	_, alice, _, _ := e.seedMarket(t)

	accounts, err := e.ledger.ListAccounts(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	for _, account := range accounts {
		assert.True(t, account.Balance.IsZero())
	}
}

// 挂靠不存在的经纪商时拒绝建用户
func TestCreateUserRejectsUnknownBroker(t *testing.T) {
	e := newTestEngine(t)
	e.seedMarket(t)

	_, err := e.registry.CreateUser(context.Background(), CreateUserCommand{Username: "orphan", BrokerID: "USR-missing"})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeUserNotFound))
}

// 品种两端币种必须已注册
func TestCreateInstrumentRequiresCurrencies(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.registry.CreateInstrument(context.Background(), CreateInstrumentCommand{
		BaseCurrency:      "ETH",
		QuoteCurrency:     "USD",
		QuantityIncrement: decimal.RequireFromString("0.1"),
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeCurrencyNotFound))
}

// 转账双侧余额变动与转账前快照一致
func TestTransferConservation(t *testing.T) {
	e := newTestEngine(t)
	_, alice, bob, _ := e.seedMarket(t)
	e.fund(t, alice.ID, "USD", "100")

	src := e.account(t, alice.ID, "USD")
	dst := e.account(t, bob.ID, "USD")

	var transfer *domain.AccountTransfer
	err := e.ledger.inTx(context.Background(), func(txCtx context.Context) error {
		var err error
		transfer, _, err = e.ledger.Transfer(txCtx, src, dst, decimal.RequireFromString("40"), "test transfer")
		return err
	})
	require.NoError(t, err)

	assert.True(t, transfer.SrcBalanceBefore.Equal(decimal.RequireFromString("100")))
	assert.True(t, transfer.DstBalanceBefore.IsZero())
	e.assertBalance(t, alice.ID, "USD", "60")
	e.assertBalance(t, bob.ID, "USD", "40")

	transfers, total, err := e.ledger.ListTransfers(context.Background(), transfer.SrcAccountID, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, transfers)
	assert.GreaterOrEqual(t, total, int64(1))
}

// 余额不足的转账整体回滚
func TestTransferInsufficientBalanceRollsBack(t *testing.T) {
	e := newTestEngine(t)
	_, alice, bob, _ := e.seedMarket(t)
	e.fund(t, alice.ID, "USD", "10")

	src := e.account(t, alice.ID, "USD")
	dst := e.account(t, bob.ID, "USD")

	err := e.ledger.inTx(context.Background(), func(txCtx context.Context) error {
		_, _, err := e.ledger.Transfer(txCtx, src, dst, decimal.RequireFromString("40"), "too much")
		return err
	})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeNotEnoughBalance))

	e.assertBalance(t, alice.ID, "USD", "10")
	e.assertBalance(t, bob.ID, "USD", "0")
}

// 入金只接受正数金额
func TestDepositValidation(t *testing.T) {
	e := newTestEngine(t)
	_, alice, _, _ := e.seedMarket(t)
	account := e.account(t, alice.ID, "USD")

	_, err := e.ledger.Deposit(context.Background(), DepositCommand{AccountID: account.ID, Amount: decimal.Zero})
	require.Error(t, err)

	_, err = e.ledger.Deposit(context.Background(), DepositCommand{AccountID: "ACC-missing", Amount: decimal.RequireFromString("1")})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeAccountNotFound))
}

// 入金与下单并发时资金不丢失
// 两条写路径都持 master 锁，入金不会被下单事务中携带的旧余额覆盖。
func TestDepositDuringOpenOrderPreservesFunds(t *testing.T) {
	e := newTestEngine(t)
	broker, alice, _, instrument := e.seedMarket(t)
	e.fund(t, alice.ID, "USD", "1000")
	account := e.account(t, alice.ID, "USD")

	depositErr := make(chan error, 1)
	go func() {
		_, err := e.ledger.Deposit(context.Background(), DepositCommand{
			AccountID: account.ID,
			Amount:    decimal.RequireFromString("500"),
		})
		depositErr <- err
	}()

	e.mustOpen(t, limitOrder(alice.ID, instrument.ID, domain.OrderSideBuy, domain.TimeInForceGTC, "30000", "0.01"))
	require.NoError(t, <-depositErr)

	// 冻结 300，入金 500，无论两者先后，1000 + 500 - 300 = 1200
	e.assertBalance(t, alice.ID, "USD", "1200")
	e.assertBalance(t, broker.ID, "USD", "300")
}

// 重复创建账户幂等
func TestCreateAccountIdempotent(t *testing.T) {
	e := newTestEngine(t)
	_, alice, _, _ := e.seedMarket(t)

	first, err := e.ledger.CreateAccount(context.Background(), alice.ID, "USD")
	require.NoError(t, err)
	second, err := e.ledger.CreateAccount(context.Background(), alice.ID, "USD")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = e.ledger.CreateAccount(context.Background(), alice.ID, "JPY")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrCodeCurrencyNotFound))
}
