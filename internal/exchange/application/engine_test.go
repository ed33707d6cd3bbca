package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
	"github.com/wyfcoding/exchange/internal/exchange/infrastructure/persistence/mysql"
)

// testEngine 组装一套完整的引擎：真实仓储 + 内存 sqlite + 进程内事件总线。
// 事务隔离级别降级为 sqlite 默认值，业务语义不受影响。
type testEngine struct {
	db         *gorm.DB
	bus        *EventBus
	ledger     *LedgerService
	registry   *RegistryService
	orders     *OrderService
	matching   *MatchingService
	marketData *MarketDataService

	accountRepo domain.AccountRepository
	orderRepo   domain.OrderRepository
	closedRepo  domain.ClosedOrderRepository
	tradeRepo   domain.TradeRepository
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&mysql.CurrencyModel{}, &mysql.InstrumentModel{}, &mysql.UserModel{},
		&mysql.AccountModel{}, &mysql.TransferModel{},
		&mysql.OrderModel{}, &mysql.ClosedOrderModel{}, &mysql.TradeModel{},
	))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := NewEventBus()
	locks := NewLockSet()

	accountRepo := mysql.NewAccountRepository(db)
	transferRepo := mysql.NewTransferRepository(db)
	currencyRepo := mysql.NewCurrencyRepository(db)
	instrumentRepo := mysql.NewInstrumentRepository(db)
	userRepo := mysql.NewUserRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	closedRepo := mysql.NewClosedOrderRepository(db)
	tradeRepo := mysql.NewTradeRepository(db)

	ledger := NewLedgerService(db, accountRepo, transferRepo, userRepo, currencyRepo, nil, bus, locks, logger)
	registry := NewRegistryService(db, currencyRepo, instrumentRepo, userRepo, ledger, nil, bus, logger)
	orders := NewOrderService(db, orderRepo, closedRepo, accountRepo, userRepo, instrumentRepo, ledger, nil, bus, locks, logger)
	matching := NewMatchingService(db, orderRepo, tradeRepo, accountRepo, userRepo, instrumentRepo, ledger, orders, nil, bus, locks, logger)
	marketData := NewMarketDataService(orders, instrumentRepo, nil, nil, logger)

	// sqlite 不支持串行化事务选项
	ledger.txOpts = nil
	registry.txOpts = nil
	orders.txOpts = nil
	matching.txOpts = nil

	bus.Subscribe(matching.HandleEvent)
	bus.Subscribe(marketData.HandleEvent)

	require.NoError(t, orders.LoadOpenOrders(context.Background()))

	return &testEngine{
		db:          db,
		bus:         bus,
		ledger:      ledger,
		registry:    registry,
		orders:      orders,
		matching:    matching,
		marketData:  marketData,
		accountRepo: accountRepo,
		orderRepo:   orderRepo,
		closedRepo:  closedRepo,
		tradeRepo:   tradeRepo,
	}
}

// seedMarket 建立 BTC/USD 市场：一个经纪商与两个挂靠的交易用户
func (e *testEngine) seedMarket(t *testing.T) (broker, alice, bob *domain.User, instrument *domain.Instrument) {
	t.Helper()
	ctx := context.Background()

	_, err := e.registry.CreateCurrency(ctx, CreateCurrencyCommand{Code: "BTC", Type: domain.CurrencyTypeCrypto, Precision: 8})
	require.NoError(t, err)
	_, err = e.registry.CreateCurrency(ctx, CreateCurrencyCommand{Code: "USD", Type: domain.CurrencyTypeFiat, Precision: 2})
	require.NoError(t, err)

	instrument, err = e.registry.CreateInstrument(ctx, CreateInstrumentCommand{
		BaseCurrency:      "BTC",
		QuoteCurrency:     "USD",
		QuantityIncrement: decimal.RequireFromString("0.01"),
	})
	require.NoError(t, err)

	broker = e.createUser(t, "broker-main", "")
	alice = e.createUser(t, "alice", broker.ID)
	bob = e.createUser(t, "bob", broker.ID)
	return broker, alice, bob, instrument
}

func (e *testEngine) createUser(t *testing.T, username, brokerID string) *domain.User {
	t.Helper()
	user, err := e.registry.CreateUser(context.Background(), CreateUserCommand{Username: username, BrokerID: brokerID})
	require.NoError(t, err)
	return user
}

func (e *testEngine) fund(t *testing.T, userID, currency, amount string) {
	t.Helper()
	account := e.account(t, userID, currency)
	_, err := e.ledger.Deposit(context.Background(), DepositCommand{
		AccountID: account.ID,
		Amount:    decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
}

func (e *testEngine) account(t *testing.T, userID, currency string) *domain.Account {
	t.Helper()
	account, err := e.accountRepo.GetByUserCurrency(context.Background(), userID, currency)
	require.NoError(t, err)
	require.NotNil(t, account, "account %s/%s", userID, currency)
	return account
}

func (e *testEngine) assertBalance(t *testing.T, userID, currency, want string) {
	t.Helper()
	account := e.account(t, userID, currency)
	require.True(t, account.Balance.Equal(decimal.RequireFromString(want)),
		"balance of %s/%s: want %s, got %s", userID, currency, want, account.Balance)
}

func (e *testEngine) mustOpen(t *testing.T, cmd OpenOrderCommand) *domain.Order {
	t.Helper()
	order, err := e.orders.OpenOrder(context.Background(), cmd)
	require.NoError(t, err)
	require.NotNil(t, order)
	return order
}

func limitOrder(userID, instrumentID string, side domain.OrderSide, tif domain.TimeInForce, price, quantity string) OpenOrderCommand {
	return OpenOrderCommand{
		UserID:       userID,
		InstrumentID: instrumentID,
		Type:         domain.OrderTypeLimit,
		Side:         side,
		TimeInForce:  tif,
		Price:        decimal.RequireFromString(price),
		Quantity:     decimal.RequireFromString(quantity),
	}
}

func marketOrder(userID, instrumentID string, side domain.OrderSide, tif domain.TimeInForce, quantity string) OpenOrderCommand {
	return OpenOrderCommand{
		UserID:       userID,
		InstrumentID: instrumentID,
		Type:         domain.OrderTypeMarket,
		Side:         side,
		TimeInForce:  tif,
		Quantity:     decimal.RequireFromString(quantity),
	}
}

func (e *testEngine) tradesOf(t *testing.T, orderID string) []*domain.OrderTrade {
	t.Helper()
	trades, err := e.tradeRepo.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	return trades
}

func (e *testEngine) openOrderCount(t *testing.T) int {
	t.Helper()
	orders, err := e.orderRepo.ListOpen(context.Background())
	require.NoError(t, err)
	return len(orders)
}
