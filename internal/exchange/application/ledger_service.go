package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/messagequeue"
)

// LedgerService 账本服务
// 负责账户创建、入金与账户间转账，所有余额变更都在事务内完成并留有流水。
type LedgerService struct {
	txRunner
	accounts   domain.AccountRepository
	transfers  domain.TransferRepository
	users      domain.UserRepository
	currencies domain.CurrencyRepository
	publisher  messagequeue.EventPublisher
	bus        *EventBus
	locks      *LockSet
	logger     *slog.Logger
}

// NewLedgerService 创建账本服务
func NewLedgerService(
	db *gorm.DB,
	accounts domain.AccountRepository,
	transfers domain.TransferRepository,
	users domain.UserRepository,
	currencies domain.CurrencyRepository,
	publisher messagequeue.EventPublisher,
	bus *EventBus,
	locks *LockSet,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		txRunner:   newTxRunner(db),
		accounts:   accounts,
		transfers:  transfers,
		users:      users,
		currencies: currencies,
		publisher:  publisher,
		bus:        bus,
		locks:      locks,
		logger:     logger.With("module", "ledger"),
	}
}

// CreateAccount 为用户在指定币种下创建账户
// 已存在时直接返回现有账户。
func (s *LedgerService) CreateAccount(ctx context.Context, userID, currency string) (*domain.Account, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NewError(domain.ErrCodeUserNotFound, "user not found").With("user_id", userID)
	}

	cur, err := s.currencies.GetByCode(ctx, currency)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, domain.NewError(domain.ErrCodeCurrencyNotFound, "currency not found").With("currency", currency)
	}

	existing, err := s.accounts.GetByUserCurrency(ctx, userID, currency)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	account := &domain.Account{
		ID:       fmt.Sprintf("ACC-%d", idgen.GenID()),
		UserID:   userID,
		Currency: currency,
		Balance:  decimal.Zero,
	}

	var events []domain.Event
	err = s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.accounts.Save(txCtx, account); err != nil {
			return err
		}
		events = append(events, domain.NewEvent(
			domain.AccountCreatedEventType, account.ID,
			domain.AccountCreatedEvent{Account: account, OccurredOn: time.Now()},
		))
		return publishAll(ctx, txCtx, s.publisher, events)
	})
	if err != nil {
		return nil, err
	}

	if err := s.bus.Dispatch(ctx, events); err != nil {
		return account, err
	}
	return account, nil
}

// CreateAccountsForUser 为用户在所有已注册币种下补齐账户
// 在调用方事务内执行，返回新建的账户与待分发事件。
func (s *LedgerService) CreateAccountsForUser(ctx context.Context, userID string) ([]*domain.Account, []domain.Event, error) {
	currencies, err := s.currencies.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	var created []*domain.Account
	var events []domain.Event
	for _, currency := range currencies {
		existing, err := s.accounts.GetByUserCurrency(ctx, userID, currency.Code)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			continue
		}
		account := &domain.Account{
			ID:       fmt.Sprintf("ACC-%d", idgen.GenID()),
			UserID:   userID,
			Currency: currency.Code,
			Balance:  decimal.Zero,
		}
		if err := s.accounts.Save(ctx, account); err != nil {
			return nil, nil, err
		}
		created = append(created, account)
		events = append(events, domain.NewEvent(
			domain.AccountCreatedEventType, account.ID,
			domain.AccountCreatedEvent{Account: account, OccurredOn: time.Now()},
		))
	}
	return created, events, nil
}

// Deposit 账户入金
// 与下单、平仓共用 master 锁，入金不会与持锁写路径读出的余额交错提交。
func (s *LedgerService) Deposit(ctx context.Context, cmd DepositCommand) (*domain.Account, error) {
	account, events, err := s.deposit(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := s.bus.Dispatch(ctx, events); err != nil {
		return account, err
	}
	return account, nil
}

func (s *LedgerService) deposit(ctx context.Context, cmd DepositCommand) (*domain.Account, []domain.Event, error) {
	if !cmd.Amount.IsPositive() {
		return nil, nil, fmt.Errorf("deposit amount must be positive, got %s", cmd.Amount)
	}

	release := s.locks.Acquire(lockMaster)
	defer release()

	var account *domain.Account
	var events []domain.Event
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		account, err = s.accounts.Get(txCtx, cmd.AccountID)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.NewError(domain.ErrCodeAccountNotFound, "account not found").With("account_id", cmd.AccountID)
		}
		account.Balance = account.Balance.Add(cmd.Amount)
		if err := s.accounts.Save(txCtx, account); err != nil {
			return err
		}
		events = append(events, domain.NewEvent(
			domain.AccountUpdatedEventType, account.ID,
			domain.AccountUpdatedEvent{Account: account, OccurredOn: time.Now()},
		))
		return publishAll(ctx, txCtx, s.publisher, events)
	})
	if err != nil {
		return nil, nil, err
	}
	return account, events, nil
}

// Transfer 在两个账户间划转资金
// 必须在调用方事务内执行；余额不足返回 NOT_ENOUGH_BALANCE 并回滚整个事务。
// 返回的事件由调用方在提交后分发。
func (s *LedgerService) Transfer(ctx context.Context, src, dst *domain.Account, amount decimal.Decimal, description string) (*domain.AccountTransfer, []domain.Event, error) {
	if amount.IsNegative() {
		return nil, nil, fmt.Errorf("transfer amount must not be negative, got %s", amount)
	}
	if !src.CanDebit(amount) {
		return nil, nil, domain.NewError(domain.ErrCodeNotEnoughBalance, "not enough balance").
			With("account_id", src.ID).
			With("balance", src.Balance.String()).
			With("amount", amount.String())
	}

	transfer := &domain.AccountTransfer{
		ID:               fmt.Sprintf("TRF-%d", idgen.GenID()),
		SrcAccountID:     src.ID,
		DstAccountID:     dst.ID,
		SrcBalanceBefore: src.Balance,
		DstBalanceBefore: dst.Balance,
		Amount:           amount,
		Description:      description,
	}
	src.Balance = src.Balance.Sub(amount)
	dst.Balance = dst.Balance.Add(amount)

	if err := s.transfers.Save(ctx, transfer); err != nil {
		return nil, nil, err
	}
	if err := s.accounts.Save(ctx, src); err != nil {
		return nil, nil, err
	}
	if err := s.accounts.Save(ctx, dst); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	events := []domain.Event{
		domain.NewEvent(domain.TransferCreatedEventType, transfer.ID, domain.TransferCreatedEvent{Transfer: transfer, OccurredOn: now}),
		domain.NewEvent(domain.AccountUpdatedEventType, src.ID, domain.AccountUpdatedEvent{Account: src, OccurredOn: now}),
		domain.NewEvent(domain.AccountUpdatedEventType, dst.ID, domain.AccountUpdatedEvent{Account: dst, OccurredOn: now}),
	}
	return transfer, events, nil
}

// GetAccount 查询账户
func (s *LedgerService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.accounts.Get(ctx, accountID)
}

// ListAccounts 查询用户全部账户
func (s *LedgerService) ListAccounts(ctx context.Context, userID string) ([]*domain.Account, error) {
	return s.accounts.ListByUser(ctx, userID)
}

// ListTransfers 分页查询账户流水
func (s *LedgerService) ListTransfers(ctx context.Context, accountID string, limit, offset int) ([]*domain.AccountTransfer, int64, error) {
	return s.transfers.ListByAccount(ctx, accountID, limit, offset)
}
