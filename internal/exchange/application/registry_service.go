package application

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/messagequeue"
)

// RegistryService 基础数据服务
// 管理币种、交易品种与用户；新用户自动在所有币种下开户。
type RegistryService struct {
	txRunner
	currencies  domain.CurrencyRepository
	instruments domain.InstrumentRepository
	users       domain.UserRepository
	ledger      *LedgerService
	publisher   messagequeue.EventPublisher
	bus         *EventBus
	logger      *slog.Logger
}

// NewRegistryService 创建基础数据服务
func NewRegistryService(
	db *gorm.DB,
	currencies domain.CurrencyRepository,
	instruments domain.InstrumentRepository,
	users domain.UserRepository,
	ledger *LedgerService,
	publisher messagequeue.EventPublisher,
	bus *EventBus,
	logger *slog.Logger,
) *RegistryService {
	return &RegistryService{
		txRunner:    newTxRunner(db),
		currencies:  currencies,
		instruments: instruments,
		users:       users,
		ledger:      ledger,
		publisher:   publisher,
		bus:         bus,
		logger:      logger.With("module", "registry"),
	}
}

// CreateCurrency 创建或更新币种
func (s *RegistryService) CreateCurrency(ctx context.Context, cmd CreateCurrencyCommand) (*domain.Currency, error) {
	currency := &domain.Currency{
		Code:      cmd.Code,
		Type:      cmd.Type,
		Precision: cmd.Precision,
	}
	if err := s.currencies.Save(ctx, currency); err != nil {
		return nil, err
	}
	return currency, nil
}

// ListCurrencies 查询全部币种
func (s *RegistryService) ListCurrencies(ctx context.Context) ([]*domain.Currency, error) {
	return s.currencies.List(ctx)
}

// CreateInstrument 创建交易品种
// 两端币种必须已注册。
func (s *RegistryService) CreateInstrument(ctx context.Context, cmd CreateInstrumentCommand) (*domain.Instrument, error) {
	for _, code := range []string{cmd.BaseCurrency, cmd.QuoteCurrency} {
		currency, err := s.currencies.GetByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if currency == nil {
			return nil, domain.NewError(domain.ErrCodeCurrencyNotFound, "currency not found").With("currency", code)
		}
	}

	instrumentID := cmd.InstrumentID
	if instrumentID == "" {
		instrumentID = cmd.BaseCurrency + cmd.QuoteCurrency
	}
	instrument := &domain.Instrument{
		ID:                instrumentID,
		BaseCurrency:      cmd.BaseCurrency,
		QuoteCurrency:     cmd.QuoteCurrency,
		QuantityIncrement: cmd.QuantityIncrement,
	}
	if err := s.instruments.Save(ctx, instrument); err != nil {
		return nil, err
	}
	return instrument, nil
}

// GetInstrument 查询交易品种
func (s *RegistryService) GetInstrument(ctx context.Context, instrumentID string) (*domain.Instrument, error) {
	instrument, err := s.instruments.Get(ctx, instrumentID)
	if err != nil {
		return nil, err
	}
	if instrument == nil {
		return nil, domain.NewError(domain.ErrCodeInstrumentNotFound, "instrument not found").With("instrument_id", instrumentID)
	}
	return instrument, nil
}

// ListInstruments 查询全部交易品种
func (s *RegistryService) ListInstruments(ctx context.Context) ([]*domain.Instrument, error) {
	return s.instruments.List(ctx)
}

// CreateUser 创建用户并自动开户
// BrokerID 非空时校验经纪商存在；用户与其在所有币种下的账户在同一事务内落库。
func (s *RegistryService) CreateUser(ctx context.Context, cmd CreateUserCommand) (*domain.User, error) {
	if cmd.BrokerID != "" {
		broker, err := s.users.Get(ctx, cmd.BrokerID)
		if err != nil {
			return nil, err
		}
		if broker == nil {
			return nil, domain.NewError(domain.ErrCodeUserNotFound, "broker not found").With("user_id", cmd.BrokerID)
		}
	}

	user := &domain.User{
		ID:           fmt.Sprintf("USR-%d", idgen.GenID()),
		Username:     cmd.Username,
		PasswordHash: cmd.PasswordHash,
		BrokerID:     cmd.BrokerID,
	}

	var events []domain.Event
	err := s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.users.Save(txCtx, user); err != nil {
			return err
		}
		_, accountEvents, err := s.ledger.CreateAccountsForUser(txCtx, user.ID)
		if err != nil {
			return err
		}
		events = append(events, accountEvents...)
		return publishAll(ctx, txCtx, s.publisher, events)
	})
	if err != nil {
		return nil, err
	}

	if err := s.bus.Dispatch(ctx, events); err != nil {
		return user, err
	}
	return user, nil
}

// GetUser 查询用户
func (s *RegistryService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NewError(domain.ErrCodeUserNotFound, "user not found").With("user_id", userID)
	}
	return user, nil
}
