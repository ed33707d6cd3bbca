package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/messagequeue"
)

// OrderService 订单生命周期服务
// 负责下单时的资金冻结与平仓时的解冻、结算，维护全量挂单的内存缓存。
// 所有写路径都在全局 master 锁内执行；事件在事务提交并释放锁之后分发，
// 撮合由 OrderOpened 事件触发。
type OrderService struct {
	txRunner
	orders       domain.OrderRepository
	closedOrders domain.ClosedOrderRepository
	accounts     domain.AccountRepository
	users        domain.UserRepository
	instruments  domain.InstrumentRepository
	ledger       *LedgerService
	publisher    messagequeue.EventPublisher
	bus          *EventBus
	locks        *LockSet
	logger       *slog.Logger

	cacheMu    sync.RWMutex
	openOrders []*domain.Order
}

// NewOrderService 创建订单服务
func NewOrderService(
	db *gorm.DB,
	orders domain.OrderRepository,
	closedOrders domain.ClosedOrderRepository,
	accounts domain.AccountRepository,
	users domain.UserRepository,
	instruments domain.InstrumentRepository,
	ledger *LedgerService,
	publisher messagequeue.EventPublisher,
	bus *EventBus,
	locks *LockSet,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		txRunner:     newTxRunner(db),
		orders:       orders,
		closedOrders: closedOrders,
		accounts:     accounts,
		users:        users,
		instruments:  instruments,
		ledger:       ledger,
		publisher:    publisher,
		bus:          bus,
		locks:        locks,
		logger:       logger.With("module", "order"),
	}
}

// LoadOpenOrders 启动时从库中恢复挂单缓存
func (s *OrderService) LoadOpenOrders(ctx context.Context) error {
	orders, err := s.orders.ListOpen(ctx)
	if err != nil {
		return err
	}
	s.cacheMu.Lock()
	s.openOrders = orders
	s.cacheMu.Unlock()
	s.logger.InfoContext(ctx, "open orders loaded", "count", len(orders))
	return nil
}

// OpenOrder 下单
// 校验、冻结资金并落库后受理订单；受理后的撮合失败会连同订单一起返回，
// 订单本身已提交，调用方可据此决定重试撮合或撤单。
func (s *OrderService) OpenOrder(ctx context.Context, cmd OpenOrderCommand) (*domain.Order, error) {
	order, events, err := s.openOrder(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := s.bus.Dispatch(ctx, events); err != nil {
		return order, fmt.Errorf("order %s accepted but post-open processing failed: %w", order.ID, err)
	}
	return order, nil
}

func (s *OrderService) openOrder(ctx context.Context, cmd OpenOrderCommand) (*domain.Order, []domain.Event, error) {
	release := s.locks.Acquire(lockMaster)
	defer release()

	client, err := s.users.Get(ctx, cmd.UserID)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return nil, nil, domain.NewError(domain.ErrCodeUserNotFound, "user not found").With("user_id", cmd.UserID)
	}
	broker, err := s.users.Get(ctx, client.BrokerID)
	if err != nil {
		return nil, nil, err
	}
	if broker == nil {
		return nil, nil, domain.NewError(domain.ErrCodeUserNotFound, "broker not found").With("user_id", client.BrokerID)
	}

	instrument, err := s.instruments.Get(ctx, cmd.InstrumentID)
	if err != nil {
		return nil, nil, err
	}
	if instrument == nil {
		return nil, nil, domain.NewError(domain.ErrCodeInstrumentNotFound, "instrument not found").With("instrument_id", cmd.InstrumentID)
	}
	if !instrument.IsValidQuantity(cmd.Quantity) {
		return nil, nil, domain.NewError(domain.ErrCodeInvalidQuantity, "quantity is not a multiple of increment").
			With("quantity", cmd.Quantity.String()).
			With("increment", instrument.QuantityIncrement.String())
	}

	clientBase, err := s.requireAccount(ctx, client.ID, instrument.BaseCurrency, domain.ErrCodeTraderBaseAccountNotFound)
	if err != nil {
		return nil, nil, err
	}
	clientQuote, err := s.requireAccount(ctx, client.ID, instrument.QuoteCurrency, domain.ErrCodeTraderQuoteAccountNotFound)
	if err != nil {
		return nil, nil, err
	}
	brokerBase, err := s.requireAccount(ctx, broker.ID, instrument.BaseCurrency, domain.ErrCodeBrokerBaseAccountNotFound)
	if err != nil {
		return nil, nil, err
	}
	brokerQuote, err := s.requireAccount(ctx, broker.ID, instrument.QuoteCurrency, domain.ErrCodeBrokerQuoteAccountNotFound)
	if err != nil {
		return nil, nil, err
	}

	order := &domain.Order{
		ID:                   fmt.Sprintf("ORD-%d", idgen.GenID()),
		InstrumentID:         instrument.ID,
		UserID:               client.ID,
		Type:                 cmd.Type,
		Side:                 cmd.Side,
		TimeInForce:          cmd.TimeInForce,
		Price:                cmd.Price,
		Quantity:             cmd.Quantity,
		Status:               domain.OrderStatusNew,
		ClientBaseAccountID:  clientBase.ID,
		ClientQuoteAccountID: clientQuote.ID,
		BrokerBaseAccountID:  brokerBase.ID,
		BrokerQuoteAccountID: brokerQuote.ID,
	}

	if order.Type == domain.OrderTypeMarket {
		if order.TimeInForce != domain.TimeInForceFOK && order.TimeInForce != domain.TimeInForceIOC {
			return nil, nil, domain.NewError(domain.ErrCodeMarketOrderFokAndIocOnly, "market order must be fok or ioc")
		}
		vwap, err := domain.VWAP(s.openOrdersSnapshot(), instrument.ID, order.Side, order.Quantity, []string{client.ID})
		if err != nil {
			return nil, nil, err
		}
		order.Price = vwap.Price
	}

	var events []domain.Event
	err = s.inTx(ctx, func(txCtx context.Context) error {
		src, dst := clientBase, brokerBase
		if order.Side == domain.OrderSideBuy {
			src, dst = clientQuote, brokerQuote
		}
		hold, holdEvents, err := s.ledger.Transfer(txCtx, src, dst, order.HoldAmount(), fmt.Sprintf("hold for order %s", order.ID))
		if err != nil {
			return err
		}
		order.HoldTransferID = hold.ID

		if err := s.orders.Save(txCtx, order); err != nil {
			return err
		}
		events = append(events, holdEvents...)
		events = append(events, domain.NewEvent(
			domain.OrderOpenedEventType, order.ID,
			domain.OrderOpenedEvent{Order: order, OccurredOn: time.Now()},
		))
		return publishAll(ctx, txCtx, s.publisher, events)
	})
	if err != nil {
		return nil, nil, err
	}

	// 缓存持有副本，调用方拿到的订单与缓存互不影响。
	cached := *order
	s.cacheMu.Lock()
	s.openOrders = append(s.openOrders, &cached)
	s.cacheMu.Unlock()

	s.logger.InfoContext(ctx, "order opened",
		"order_id", order.ID, "side", order.Side, "type", order.Type,
		"price", order.Price.String(), "quantity", order.Quantity.String())
	return order, events, nil
}

// CloseOrder 平仓
// 解冻未成交部分、结算已成交所得，订单移入归档表。
func (s *OrderService) CloseOrder(ctx context.Context, cmd CloseOrderCommand) (*domain.ClosedOrder, error) {
	closed, events, err := s.closeOrder(ctx, cmd)
	if closed == nil {
		return nil, err
	}
	// 平仓已提交，事件必须分发；缓存分歧错误在分发之后一并上抛。
	if dispatchErr := s.bus.Dispatch(ctx, events); dispatchErr != nil {
		dispatchErr = fmt.Errorf("order %s closed but post-close processing failed: %w", closed.ID, dispatchErr)
		err = errors.Join(err, dispatchErr)
	}
	return closed, err
}

func (s *OrderService) closeOrder(ctx context.Context, cmd CloseOrderCommand) (*domain.ClosedOrder, []domain.Event, error) {
	if !cmd.Status.IsTerminal() {
		return nil, nil, fmt.Errorf("close status must be terminal, got %q", cmd.Status)
	}

	release := s.locks.Acquire(lockMaster)
	defer release()

	order, err := s.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, domain.NewError(domain.ErrCodeOrderNotFound, "order not found").With("order_id", cmd.OrderID)
	}

	var closed *domain.ClosedOrder
	var events []domain.Event
	err = s.inTx(ctx, func(txCtx context.Context) error {
		clientBase, err := s.requireAccountByID(txCtx, order.ClientBaseAccountID, domain.ErrCodeTraderBaseAccountNotFound)
		if err != nil {
			return err
		}
		clientQuote, err := s.requireAccountByID(txCtx, order.ClientQuoteAccountID, domain.ErrCodeTraderQuoteAccountNotFound)
		if err != nil {
			return err
		}
		brokerBase, err := s.requireAccountByID(txCtx, order.BrokerBaseAccountID, domain.ErrCodeBrokerBaseAccountNotFound)
		if err != nil {
			return err
		}
		brokerQuote, err := s.requireAccountByID(txCtx, order.BrokerQuoteAccountID, domain.ErrCodeBrokerQuoteAccountNotFound)
		if err != nil {
			return err
		}

		// 卖单：释放剩余基础币、结算计价币所得；买单方向相反。
		releaseSrc, releaseDst := brokerBase, clientBase
		payoutSrc, payoutDst := brokerQuote, clientQuote
		if order.Side == domain.OrderSideBuy {
			releaseSrc, releaseDst = brokerQuote, clientQuote
			payoutSrc, payoutDst = brokerBase, clientBase
		}

		releaseTransfer, releaseEvents, err := s.ledger.Transfer(txCtx, releaseSrc, releaseDst, order.ReleaseAmount(), fmt.Sprintf("release for order %s", order.ID))
		if err != nil {
			return err
		}
		payoutTransfer, payoutEvents, err := s.ledger.Transfer(txCtx, payoutSrc, payoutDst, order.PayoutAmount(), fmt.Sprintf("payout for order %s", order.ID))
		if err != nil {
			return err
		}
		order.ReleaseTransferID = releaseTransfer.ID
		order.PayoutTransferID = payoutTransfer.ID

		closed = domain.NewClosedOrder(order, cmd.Status, cmd.Message)
		if err := s.closedOrders.Save(txCtx, closed); err != nil {
			return err
		}
		if err := s.orders.Delete(txCtx, order.ID); err != nil {
			return err
		}

		events = append(events, releaseEvents...)
		events = append(events, payoutEvents...)
		events = append(events, domain.NewEvent(
			domain.OrderClosedEventType, closed.ID,
			domain.OrderClosedEvent{Order: closed, OccurredOn: time.Now()},
		))
		return publishAll(ctx, txCtx, s.publisher, events)
	})
	if err != nil {
		return nil, nil, err
	}

	if !s.removeFromCache(order.ID) {
		// 缓存与库不一致说明引擎状态已被破坏，直接上抛交由运维介入。
		return closed, events, domain.NewError(domain.ErrCodeNoOrderInLocalRepo, "closed order missing from open order cache").With("order_id", order.ID)
	}

	s.logger.InfoContext(ctx, "order closed",
		"order_id", order.ID, "status", closed.Status, "message", closed.Message)
	return closed, events, nil
}

// CancelOrder 用户撤单
// userID 非空时校验订单归属，不暴露他人订单的存在性。
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID, message string) (*domain.ClosedOrder, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || (userID != "" && order.UserID != userID) {
		return nil, domain.NewError(domain.ErrCodeOrderNotFound, "order not found").With("order_id", orderID)
	}
	if message == "" {
		message = "cancelled by user"
	}
	return s.CloseOrder(ctx, CloseOrderCommand{OrderID: orderID, Status: domain.OrderStatusCancelled, Message: message})
}

// OpenOrdersSnapshot 返回挂单缓存的深拷贝
func (s *OrderService) OpenOrdersSnapshot() []*domain.Order {
	return s.openOrdersSnapshot()
}

func (s *OrderService) openOrdersSnapshot() []*domain.Order {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	snapshot := make([]*domain.Order, len(s.openOrders))
	for i, order := range s.openOrders {
		copied := *order
		snapshot[i] = &copied
	}
	return snapshot
}

// RefreshCachedOrder 用最新成交进度覆盖缓存中的同号订单
func (s *OrderService) RefreshCachedOrder(order *domain.Order) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	for i, cached := range s.openOrders {
		if cached.ID == order.ID {
			copied := *order
			s.openOrders[i] = &copied
			return
		}
	}
}

func (s *OrderService) removeFromCache(orderID string) bool {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	for i, cached := range s.openOrders {
		if cached.ID == orderID {
			s.openOrders = append(s.openOrders[:i], s.openOrders[i+1:]...)
			return true
		}
	}
	return false
}

// EstimateVWAP 按当前挂单缓存估算加权均价
func (s *OrderService) EstimateVWAP(_ context.Context, query VWAPQuery) (domain.VWAPResult, error) {
	return domain.VWAP(s.openOrdersSnapshot(), query.InstrumentID, query.Side, query.Volume, query.ExcludeUsers)
}

// GetOrder 查询挂单
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.NewError(domain.ErrCodeOrderNotFound, "order not found").With("order_id", orderID)
	}
	return order, nil
}

// ListOpenOrders 分页查询用户挂单
func (s *OrderService) ListOpenOrders(ctx context.Context, userID string, limit, offset int) ([]*domain.Order, int64, error) {
	return s.orders.ListByUser(ctx, userID, limit, offset)
}

// ListClosedOrders 分页查询用户历史订单
func (s *OrderService) ListClosedOrders(ctx context.Context, userID string, limit, offset int) ([]*domain.ClosedOrder, int64, error) {
	return s.closedOrders.ListByUser(ctx, userID, limit, offset)
}

func (s *OrderService) requireAccount(ctx context.Context, userID, currency, code string) (*domain.Account, error) {
	account, err := s.accounts.GetByUserCurrency(ctx, userID, currency)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.NewError(code, "account not found").With("user_id", userID).With("currency", currency)
	}
	return account, nil
}

func (s *OrderService) requireAccountByID(ctx context.Context, accountID, code string) (*domain.Account, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.NewError(code, "account not found").With("account_id", accountID)
	}
	return account, nil
}
