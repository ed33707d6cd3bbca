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

// MatchingService 撮合服务
// 订阅 OrderOpened 事件触发撮合：价格优先、时间优先，按被动方价格成交，
// 一轮撮合的全部成交与跨经纪商结算在同一串行化事务内提交。
type MatchingService struct {
	txRunner
	orders      domain.OrderRepository
	trades      domain.TradeRepository
	accounts    domain.AccountRepository
	users       domain.UserRepository
	instruments domain.InstrumentRepository
	ledger      *LedgerService
	lifecycle   *OrderService
	publisher   messagequeue.EventPublisher
	bus         *EventBus
	locks       *LockSet
	logger      *slog.Logger
}

// NewMatchingService 创建撮合服务
func NewMatchingService(
	db *gorm.DB,
	orders domain.OrderRepository,
	trades domain.TradeRepository,
	accounts domain.AccountRepository,
	users domain.UserRepository,
	instruments domain.InstrumentRepository,
	ledger *LedgerService,
	lifecycle *OrderService,
	publisher messagequeue.EventPublisher,
	bus *EventBus,
	locks *LockSet,
	logger *slog.Logger,
) *MatchingService {
	return &MatchingService{
		txRunner:    newTxRunner(db),
		orders:      orders,
		trades:      trades,
		accounts:    accounts,
		users:       users,
		instruments: instruments,
		ledger:      ledger,
		lifecycle:   lifecycle,
		publisher:   publisher,
		bus:         bus,
		locks:       locks,
		logger:      logger.With("module", "matching"),
	}
}

// HandleEvent 进程内事件入口
// 只响应 OrderOpened：先撮合该订单，再清扫可平仓的挂单。
func (s *MatchingService) HandleEvent(ctx context.Context, event domain.Event) error {
	if event.Topic != domain.OrderOpenedEventType {
		return nil
	}
	payload, ok := event.Payload.(domain.OrderOpenedEvent)
	if !ok {
		return nil
	}
	if err := s.Trade(ctx, payload.Order.ID); err != nil {
		return fmt.Errorf("matching order %s: %w", payload.Order.ID, err)
	}
	return s.FindAndCloseOrders(ctx)
}

// Trade 对指定订单执行一轮撮合
// 撮合事务失败时错误原样上抛，订单保持受理前进度，可安全重试。
func (s *MatchingService) Trade(ctx context.Context, orderID string) error {
	events, pendingClose, err := s.trade(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.bus.Dispatch(ctx, events); err != nil {
		return err
	}
	if pendingClose != nil {
		if _, err := s.lifecycle.CloseOrder(ctx, *pendingClose); err != nil {
			return err
		}
	}
	return nil
}

func (s *MatchingService) trade(ctx context.Context, orderID string) ([]domain.Event, *CloseOrderCommand, error) {
	release := s.locks.Acquire(lockMaster)
	defer release()

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		// 抢到锁之前已被平仓，无事可做。
		return nil, nil, nil
	}
	required := order.RemainingQuantity()
	if !required.IsPositive() {
		return nil, nil, nil
	}

	candidates, err := s.orders.FindMatching(ctx, order)
	if err != nil {
		return nil, nil, err
	}
	selected := make([]*domain.Order, 0, len(candidates))
	covered := decimal.Zero
	for _, counter := range candidates {
		if covered.GreaterThanOrEqual(required) {
			break
		}
		selected = append(selected, counter)
		covered = covered.Add(counter.RemainingQuantity())
	}

	if order.TimeInForce == domain.TimeInForceFOK && covered.LessThan(required) {
		// 流动性不足，整单拒绝；平仓须在锁释放后执行。
		return nil, &CloseOrderCommand{
			OrderID: order.ID,
			Status:  domain.OrderStatusRejected,
			Message: "not enough liquidity for FOK",
		}, nil
	}
	if len(selected) == 0 {
		return nil, nil, nil
	}

	instrument, err := s.instruments.Get(ctx, order.InstrumentID)
	if err != nil {
		return nil, nil, err
	}
	if instrument == nil {
		return nil, nil, domain.NewError(domain.ErrCodeInstrumentNotFound, "instrument not found").With("instrument_id", order.InstrumentID)
	}
	orderUser, err := s.users.Get(ctx, order.UserID)
	if err != nil {
		return nil, nil, err
	}
	if orderUser == nil {
		return nil, nil, domain.NewError(domain.ErrCodeUserNotFound, "user not found").With("user_id", order.UserID)
	}

	var events []domain.Event
	err = s.inTx(ctx, func(txCtx context.Context) error {
		for _, counter := range selected {
			if required.LessThan(instrument.QuantityIncrement) {
				break
			}
			quantity := decimal.Min(counter.RemainingQuantity(), required)
			price := counter.Price

			trade := &domain.OrderTrade{
				ID:           fmt.Sprintf("TRD-%d", idgen.GenID()),
				InstrumentID: instrument.ID,
				Quantity:     quantity,
				Price:        price,
			}
			if order.Side == domain.OrderSideBuy {
				trade.BuyOrderID, trade.SellOrderID = order.ID, counter.ID
			} else {
				trade.BuyOrderID, trade.SellOrderID = counter.ID, order.ID
			}
			if err := s.trades.Save(txCtx, trade); err != nil {
				return err
			}

			order.ApplyFill(quantity, price)
			counter.ApplyFill(quantity, price)
			if err := s.orders.Save(txCtx, order); err != nil {
				return err
			}
			if err := s.orders.Save(txCtx, counter); err != nil {
				return err
			}

			settlementEvents, err := s.settleAcrossBrokers(txCtx, instrument, orderUser, order, counter, trade)
			if err != nil {
				return err
			}

			now := time.Now()
			events = append(events,
				domain.NewEvent(domain.OrderTradedEventType, order.ID, domain.OrderTradedEvent{Order: order, Trade: trade, OccurredOn: now}),
				domain.NewEvent(domain.OrderTradedEventType, counter.ID, domain.OrderTradedEvent{Order: counter, Trade: trade, OccurredOn: now}),
			)
			events = append(events, settlementEvents...)

			required = required.Sub(quantity)
		}
		return publishAll(ctx, txCtx, s.publisher, events)
	})
	if err != nil {
		return nil, nil, err
	}

	s.lifecycle.RefreshCachedOrder(order)
	for _, counter := range selected {
		s.lifecycle.RefreshCachedOrder(counter)
	}

	s.logger.InfoContext(ctx, "matching round done",
		"order_id", order.ID, "fills", len(selected),
		"executed", order.ExecutedQuantity.String())
	return events, nil, nil
}

// settleAcrossBrokers 跨经纪商成交的资金结算
// 买卖双方经纪商不同时，买方经纪商付计价币、卖方经纪商付基础币。
func (s *MatchingService) settleAcrossBrokers(ctx context.Context, instrument *domain.Instrument, orderUser *domain.User, order, counter *domain.Order, trade *domain.OrderTrade) ([]domain.Event, error) {
	counterUser, err := s.users.Get(ctx, counter.UserID)
	if err != nil {
		return nil, err
	}
	if counterUser == nil {
		return nil, domain.NewError(domain.ErrCodeUserNotFound, "user not found").With("user_id", counter.UserID)
	}

	buyerBroker, sellerBroker := orderUser.BrokerID, counterUser.BrokerID
	if order.Side == domain.OrderSideSell {
		buyerBroker, sellerBroker = counterUser.BrokerID, orderUser.BrokerID
	}
	if buyerBroker == sellerBroker {
		return nil, nil
	}

	buyerBrokerBase, err := s.accounts.GetByUserCurrency(ctx, buyerBroker, instrument.BaseCurrency)
	if err != nil {
		return nil, err
	}
	buyerBrokerQuote, err := s.accounts.GetByUserCurrency(ctx, buyerBroker, instrument.QuoteCurrency)
	if err != nil {
		return nil, err
	}
	sellerBrokerBase, err := s.accounts.GetByUserCurrency(ctx, sellerBroker, instrument.BaseCurrency)
	if err != nil {
		return nil, err
	}
	sellerBrokerQuote, err := s.accounts.GetByUserCurrency(ctx, sellerBroker, instrument.QuoteCurrency)
	if err != nil {
		return nil, err
	}
	if buyerBrokerBase == nil || buyerBrokerQuote == nil || sellerBrokerBase == nil || sellerBrokerQuote == nil {
		return nil, domain.NewError(domain.ErrCodeBrokerBaseAccountNotFound, "broker settlement account missing").With("trade_id", trade.ID)
	}

	_, quoteEvents, err := s.ledger.Transfer(ctx, buyerBrokerQuote, sellerBrokerQuote,
		trade.Quantity.Mul(trade.Price),
		fmt.Sprintf("%s buyer broker quote account > seller broker quote account", trade.Describe()))
	if err != nil {
		return nil, err
	}
	_, baseEvents, err := s.ledger.Transfer(ctx, sellerBrokerBase, buyerBrokerBase,
		trade.Quantity,
		fmt.Sprintf("%s seller broker base account > buyer broker base account", trade.Describe()))
	if err != nil {
		return nil, err
	}
	return append(quoteEvents, baseEvents...), nil
}

// FindAndCloseOrders 清扫可平仓挂单
// 已全部成交的订单完结，未能立即成交完的 IOC 订单撤销。
func (s *MatchingService) FindAndCloseOrders(ctx context.Context) error {
	sweepable, err := s.orders.FindSweepable(ctx)
	if err != nil {
		return err
	}
	for _, order := range sweepable {
		status, message := domain.OrderStatusCompleted, "completely filled"
		if !order.IsFilled() {
			status, message = domain.OrderStatusCancelled, "partially filled ioc"
		}
		if _, err := s.lifecycle.CloseOrder(ctx, CloseOrderCommand{OrderID: order.ID, Status: status, Message: message}); err != nil {
			return err
		}
	}
	return nil
}
