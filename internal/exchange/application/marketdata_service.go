package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
	"github.com/wyfcoding/pkg/messagequeue"
)

// MarketDataService 行情服务
// 在 OrderOpened/OrderClosed 之后由全量挂单缓存重建订单簿与最优报价，
// 内存为权威视图，Redis 快照与行情事件为派生产物。
type MarketDataService struct {
	lifecycle   *OrderService
	instruments domain.InstrumentRepository
	snapshots   domain.MarketDataSnapshotRepository
	publisher   messagequeue.EventPublisher
	logger      *slog.Logger

	mu      sync.RWMutex
	books   map[string]*domain.Orderbook
	tickers map[string]*domain.Ticker
}

// NewMarketDataService 创建行情服务
// snapshots 与 publisher 允许为空，为空时仅维护内存视图。
func NewMarketDataService(
	lifecycle *OrderService,
	instruments domain.InstrumentRepository,
	snapshots domain.MarketDataSnapshotRepository,
	publisher messagequeue.EventPublisher,
	logger *slog.Logger,
) *MarketDataService {
	return &MarketDataService{
		lifecycle:   lifecycle,
		instruments: instruments,
		snapshots:   snapshots,
		publisher:   publisher,
		logger:      logger.With("module", "marketdata"),
		books:       make(map[string]*domain.Orderbook),
		tickers:     make(map[string]*domain.Ticker),
	}
}

// Bootstrap 启动时为所有品种构建初始视图
func (s *MarketDataService) Bootstrap(ctx context.Context) error {
	instruments, err := s.instruments.List(ctx)
	if err != nil {
		return err
	}
	for _, instrument := range instruments {
		if err := s.Rebuild(ctx, instrument.ID); err != nil {
			return err
		}
	}
	return nil
}

// HandleEvent 进程内事件入口
// 挂单集合变化后重建对应品种的订单簿与报价。
func (s *MarketDataService) HandleEvent(ctx context.Context, event domain.Event) error {
	var instrumentID string
	switch payload := event.Payload.(type) {
	case domain.OrderOpenedEvent:
		instrumentID = payload.Order.InstrumentID
	case domain.OrderClosedEvent:
		instrumentID = payload.Order.InstrumentID
	default:
		return nil
	}
	return s.Rebuild(ctx, instrumentID)
}

// Rebuild 由挂单缓存重建品种的订单簿与最优报价
// 重建是全量的，天然幂等；报价仅在买卖任一侧变化时对外发布。
func (s *MarketDataService) Rebuild(ctx context.Context, instrumentID string) error {
	snapshot := s.lifecycle.OpenOrdersSnapshot()
	book := domain.BuildOrderbook(instrumentID, snapshot)
	ticker := domain.BuildTicker(instrumentID, snapshot)

	s.mu.Lock()
	previous := s.tickers[instrumentID]
	s.books[instrumentID] = book
	s.tickers[instrumentID] = ticker
	s.mu.Unlock()

	if s.snapshots != nil {
		if err := s.snapshots.SaveOrderbook(ctx, book); err != nil {
			s.logger.WarnContext(ctx, "failed to snapshot orderbook", "instrument_id", instrumentID, "error", err)
		}
		if err := s.snapshots.SaveTicker(ctx, ticker); err != nil {
			s.logger.WarnContext(ctx, "failed to snapshot ticker", "instrument_id", instrumentID, "error", err)
		}
	}

	if s.publisher != nil {
		now := time.Now()
		if err := s.publisher.Publish(ctx, domain.OrderbookUpdatedEventType, instrumentID,
			domain.OrderbookUpdatedEvent{Orderbook: book, OccurredOn: now}); err != nil {
			return err
		}
		if !ticker.Equal(previous) {
			if err := s.publisher.Publish(ctx, domain.TickerUpdatedEventType, instrumentID,
				domain.TickerUpdatedEvent{Ticker: ticker, OccurredOn: now}); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetOrderbook 查询订单簿，内存缺失时回退到快照
func (s *MarketDataService) GetOrderbook(ctx context.Context, instrumentID string) (*domain.Orderbook, error) {
	s.mu.RLock()
	book, ok := s.books[instrumentID]
	s.mu.RUnlock()
	if ok {
		return book, nil
	}
	if s.snapshots != nil {
		return s.snapshots.GetOrderbook(ctx, instrumentID)
	}
	return nil, nil
}

// GetTicker 查询最优报价，内存缺失时回退到快照
func (s *MarketDataService) GetTicker(ctx context.Context, instrumentID string) (*domain.Ticker, error) {
	s.mu.RLock()
	ticker, ok := s.tickers[instrumentID]
	s.mu.RUnlock()
	if ok {
		return ticker, nil
	}
	if s.snapshots != nil {
		return s.snapshots.GetTicker(ctx, instrumentID)
	}
	return nil, nil
}
