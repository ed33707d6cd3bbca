package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
)

const snapshotTTL = 5 * time.Minute

// marketDataRedisRepository 行情快照仓储实现
// 订单簿与最优报价以 JSON 存入 Redis，带 TTL 防止引擎停写后读到僵尸数据。
type marketDataRedisRepository struct {
	client redis.UniversalClient
}

// NewMarketDataRepository 创建行情快照仓储
func NewMarketDataRepository(client redis.UniversalClient) domain.MarketDataSnapshotRepository {
	return &marketDataRedisRepository{client: client}
}

func orderbookKey(instrumentID string) string {
	return fmt.Sprintf("exchange:orderbook:%s", instrumentID)
}

func tickerKey(instrumentID string) string {
	return fmt.Sprintf("exchange:ticker:%s", instrumentID)
}

// SaveOrderbook 写入订单簿快照
func (r *marketDataRedisRepository) SaveOrderbook(ctx context.Context, orderbook *domain.Orderbook) error {
	data, err := json.Marshal(orderbook)
	if err != nil {
		return fmt.Errorf("marshal orderbook: %w", err)
	}
	return r.client.Set(ctx, orderbookKey(orderbook.InstrumentID), data, snapshotTTL).Err()
}

// GetOrderbook 读取订单簿快照，不存在时返回 nil
func (r *marketDataRedisRepository) GetOrderbook(ctx context.Context, instrumentID string) (*domain.Orderbook, error) {
	data, err := r.client.Get(ctx, orderbookKey(instrumentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var orderbook domain.Orderbook
	if err := json.Unmarshal(data, &orderbook); err != nil {
		return nil, fmt.Errorf("unmarshal orderbook: %w", err)
	}
	return &orderbook, nil
}

// SaveTicker 写入最优报价快照
func (r *marketDataRedisRepository) SaveTicker(ctx context.Context, ticker *domain.Ticker) error {
	data, err := json.Marshal(ticker)
	if err != nil {
		return fmt.Errorf("marshal ticker: %w", err)
	}
	return r.client.Set(ctx, tickerKey(ticker.InstrumentID), data, snapshotTTL).Err()
}

// GetTicker 读取最优报价快照，不存在时返回 nil
func (r *marketDataRedisRepository) GetTicker(ctx context.Context, instrumentID string) (*domain.Ticker, error) {
	data, err := r.client.Get(ctx, tickerKey(instrumentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var ticker domain.Ticker
	if err := json.Unmarshal(data, &ticker); err != nil {
		return nil, fmt.Errorf("unmarshal ticker: %w", err)
	}
	return &ticker, nil
}
