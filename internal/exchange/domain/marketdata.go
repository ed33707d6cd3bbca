package domain

import "context"

// MarketDataSnapshotRepository 行情快照仓储接口
// 订单簿与最优报价的读侧快照，供容忍短暂陈旧的读取方使用。
type MarketDataSnapshotRepository interface {
	SaveOrderbook(ctx context.Context, orderbook *Orderbook) error
	GetOrderbook(ctx context.Context, instrumentID string) (*Orderbook, error)
	SaveTicker(ctx context.Context, ticker *Ticker) error
	GetTicker(ctx context.Context, instrumentID string) (*Ticker, error)
}
