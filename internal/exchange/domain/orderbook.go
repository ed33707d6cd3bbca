package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// OrderbookRow 订单簿档位，同方向同价格聚合为一行
type OrderbookRow struct {
	Side     OrderSide       `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Orderbook 聚合订单簿
// 每次挂单集合变化后由全量挂单重建，重建满足幂等。
type Orderbook struct {
	InstrumentID string         `json:"instrument_id"`
	Rows         []OrderbookRow `json:"rows"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewOrderbook 创建空订单簿
func NewOrderbook(instrumentID string) *Orderbook {
	return &Orderbook{InstrumentID: instrumentID, UpdatedAt: time.Now()}
}

// BuildOrderbook 由全量挂单重建订单簿
func BuildOrderbook(instrumentID string, orders []*Order) *Orderbook {
	book := NewOrderbook(instrumentID)
	for _, order := range orders {
		if order.InstrumentID != instrumentID {
			continue
		}
		book.upsertRow(order.Side, order.Price, order.Quantity)
	}
	return book
}

// upsertRow 按（方向，价格）定位档位并以新数量整体替换
// 数量为零时移除该档位。
func (b *Orderbook) upsertRow(side OrderSide, price, quantity decimal.Decimal) {
	for i, row := range b.Rows {
		if row.Side == side && row.Price.Equal(price) {
			if quantity.IsZero() {
				b.Rows = append(b.Rows[:i], b.Rows[i+1:]...)
			} else {
				b.Rows[i].Quantity = quantity
			}
			b.UpdatedAt = time.Now()
			return
		}
	}
	if quantity.IsZero() {
		return
	}
	b.Rows = append(b.Rows, OrderbookRow{Side: side, Price: price, Quantity: quantity})
	b.UpdatedAt = time.Now()
}

// BuySide 买档，价格从高到低，返回副本
func (b *Orderbook) BuySide() []OrderbookRow {
	return b.side(OrderSideBuy, func(a, c OrderbookRow) bool { return a.Price.GreaterThan(c.Price) })
}

// SellSide 卖档，价格从低到高，返回副本
func (b *Orderbook) SellSide() []OrderbookRow {
	return b.side(OrderSideSell, func(a, c OrderbookRow) bool { return a.Price.LessThan(c.Price) })
}

func (b *Orderbook) side(side OrderSide, less func(a, c OrderbookRow) bool) []OrderbookRow {
	rows := make([]OrderbookRow, 0, len(b.Rows))
	for _, row := range b.Rows {
		if row.Side == side {
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	return rows
}

// Ticker 最优买卖报价
// 无对应方向挂单时 Bid/Ask 为零值。
type Ticker struct {
	InstrumentID string          `json:"instrument_id"`
	Bid          decimal.Decimal `json:"bid"`
	Ask          decimal.Decimal `json:"ask"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// BuildTicker 由全量挂单计算最优买卖价
func BuildTicker(instrumentID string, orders []*Order) *Ticker {
	ticker := &Ticker{InstrumentID: instrumentID, UpdatedAt: time.Now()}
	for _, order := range orders {
		if order.InstrumentID != instrumentID {
			continue
		}
		switch order.Side {
		case OrderSideBuy:
			if ticker.Bid.IsZero() || order.Price.GreaterThan(ticker.Bid) {
				ticker.Bid = order.Price
			}
		case OrderSideSell:
			if ticker.Ask.IsZero() || order.Price.LessThan(ticker.Ask) {
				ticker.Ask = order.Price
			}
		}
	}
	return ticker
}

// Equal 买卖双边价格均相同才视为未变化
func (t *Ticker) Equal(other *Ticker) bool {
	if other == nil {
		return false
	}
	return t.Bid.Equal(other.Bid) && t.Ask.Equal(other.Ask)
}

// VWAPResult 加权均价估算结果
// Volume 为实际累计到的数量，簿内流动性不足时小于请求量。
type VWAPResult struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

// VWAP 对给定方向的吃单量做加权均价估算
// side 为吃单方向，遍历对手方向挂单：买单吃卖档（价格升序），
// 卖单吃买档（价格降序），逐档累计直到覆盖 volume，末档允许部分计入。
// excludeUsers 中用户的挂单不参与计算。
func VWAP(orders []*Order, instrumentID string, side OrderSide, volume decimal.Decimal, excludeUsers []string) (VWAPResult, error) {
	if !volume.IsPositive() {
		return VWAPResult{}, NewError(ErrCodePositiveVolumeExpected, "volume must be positive").With("volume", volume.String())
	}

	excluded := make(map[string]struct{}, len(excludeUsers))
	for _, userID := range excludeUsers {
		excluded[userID] = struct{}{}
	}

	counterSide := side.Opposite()
	candidates := make([]*Order, 0, len(orders))
	for _, order := range orders {
		if order.InstrumentID != instrumentID || order.Side != counterSide {
			continue
		}
		if _, ok := excluded[order.UserID]; ok {
			continue
		}
		candidates = append(candidates, order)
	}

	ascending := side == OrderSideBuy
	sort.SliceStable(candidates, func(i, j int) bool {
		if ascending {
			return candidates[i].Price.LessThan(candidates[j].Price)
		}
		return candidates[i].Price.GreaterThan(candidates[j].Price)
	})

	sumVolume := decimal.Zero
	sumNotional := decimal.Zero
	for _, order := range candidates {
		if sumVolume.GreaterThanOrEqual(volume) {
			break
		}
		take := decimal.Min(order.Quantity, volume.Sub(sumVolume))
		sumVolume = sumVolume.Add(take)
		sumNotional = sumNotional.Add(take.Mul(order.Price))
	}
	if sumVolume.IsZero() {
		return VWAPResult{Price: decimal.Zero, Volume: decimal.Zero}, nil
	}
	return VWAPResult{Price: sumNotional.Div(sumVolume), Volume: sumVolume}, nil
}
