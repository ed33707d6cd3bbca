package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide 订单方向
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite 返回对手方向
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType 订单类型
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// TimeInForce 订单有效方式
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "gtc" // 撤单前有效
	TimeInForceIOC TimeInForce = "ioc" // 立即成交剩余撤销
	TimeInForceFOK TimeInForce = "fok" // 全部成交否则撤销
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"       // 已受理未成交
	OrderStatusTrading   OrderStatus = "trading"   // 部分成交
	OrderStatusCompleted OrderStatus = "completed" // 全部成交
	OrderStatusCancelled OrderStatus = "cancelled" // 已撤销
	OrderStatusRejected  OrderStatus = "rejected"  // 已拒绝
)

// IsTerminal 是否为终态
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusRejected
}

// Order 挂单
// 下单时冻结的资金通过 HoldTransferID 指向的转账划转至经纪商账户，
// 平仓时按剩余与已成交部分分别生成 release 与 payout 转账。
type Order struct {
	ID                    string
	InstrumentID          string
	UserID                string
	Type                  OrderType
	Side                  OrderSide
	TimeInForce           TimeInForce
	Price                 decimal.Decimal
	Quantity              decimal.Decimal
	ExecutedQuantity      decimal.Decimal
	ExecutedQuoteQuantity decimal.Decimal
	Status                OrderStatus
	Message               string
	ClientBaseAccountID   string
	ClientQuoteAccountID  string
	BrokerBaseAccountID   string
	BrokerQuoteAccountID  string
	HoldTransferID        string
	ReleaseTransferID     string
	PayoutTransferID      string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// RemainingQuantity 剩余未成交数量（基础币）
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.ExecutedQuantity)
}

// IsFilled 是否已全部成交
func (o *Order) IsFilled() bool {
	return o.ExecutedQuantity.GreaterThanOrEqual(o.Quantity)
}

// ApplyFill 累计一笔成交
func (o *Order) ApplyFill(quantity, price decimal.Decimal) {
	o.Status = OrderStatusTrading
	o.ExecutedQuantity = o.ExecutedQuantity.Add(quantity)
	o.ExecutedQuoteQuantity = o.ExecutedQuoteQuantity.Add(quantity.Mul(price))
}

// HoldAmount 下单需冻结的金额及其账户对
// 卖单冻结基础币数量，买单冻结计价币名义金额。
func (o *Order) HoldAmount() decimal.Decimal {
	if o.Side == OrderSideSell {
		return o.Quantity
	}
	return o.Quantity.Mul(o.Price)
}

// ReleaseAmount 平仓需解冻的未成交部分金额
func (o *Order) ReleaseAmount() decimal.Decimal {
	if o.Side == OrderSideSell {
		return o.Quantity.Sub(o.ExecutedQuantity)
	}
	return o.Quantity.Mul(o.Price).Sub(o.ExecutedQuoteQuantity)
}

// PayoutAmount 平仓需结算给用户的已成交所得
func (o *Order) PayoutAmount() decimal.Decimal {
	if o.Side == OrderSideSell {
		return o.ExecutedQuoteQuantity
	}
	return o.ExecutedQuantity
}

// ClosedOrder 已平仓订单归档
type ClosedOrder struct {
	Order
	ClosedAt time.Time
}

// NewClosedOrder 由挂单生成归档记录
func NewClosedOrder(order *Order, status OrderStatus, message string) *ClosedOrder {
	closed := &ClosedOrder{Order: *order, ClosedAt: time.Now()}
	closed.Status = status
	closed.Message = message
	return closed
}

// OrderTrade 成交记录
type OrderTrade struct {
	ID           string
	InstrumentID string
	BuyOrderID   string
	SellOrderID  string
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	CreatedAt    time.Time
}

// Describe 成交摘要，用于跨经纪商结算转账的备注
func (t *OrderTrade) Describe() string {
	return fmt.Sprintf("trade %s %s@%s", t.ID, t.Quantity.String(), t.Price.String())
}

// OrderRepository 挂单仓储接口
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	Delete(ctx context.Context, orderID string) error
	ListOpen(ctx context.Context) ([]*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Order, int64, error)
	// FindMatching 返回与 order 可成交的对手挂单，按价格优先、时间优先排序。
	FindMatching(ctx context.Context, order *Order) ([]*Order, error)
	// FindSweepable 返回应被平仓的挂单：IOC 订单或已全部成交的订单。
	FindSweepable(ctx context.Context) ([]*Order, error)
}

// ClosedOrderRepository 平仓归档仓储接口
type ClosedOrderRepository interface {
	Save(ctx context.Context, order *ClosedOrder) error
	Get(ctx context.Context, orderID string) (*ClosedOrder, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*ClosedOrder, int64, error)
}

// TradeRepository 成交记录仓储接口
type TradeRepository interface {
	Save(ctx context.Context, trade *OrderTrade) error
	ListByOrder(ctx context.Context, orderID string) ([]*OrderTrade, error)
	ListRecent(ctx context.Context, instrumentID string, limit int) ([]*OrderTrade, error)
}
