package domain

import "time"

// 事件主题，同时作为 Kafka topic 与进程内分发的路由键。
const (
	OrderOpenedEventType      = "exchange.order.opened"
	OrderTradedEventType      = "exchange.order.traded"
	OrderClosedEventType      = "exchange.order.closed"
	AccountCreatedEventType   = "exchange.account.created"
	AccountUpdatedEventType   = "exchange.account.updated"
	TransferCreatedEventType  = "exchange.transfer.created"
	OrderbookUpdatedEventType = "exchange.orderbook.updated"
	TickerUpdatedEventType    = "exchange.ticker.updated"
)

// Event 领域事件信封
// 事务提交前写入 Outbox，提交后按产生顺序分发给进程内订阅者。
type Event struct {
	Topic      string
	Key        string
	Payload    any
	OccurredOn time.Time
}

// NewEvent 创建事件信封
func NewEvent(topic, key string, payload any) Event {
	return Event{Topic: topic, Key: key, Payload: payload, OccurredOn: time.Now()}
}

// OrderOpenedEvent 挂单已受理
type OrderOpenedEvent struct {
	Order      *Order    `json:"order"`
	OccurredOn time.Time `json:"occurred_on"`
}

// OrderTradedEvent 订单产生一笔成交
type OrderTradedEvent struct {
	Order      *Order      `json:"order"`
	Trade      *OrderTrade `json:"trade"`
	OccurredOn time.Time   `json:"occurred_on"`
}

// OrderClosedEvent 订单已平仓归档
type OrderClosedEvent struct {
	Order      *ClosedOrder `json:"order"`
	OccurredOn time.Time    `json:"occurred_on"`
}

// AccountCreatedEvent 账户已创建
type AccountCreatedEvent struct {
	Account    *Account  `json:"account"`
	OccurredOn time.Time `json:"occurred_on"`
}

// AccountUpdatedEvent 账户余额已变更
type AccountUpdatedEvent struct {
	Account    *Account  `json:"account"`
	OccurredOn time.Time `json:"occurred_on"`
}

// TransferCreatedEvent 转账流水已生成
type TransferCreatedEvent struct {
	Transfer   *AccountTransfer `json:"transfer"`
	OccurredOn time.Time        `json:"occurred_on"`
}

// OrderbookUpdatedEvent 订单簿已重建
type OrderbookUpdatedEvent struct {
	Orderbook  *Orderbook `json:"orderbook"`
	OccurredOn time.Time  `json:"occurred_on"`
}

// TickerUpdatedEvent 最优报价已变化
type TickerUpdatedEvent struct {
	Ticker     *Ticker   `json:"ticker"`
	OccurredOn time.Time `json:"occurred_on"`
}
