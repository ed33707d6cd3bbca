package application

import (
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
)

// CreateCurrencyCommand 创建币种命令
type CreateCurrencyCommand struct {
	Code      string              `json:"code" binding:"required"`
	Type      domain.CurrencyType `json:"type" binding:"required"`
	Precision int32               `json:"precision"`
}

// CreateInstrumentCommand 创建交易品种命令
type CreateInstrumentCommand struct {
	InstrumentID      string          `json:"instrument_id"`
	BaseCurrency      string          `json:"base_currency" binding:"required"`
	QuoteCurrency     string          `json:"quote_currency" binding:"required"`
	QuantityIncrement decimal.Decimal `json:"quantity_increment" binding:"required"`
}

// CreateUserCommand 创建用户命令
// BrokerID 为空表示创建经纪商用户。
type CreateUserCommand struct {
	Username     string `json:"username" binding:"required"`
	PasswordHash string `json:"password_hash"`
	BrokerID     string `json:"broker_id"`
}

// OpenOrderCommand 下单命令
// 市价单可不带价格，价格由对手盘加权均价估算。
type OpenOrderCommand struct {
	UserID       string             `json:"user_id" binding:"required"`
	InstrumentID string             `json:"instrument_id" binding:"required"`
	Type         domain.OrderType   `json:"type" binding:"required"`
	Side         domain.OrderSide   `json:"side" binding:"required"`
	TimeInForce  domain.TimeInForce `json:"time_in_force" binding:"required"`
	Price        decimal.Decimal    `json:"price"`
	Quantity     decimal.Decimal    `json:"quantity" binding:"required"`
}

// CloseOrderCommand 平仓命令
// Status 必须为终态，Message 记录平仓原因。
type CloseOrderCommand struct {
	OrderID string             `json:"order_id" binding:"required"`
	Status  domain.OrderStatus `json:"status" binding:"required"`
	Message string             `json:"message"`
}

// DepositCommand 账户入金命令
type DepositCommand struct {
	AccountID string          `json:"account_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

// VWAPQuery 加权均价估算查询
type VWAPQuery struct {
	InstrumentID string
	Side         domain.OrderSide
	Volume       decimal.Decimal
	ExcludeUsers []string
}
