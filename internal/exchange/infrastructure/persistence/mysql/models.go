package mysql

import (
	"time"

	"gorm.io/gorm"
)

// CurrencyModel 币种数据库模型
type CurrencyModel struct {
	gorm.Model
	Code      string `gorm:"type:varchar(16);uniqueIndex;not null;comment:币种符号"`
	Type      string `gorm:"type:varchar(16);not null;comment:币种类型 fiat/crypto"`
	Precision int32  `gorm:"not null;default:8;comment:精度"`
}

// TableName 指定表名
func (CurrencyModel) TableName() string {
	return "currencies"
}

// UserModel 用户数据库模型
type UserModel struct {
	gorm.Model
	UserID       string `gorm:"type:varchar(64);uniqueIndex;not null;comment:用户ID"`
	Username     string `gorm:"type:varchar(64);uniqueIndex;not null;comment:用户名"`
	PasswordHash string `gorm:"type:varchar(128);comment:密码哈希"`
	BrokerID     string `gorm:"type:varchar(64);index;comment:所属经纪商用户ID"`
}

// TableName 指定表名
func (UserModel) TableName() string {
	return "users"
}

// InstrumentModel 交易品种数据库模型
type InstrumentModel struct {
	gorm.Model
	InstrumentID      string `gorm:"type:varchar(32);uniqueIndex;not null;comment:品种ID"`
	BaseCurrency      string `gorm:"type:varchar(16);not null;index:idx_instrument_currencies;comment:基础币种"`
	QuoteCurrency     string `gorm:"type:varchar(16);not null;index:idx_instrument_currencies;comment:计价币种"`
	QuantityIncrement string `gorm:"type:decimal(32,18);not null;comment:数量步长"`
}

// TableName 指定表名
func (InstrumentModel) TableName() string {
	return "instruments"
}

// AccountModel 资金账户数据库模型
type AccountModel struct {
	gorm.Model
	AccountID string `gorm:"type:varchar(64);uniqueIndex;not null;comment:账户ID"`
	UserID    string `gorm:"type:varchar(64);not null;uniqueIndex:idx_account_user_currency;comment:用户ID"`
	Currency  string `gorm:"type:varchar(16);not null;uniqueIndex:idx_account_user_currency;comment:币种"`
	Balance   string `gorm:"type:decimal(32,18);not null;default:0;comment:余额"`
}

// TableName 指定表名
func (AccountModel) TableName() string {
	return "accounts"
}

// TransferModel 转账流水数据库模型
type TransferModel struct {
	gorm.Model
	TransferID       string `gorm:"type:varchar(64);uniqueIndex;not null;comment:转账ID"`
	SrcAccountID     string `gorm:"type:varchar(64);not null;index;comment:转出账户"`
	DstAccountID     string `gorm:"type:varchar(64);not null;index;comment:转入账户"`
	SrcBalanceBefore string `gorm:"type:decimal(32,18);not null;comment:转出方转账前余额"`
	DstBalanceBefore string `gorm:"type:decimal(32,18);not null;comment:转入方转账前余额"`
	Amount           string `gorm:"type:decimal(32,18);not null;comment:转账金额"`
	Description      string `gorm:"type:varchar(255);comment:备注"`
}

// TableName 指定表名
func (TransferModel) TableName() string {
	return "account_transfers"
}

// OrderModel 挂单数据库模型
type OrderModel struct {
	gorm.Model
	OrderID               string `gorm:"type:varchar(64);uniqueIndex;not null;comment:订单ID"`
	InstrumentID          string `gorm:"type:varchar(32);not null;index;comment:品种ID"`
	UserID                string `gorm:"type:varchar(64);not null;index;comment:用户ID"`
	Type                  string `gorm:"type:varchar(16);not null;comment:订单类型 limit/market"`
	Side                  string `gorm:"type:varchar(8);not null;index:idx_order_matching;comment:方向 buy/sell"`
	TimeInForce           string `gorm:"type:varchar(8);not null;comment:有效方式 gtc/ioc/fok"`
	Price                 string `gorm:"type:decimal(32,18);not null;comment:价格"`
	Quantity              string `gorm:"type:decimal(32,18);not null;comment:数量"`
	ExecutedQuantity      string `gorm:"type:decimal(32,18);not null;default:0;comment:已成交数量"`
	ExecutedQuoteQuantity string `gorm:"type:decimal(32,18);not null;default:0;comment:已成交计价币金额"`
	Status                string `gorm:"type:varchar(16);not null;comment:状态"`
	Message               string `gorm:"type:varchar(255);comment:状态说明"`
	ClientBaseAccountID   string `gorm:"type:varchar(64);not null;comment:用户基础币账户"`
	ClientQuoteAccountID  string `gorm:"type:varchar(64);not null;comment:用户计价币账户"`
	BrokerBaseAccountID   string `gorm:"type:varchar(64);not null;comment:经纪商基础币账户"`
	BrokerQuoteAccountID  string `gorm:"type:varchar(64);not null;comment:经纪商计价币账户"`
	HoldTransferID        string `gorm:"type:varchar(64);comment:冻结转账ID"`
	ReleaseTransferID     string `gorm:"type:varchar(64);comment:解冻转账ID"`
	PayoutTransferID      string `gorm:"type:varchar(64);comment:结算转账ID"`
}

// TableName 指定表名
func (OrderModel) TableName() string {
	return "orders"
}

// ClosedOrderModel 平仓订单归档数据库模型
type ClosedOrderModel struct {
	gorm.Model
	OrderID               string    `gorm:"type:varchar(64);uniqueIndex;not null;comment:订单ID"`
	InstrumentID          string    `gorm:"type:varchar(32);not null;index;comment:品种ID"`
	UserID                string    `gorm:"type:varchar(64);not null;index;comment:用户ID"`
	Type                  string    `gorm:"type:varchar(16);not null;comment:订单类型"`
	Side                  string    `gorm:"type:varchar(8);not null;comment:方向"`
	TimeInForce           string    `gorm:"type:varchar(8);not null;comment:有效方式"`
	Price                 string    `gorm:"type:decimal(32,18);not null;comment:价格"`
	Quantity              string    `gorm:"type:decimal(32,18);not null;comment:数量"`
	ExecutedQuantity      string    `gorm:"type:decimal(32,18);not null;default:0;comment:已成交数量"`
	ExecutedQuoteQuantity string    `gorm:"type:decimal(32,18);not null;default:0;comment:已成交计价币金额"`
	Status                string    `gorm:"type:varchar(16);not null;comment:终态"`
	Message               string    `gorm:"type:varchar(255);comment:平仓原因"`
	ClientBaseAccountID   string    `gorm:"type:varchar(64);not null;comment:用户基础币账户"`
	ClientQuoteAccountID  string    `gorm:"type:varchar(64);not null;comment:用户计价币账户"`
	BrokerBaseAccountID   string    `gorm:"type:varchar(64);not null;comment:经纪商基础币账户"`
	BrokerQuoteAccountID  string    `gorm:"type:varchar(64);not null;comment:经纪商计价币账户"`
	HoldTransferID        string    `gorm:"type:varchar(64);comment:冻结转账ID"`
	ReleaseTransferID     string    `gorm:"type:varchar(64);comment:解冻转账ID"`
	PayoutTransferID      string    `gorm:"type:varchar(64);comment:结算转账ID"`
	OpenedAt              time.Time `gorm:"comment:受理时间"`
	ClosedAt              time.Time `gorm:"index;comment:平仓时间"`
}

// TableName 指定表名
func (ClosedOrderModel) TableName() string {
	return "closed_orders"
}

// TradeModel 成交记录数据库模型
type TradeModel struct {
	gorm.Model
	TradeID      string `gorm:"type:varchar(64);uniqueIndex;not null;comment:成交ID"`
	InstrumentID string `gorm:"type:varchar(32);not null;index;comment:品种ID"`
	BuyOrderID   string `gorm:"type:varchar(64);not null;index;comment:买方订单ID"`
	SellOrderID  string `gorm:"type:varchar(64);not null;index;comment:卖方订单ID"`
	Quantity     string `gorm:"type:decimal(32,18);not null;comment:成交数量"`
	Price        string `gorm:"type:decimal(32,18);not null;comment:成交价格"`
}

// TableName 指定表名
func (TradeModel) TableName() string {
	return "order_trades"
}
