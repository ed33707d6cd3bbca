package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Instrument 交易品种
// 一个品种由基础币种与计价币种构成，QuantityIncrement 为数量步长。
type Instrument struct {
	ID                string
	BaseCurrency      string
	QuoteCurrency     string
	QuantityIncrement decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsValidQuantity 校验数量是否为步长的整数倍
// 允许二进制小数带来的极小误差：商按一位小数四舍五入后与其上取整比较。
func (i *Instrument) IsValidQuantity(quantity decimal.Decimal) bool {
	if i.QuantityIncrement.GreaterThan(quantity) {
		return false
	}
	div := quantity.Div(i.QuantityIncrement).Round(1)
	return div.Equal(div.Ceil())
}

// InstrumentRepository 品种仓储接口
type InstrumentRepository interface {
	Save(ctx context.Context, instrument *Instrument) error
	Get(ctx context.Context, instrumentID string) (*Instrument, error)
	GetByCurrencies(ctx context.Context, base, quote string) (*Instrument, error)
	List(ctx context.Context) ([]*Instrument, error)
}
