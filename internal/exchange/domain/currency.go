package domain

import (
	"context"
	"time"
)

// CurrencyType 币种类型
type CurrencyType string

const (
	CurrencyTypeFiat   CurrencyType = "fiat"   // 法币
	CurrencyTypeCrypto CurrencyType = "crypto" // 加密货币
)

// Currency 币种
// Code 即币种符号（如 BTC、USD），同时作为账户的币种外键。
type Currency struct {
	ID        uint
	Code      string
	Type      CurrencyType
	Precision int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrencyRepository 币种仓储接口
type CurrencyRepository interface {
	Save(ctx context.Context, currency *Currency) error
	GetByCode(ctx context.Context, code string) (*Currency, error)
	List(ctx context.Context) ([]*Currency, error)
}
