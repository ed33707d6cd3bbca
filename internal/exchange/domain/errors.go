package domain

import (
	"errors"
	"fmt"
)

// 业务错误码。调用方依赖错误码做分支判断，文案仅用于日志与排查。
const (
	ErrCodeInvalidQuantity            = "INVALID_QUANTITY"
	ErrCodeMarketOrderFokAndIocOnly   = "MARKET_ORDER_FOK_AND_IOC_ONLY"
	ErrCodeNotEnoughBalance           = "NOT_ENOUGH_BALANCE"
	ErrCodeOrderNotFound              = "ORDER_NOT_FOUND"
	ErrCodeNoOrderInLocalRepo         = "NO_ORDER_IN_LOCAL_REPO"
	ErrCodeCurrencyNotFound           = "CURRENCY_NOT_FOUND"
	ErrCodeInstrumentNotFound         = "INSTRUMENT_NOT_FOUND"
	ErrCodeUserNotFound               = "USER_NOT_FOUND"
	ErrCodePositiveVolumeExpected     = "POSITIVE_VOLUME_EXPECTED"
	ErrCodeAccountNotFound            = "ACCOUNT_NOT_FOUND"
	ErrCodeTraderBaseAccountNotFound  = "TRADER_BASE_ACCOUNT_NOT_FOUND"
	ErrCodeTraderQuoteAccountNotFound = "TRADER_QUOTE_ACCOUNT_NOT_FOUND"
	ErrCodeBrokerBaseAccountNotFound  = "BROKER_BASE_ACCOUNT_NOT_FOUND"
	ErrCodeBrokerQuoteAccountNotFound = "BROKER_QUOTE_ACCOUNT_NOT_FOUND"
)

// Error 领域错误
// 携带机器可读错误码与上下文字段，上下文用于日志与接口层返回。
type Error struct {
	Code    string
	Message string
	Ctx     map[string]any
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if len(e.Ctx) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s %v", e.Code, e.Message, e.Ctx)
}

// NewError 创建领域错误
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// With 附加上下文字段，返回自身便于链式调用
func (e *Error) With(key string, value any) *Error {
	if e.Ctx == nil {
		e.Ctx = make(map[string]any, 4)
	}
	e.Ctx[key] = value
	return e
}

// IsCode 判断 err 链上是否存在指定错误码的领域错误
func IsCode(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
