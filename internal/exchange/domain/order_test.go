package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestOrder(side OrderSide, price, quantity string) *Order {
	return &Order{
		ID:           "ORD-1",
		InstrumentID: "BTCUSD",
		Side:         side,
		Type:         OrderTypeLimit,
		TimeInForce:  TimeInForceGTC,
		Price:        decimal.RequireFromString(price),
		Quantity:     decimal.RequireFromString(quantity),
		Status:       OrderStatusNew,
	}
}

func TestOrderHoldAmount(t *testing.T) {
	sell := newTestOrder(OrderSideSell, "30000", "0.05")
	assert.True(t, sell.HoldAmount().Equal(decimal.RequireFromString("0.05")))

	buy := newTestOrder(OrderSideBuy, "30000", "0.05")
	assert.True(t, buy.HoldAmount().Equal(decimal.RequireFromString("1500")))
}

func TestOrderApplyFillAndSettlementAmounts(t *testing.T) {
	sell := newTestOrder(OrderSideSell, "30000", "0.05")
	sell.ApplyFill(decimal.RequireFromString("0.01"), decimal.RequireFromString("30000"))

	assert.Equal(t, OrderStatusTrading, sell.Status)
	assert.True(t, sell.RemainingQuantity().Equal(decimal.RequireFromString("0.04")))
	assert.False(t, sell.IsFilled())
	// 卖单：释放剩余基础币，结算已成交计价币
	assert.True(t, sell.ReleaseAmount().Equal(decimal.RequireFromString("0.04")))
	assert.True(t, sell.PayoutAmount().Equal(decimal.RequireFromString("300")))

	buy := newTestOrder(OrderSideBuy, "30000", "0.01")
	buy.ApplyFill(decimal.RequireFromString("0.01"), decimal.RequireFromString("29000"))

	assert.True(t, buy.IsFilled())
	// 买单：释放未花完的计价币（按挂单价冻结，按对手价成交）
	assert.True(t, buy.ReleaseAmount().Equal(decimal.RequireFromString("10")))
	assert.True(t, buy.PayoutAmount().Equal(decimal.RequireFromString("0.01")))
}

func TestOrderSideOpposite(t *testing.T) {
	assert.Equal(t, OrderSideSell, OrderSideBuy.Opposite())
	assert.Equal(t, OrderSideBuy, OrderSideSell.Opposite())
}

func TestOrderStatusIsTerminal(t *testing.T) {
	assert.False(t, OrderStatusNew.IsTerminal())
	assert.False(t, OrderStatusTrading.IsTerminal())
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusRejected.IsTerminal())
}
