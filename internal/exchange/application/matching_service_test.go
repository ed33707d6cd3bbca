package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
)

// 场景四：FOK 流动性不足时整单拒绝，无成交、无资金滞留
func TestFokRejectedWhenLiquidityInsufficient(t *testing.T) {
	e := newTestEngine(t)
	broker, alice, bob, instrument := e.seedMarket(t)
	e.fund(t, alice.ID, "USD", "50000")
	e.fund(t, bob.ID, "BTC", "1")

	e.mustOpen(t, limitOrder(bob.ID, instrument.ID, domain.OrderSideSell, domain.TimeInForceGTC, "30000", "0.05"))
	fok := e.mustOpen(t, limitOrder(alice.ID, instrument.ID, domain.OrderSideBuy, domain.TimeInForceFOK, "31000", "1"))

	closed, err := e.closedRepo.Get(context.Background(), fok.ID)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, domain.OrderStatusRejected, closed.Status)
	assert.Contains(t, closed.Message, "FOK")

	assert.Empty(t, e.tradesOf(t, fok.ID))

	// 冻结的 31000 USD 已全额释放
	e.assertBalance(t, alice.ID, "USD", "50000")
	e.assertBalance(t, broker.ID, "USD", "0")
	// 对手卖单原样保留
	assert.Equal(t, 1, e.openOrderCount(t))
}

// FOK 流动性充足时一轮撮合内全部成交
func TestFokFillsCompletelyInOnePass(t *testing.T) {
	e := newTestEngine(t)
	_, alice, bob, instrument := e.seedMarket(t)
	carol := e.createUser(t, "carol", bob.BrokerID)
	e.fund(t, alice.ID, "USD", "10000")
	e.fund(t, bob.ID, "BTC", "1")
	e.fund(t, carol.ID, "BTC", "1")

	e.mustOpen(t, limitOrder(bob.ID, instrument.ID, domain.OrderSideSell, domain.TimeInForceGTC, "30000", "0.03"))
	e.mustOpen(t, limitOrder(carol.ID, instrument.ID, domain.OrderSideSell, domain.TimeInForceGTC, "30100", "0.02"))
	fok := e.mustOpen(t, limitOrder(alice.ID, instrument.ID, domain.OrderSideBuy, domain.TimeInForceFOK, "30100", "0.05"))

	trades := e.tradesOf(t, fok.ID)
	require.Len(t, trades, 2)
	// 价格优先：先吃 30000，再吃 30100
	assert.True(t, trades[0].Price.Equal(decimal.RequireFromString("30000")))
	assert.True(t, trades[1].Price.Equal(decimal.RequireFromString("30100")))

	closed, err := e.closedRepo.Get(context.Background(), fok.ID)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, domain.OrderStatusCompleted, closed.Status)
	assert.True(t, closed.ExecutedQuantity.Equal(decimal.RequireFromString("0.05")))

	e.assertBalance(t, alice.ID, "BTC", "0.05")
}

// 同价位按受理先后成交
func TestPriceTimePriority(t *testing.T) {
	e := newTestEngine(t)
	_, alice, bob, instrument := e.seedMarket(t)
	carol := e.createUser(t, "carol", bob.BrokerID)
	e.fund(t, alice.ID, "USD", "1000")
	e.fund(t, bob.ID, "BTC", "1")
	e.fund(t, carol.ID, "BTC", "1")

	first := e.mustOpen(t, limitOrder(bob.ID, instrument.ID, domain.OrderSideSell, domain.TimeInForceGTC, "30000", "0.01"))
	second := e.mustOpen(t, limitOrder(carol.ID, instrument.ID, domain.OrderSideSell, domain.TimeInForceGTC, "30000", "0.01"))

	buy := e.mustOpen(t, limitOrder(alice.ID, instrument.ID, domain.OrderSideBuy, domain.TimeInForceGTC, "30000", "0.01"))

	trades := e.tradesOf(t, buy.ID)
	require.Len(t, trades, 1)
	assert.Equal(t, first.ID, trades[0].SellOrderID, "earlier order at same price trades first")

	stillOpen, err := e.orderRepo.Get(context.Background(), second.ID)
	require.NoError(t, err)
	require.NotNil(t, stillOpen)
	assert.True(t, stillOpen.ExecutedQuantity.IsZero())
}

// IOC 未能立即吃满的部分撤销
func TestIocCancelsUnfilledRemainder(t *testing.T) {
	e := newTestEngine(t)
	_, alice, bob, instrument := e.seedMarket(t)
	e.fund(t, alice.ID, "USD", "2000")
	e.fund(t, bob.ID, "BTC", "1")

	e.mustOpen(t, limitOrder(bob.ID, instrument.ID, domain.OrderSideSell, domain.TimeInForceGTC, "30000", "0.01"))
	ioc := e.mustOpen(t, limitOrder(alice.ID, instrument.ID, domain.OrderSideBuy, domain.TimeInForceIOC, "30000", "0.05"))

	trades := e.tradesOf(t, ioc.ID)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Quantity.Equal(decimal.RequireFromString("0.01")))

	closed, err := e.closedRepo.Get(context.Background(), ioc.ID)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.Equal(t, domain.OrderStatusCancelled, closed.Status)
	assert.Contains(t, closed.Message, "ioc")

	// 冻结 1500，成交花费 300，剩余 1200 释放
	e.assertBalance(t, alice.ID, "USD", "1700")
	e.assertBalance(t, alice.ID, "BTC", "0.01")
}

// 跨经纪商成交触发经纪商间资金结算
func TestCrossBrokerSettlement(t *testing.T) {
	e := newTestEngine(t)
	_, _, _, instrument := e.seedMarket(t)
	broker2 := e.createUser(t, "broker-two", "")
	dave := e.createUser(t, "dave", broker2.ID)

	alice := e.createUser(t, "alice2", e.createUser(t, "broker-one", "").ID)
	e.fund(t, alice.ID, "USD", "300")
	e.fund(t, dave.ID, "BTC", "0.01")

	e.mustOpen(t, limitOrder(alice.ID, instrument.ID, domain.OrderSideBuy, domain.TimeInForceGTC, "30000", "0.01"))
	e.mustOpen(t, limitOrder(dave.ID, instrument.ID, domain.OrderSideSell, domain.TimeInForceGTC, "30000", "0.01"))

	// 双方全部成交并完结
	assert.Equal(t, 0, e.openOrderCount(t))
	e.assertBalance(t, alice.ID, "BTC", "0.01")
	e.assertBalance(t, alice.ID, "USD", "0")
	e.assertBalance(t, dave.ID, "USD", "300")
	e.assertBalance(t, dave.ID, "BTC", "0")
}

// 资金守恒：开仓、撮合、平仓全程总量不变且无负余额
func TestFundsConservation(t *testing.T) {
	e := newTestEngine(t)
	broker, alice, bob, instrument := e.seedMarket(t)
	e.fund(t, alice.ID, "USD", "1000")
	e.fund(t, bob.ID, "BTC", "1")

	e.mustOpen(t, limitOrder(alice.ID, instrument.ID, domain.OrderSideBuy, domain.TimeInForceGTC, "30000", "0.01"))
	sell := e.mustOpen(t, limitOrder(bob.ID, instrument.ID, domain.OrderSideSell, domain.TimeInForceGTC, "29000", "0.05"))
	_, err := e.orders.CancelOrder(context.Background(), bob.ID, sell.ID, "")
	require.NoError(t, err)

	users := []string{broker.ID, alice.ID, bob.ID}
	totalBTC, totalUSD := decimal.Zero, decimal.Zero
	for _, userID := range users {
		btc := e.account(t, userID, "BTC")
		usd := e.account(t, userID, "USD")
		assert.False(t, btc.Balance.IsNegative(), "negative BTC balance for %s", userID)
		assert.False(t, usd.Balance.IsNegative(), "negative USD balance for %s", userID)
		totalBTC = totalBTC.Add(btc.Balance)
		totalUSD = totalUSD.Add(usd.Balance)
	}
	assert.True(t, totalBTC.Equal(decimal.RequireFromString("1")), "total BTC drifted to %s", totalBTC)
	assert.True(t, totalUSD.Equal(decimal.RequireFromString("1000")), "total USD drifted to %s", totalUSD)
}

// 成交数量守恒：任何订单的成交记录之和不超过订单数量
func TestQuantityConservation(t *testing.T) {
	e := newTestEngine(t)
	_, alice, bob, instrument := e.seedMarket(t)
	carol := e.createUser(t, "carol", bob.BrokerID)
	e.fund(t, alice.ID, "USD", "10000")
	e.fund(t, bob.ID, "BTC", "1")
	e.fund(t, carol.ID, "BTC", "1")

	e.mustOpen(t, limitOrder(bob.ID, instrument.ID, domain.OrderSideSell, domain.TimeInForceGTC, "30000", "0.02"))
	e.mustOpen(t, limitOrder(carol.ID, instrument.ID, domain.OrderSideSell, domain.TimeInForceGTC, "30000", "0.02"))
	buy := e.mustOpen(t, limitOrder(alice.ID, instrument.ID, domain.OrderSideBuy, domain.TimeInForceGTC, "30000", "0.03"))

	sum := decimal.Zero
	for _, trade := range e.tradesOf(t, buy.ID) {
		sum = sum.Add(trade.Quantity)
	}
	assert.True(t, sum.Equal(decimal.RequireFromString("0.03")))

	closed, err := e.closedRepo.Get(context.Background(), buy.ID)
	require.NoError(t, err)
	require.NotNil(t, closed)
	assert.True(t, closed.ExecutedQuantity.Equal(closed.Quantity))

	// carol 的订单只被吃掉差额部分
	carolOrder, err := e.orderRepo.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, carolOrder, 1)
	assert.True(t, carolOrder[0].ExecutedQuantity.Equal(decimal.RequireFromString("0.01")))
}

// 订单簿重建幂等
func TestRebuildIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	_, alice, bob, instrument := e.seedMarket(t)
	e.fund(t, alice.ID, "USD", "1000")
	e.fund(t, bob.ID, "BTC", "1")

	e.mustOpen(t, limitOrder(alice.ID, instrument.ID, domain.OrderSideBuy, domain.TimeInForceGTC, "29000", "0.01"))
	e.mustOpen(t, limitOrder(bob.ID, instrument.ID, domain.OrderSideSell, domain.TimeInForceGTC, "31000", "0.02"))

	require.NoError(t, e.marketData.Rebuild(context.Background(), instrument.ID))
	first, err := e.marketData.GetOrderbook(context.Background(), instrument.ID)
	require.NoError(t, err)

	require.NoError(t, e.marketData.Rebuild(context.Background(), instrument.ID))
	second, err := e.marketData.GetOrderbook(context.Background(), instrument.ID)
	require.NoError(t, err)

	assert.Equal(t, first.BuySide(), second.BuySide())
	assert.Equal(t, first.SellSide(), second.SellSide())

	ticker, err := e.marketData.GetTicker(context.Background(), instrument.ID)
	require.NoError(t, err)
	require.NotNil(t, ticker)
	assert.True(t, ticker.Bid.Equal(decimal.RequireFromString("29000")))
	assert.True(t, ticker.Ask.Equal(decimal.RequireFromString("31000")))
}
