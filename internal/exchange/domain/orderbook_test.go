package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookOrder(side OrderSide, user, price, quantity string) *Order {
	o := newTestOrder(side, price, quantity)
	o.UserID = user
	return o
}

func TestBuildOrderbookAggregatesAndSorts(t *testing.T) {
	orders := []*Order{
		bookOrder(OrderSideBuy, "u1", "29900", "0.02"),
		bookOrder(OrderSideBuy, "u2", "29950", "0.01"),
		bookOrder(OrderSideSell, "u3", "30100", "0.03"),
		bookOrder(OrderSideSell, "u4", "30050", "0.04"),
	}

	book := BuildOrderbook("BTCUSD", orders)

	buys := book.BuySide()
	require.Len(t, buys, 2)
	assert.True(t, buys[0].Price.Equal(decimal.RequireFromString("29950")))
	assert.True(t, buys[1].Price.Equal(decimal.RequireFromString("29900")))

	sells := book.SellSide()
	require.Len(t, sells, 2)
	assert.True(t, sells[0].Price.Equal(decimal.RequireFromString("30050")))
	assert.True(t, sells[1].Price.Equal(decimal.RequireFromString("30100")))
}

func TestOrderbookRowReplacedBySamePriceLevel(t *testing.T) {
	book := NewOrderbook("BTCUSD")
	book.upsertRow(OrderSideBuy, decimal.RequireFromString("29900"), decimal.RequireFromString("0.02"))
	book.upsertRow(OrderSideBuy, decimal.RequireFromString("29900"), decimal.RequireFromString("0.05"))

	buys := book.BuySide()
	require.Len(t, buys, 1)
	assert.True(t, buys[0].Quantity.Equal(decimal.RequireFromString("0.05")))

	// 数量归零移除档位
	book.upsertRow(OrderSideBuy, decimal.RequireFromString("29900"), decimal.Zero)
	assert.Empty(t, book.BuySide())
}

func TestBuildOrderbookIsIdempotent(t *testing.T) {
	orders := []*Order{
		bookOrder(OrderSideBuy, "u1", "29900", "0.02"),
		bookOrder(OrderSideSell, "u2", "30100", "0.03"),
	}

	first := BuildOrderbook("BTCUSD", orders)
	second := BuildOrderbook("BTCUSD", orders)

	assert.Equal(t, first.BuySide(), second.BuySide())
	assert.Equal(t, first.SellSide(), second.SellSide())
}

func TestBuildTicker(t *testing.T) {
	orders := []*Order{
		bookOrder(OrderSideBuy, "u1", "29900", "0.02"),
		bookOrder(OrderSideBuy, "u2", "29950", "0.01"),
		bookOrder(OrderSideSell, "u3", "30100", "0.03"),
		bookOrder(OrderSideSell, "u4", "30050", "0.04"),
	}

	ticker := BuildTicker("BTCUSD", orders)
	assert.True(t, ticker.Bid.Equal(decimal.RequireFromString("29950")))
	assert.True(t, ticker.Ask.Equal(decimal.RequireFromString("30050")))

	empty := BuildTicker("BTCUSD", nil)
	assert.True(t, empty.Bid.IsZero())
	assert.True(t, empty.Ask.IsZero())
}

func TestTickerEqualComparesBothSides(t *testing.T) {
	base := &Ticker{Bid: decimal.RequireFromString("100"), Ask: decimal.RequireFromString("101")}

	sameAskOnly := &Ticker{Bid: decimal.RequireFromString("99"), Ask: decimal.RequireFromString("101")}
	assert.False(t, base.Equal(sameAskOnly))

	sameBidOnly := &Ticker{Bid: decimal.RequireFromString("100"), Ask: decimal.RequireFromString("102")}
	assert.False(t, base.Equal(sameBidOnly))

	identical := &Ticker{Bid: decimal.RequireFromString("100"), Ask: decimal.RequireFromString("101")}
	assert.True(t, base.Equal(identical))
}

func TestVWAP(t *testing.T) {
	orders := []*Order{
		bookOrder(OrderSideSell, "u1", "30000", "0.02"),
		bookOrder(OrderSideSell, "u2", "30100", "0.02"),
		bookOrder(OrderSideSell, "u3", "29900", "0.01"),
	}

	// 买方吃卖档：29900*0.01 + 30000*0.02 + 30100*0.01 = 1200
	result, err := VWAP(orders, "BTCUSD", OrderSideBuy, decimal.RequireFromString("0.04"), nil)
	require.NoError(t, err)
	assert.True(t, result.Volume.Equal(decimal.RequireFromString("0.04")))
	assert.True(t, result.Price.Equal(decimal.RequireFromString("30000")))
}

func TestVWAPExcludesUsersAndPartialLiquidity(t *testing.T) {
	orders := []*Order{
		bookOrder(OrderSideSell, "u1", "30000", "0.02"),
		bookOrder(OrderSideSell, "u2", "31000", "0.01"),
	}

	result, err := VWAP(orders, "BTCUSD", OrderSideBuy, decimal.RequireFromString("0.05"), []string{"u1"})
	require.NoError(t, err)
	// u1 被排除，流动性只剩 0.01
	assert.True(t, result.Volume.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, result.Price.Equal(decimal.RequireFromString("31000")))

	empty, err := VWAP(nil, "BTCUSD", OrderSideBuy, decimal.RequireFromString("1"), nil)
	require.NoError(t, err)
	assert.True(t, empty.Price.IsZero())
	assert.True(t, empty.Volume.IsZero())
}

func TestVWAPRejectsNonPositiveVolume(t *testing.T) {
	_, err := VWAP(nil, "BTCUSD", OrderSideBuy, decimal.Zero, nil)
	assert.True(t, IsCode(err, ErrCodePositiveVolumeExpected))
}
