package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_ExchangeOrder_RecomputeFromDetails(t *testing.T) {
	order := &ExchangeOrder{
		OrderID: "E1001",
		Symbol:  "BTC/USDT",
		Amount:  decimal.NewFromInt(10),
		// 存储的聚合值被故意写坏，重算必须覆盖它
		TradedAmount: decimal.NewFromInt(999),
		Turnover:     decimal.NewFromInt(999),
	}
	details := []*ExchangeOrderDetail{
		{OrderID: "E1001", Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(2)},
		{OrderID: "E1001", Price: decimal.NewFromInt(110), Amount: decimal.NewFromInt(3)},
	}

	order.RecomputeFromDetails(details)

	assert.True(t, order.TradedAmount.Equal(decimal.NewFromInt(5)))
	// 2*100 + 3*110
	assert.True(t, order.Turnover.Equal(decimal.NewFromInt(530)))
	assert.False(t, order.Completed())
}

func Test_ExchangeOrder_RecomputeFromDetails_Empty(t *testing.T) {
	order := &ExchangeOrder{
		OrderID:      "E1002",
		Amount:       decimal.NewFromInt(1),
		TradedAmount: decimal.NewFromInt(1),
	}

	order.RecomputeFromDetails(nil)

	assert.True(t, order.TradedAmount.IsZero())
	assert.True(t, order.Turnover.IsZero())
	assert.False(t, order.Completed())
}

func Test_ExchangeOrder_Completed(t *testing.T) {
	order := &ExchangeOrder{Amount: decimal.NewFromInt(5)}
	order.RecomputeFromDetails([]*ExchangeOrderDetail{
		{Price: decimal.NewFromInt(10), Amount: decimal.NewFromInt(5)},
	})
	assert.True(t, order.Completed())

	// 数量为零的委托单永远不算完成
	zero := &ExchangeOrder{}
	assert.False(t, zero.Completed())
}
