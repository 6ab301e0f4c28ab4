package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func Test_TradePlate_Apply_BuyOrdering(t *testing.T) {
	plate := NewTradePlate("BTC/USDT", DirectionBuy)

	require.NoError(t, plate.Apply(d("100"), d("1")))
	require.NoError(t, plate.Apply(d("102"), d("2")))
	require.NoError(t, plate.Apply(d("101"), d("3")))

	snap := plate.Render(10)
	require.Len(t, snap.Items, 3)
	// 买盘价格降序
	assert.True(t, snap.Items[0].Price.Equal(d("102")))
	assert.True(t, snap.Items[1].Price.Equal(d("101")))
	assert.True(t, snap.Items[2].Price.Equal(d("100")))
	assert.True(t, plate.BestPrice().Equal(d("102")))
}

func Test_TradePlate_Apply_SellOrdering(t *testing.T) {
	plate := NewTradePlate("BTC/USDT", DirectionSell)

	require.NoError(t, plate.Apply(d("102"), d("1")))
	require.NoError(t, plate.Apply(d("100"), d("2")))
	require.NoError(t, plate.Apply(d("101"), d("3")))

	snap := plate.Render(10)
	require.Len(t, snap.Items, 3)
	// 卖盘价格升序
	assert.True(t, snap.Items[0].Price.Equal(d("100")))
	assert.True(t, snap.Items[1].Price.Equal(d("101")))
	assert.True(t, snap.Items[2].Price.Equal(d("102")))
	assert.True(t, plate.BestPrice().Equal(d("100")))
}

func Test_TradePlate_Apply_MergesSamePrice(t *testing.T) {
	plate := NewTradePlate("BTC/USDT", DirectionBuy)

	require.NoError(t, plate.Apply(d("100"), d("1")))
	require.NoError(t, plate.Apply(d("100"), d("2.5")))

	assert.Equal(t, 1, plate.Depth())
	snap := plate.Render(1)
	assert.True(t, snap.Items[0].Amount.Equal(d("3.5")))
}

func Test_TradePlate_Apply_ZeroRemovesLevel(t *testing.T) {
	plate := NewTradePlate("BTC/USDT", DirectionBuy)

	require.NoError(t, plate.Apply(d("100"), d("2")))
	require.NoError(t, plate.Apply(d("100"), d("-2")))

	assert.Equal(t, 0, plate.Depth())
}

func Test_TradePlate_Apply_NegativeAggregate(t *testing.T) {
	plate := NewTradePlate("BTC/USDT", DirectionBuy)

	require.NoError(t, plate.Apply(d("100"), d("2")))
	err := plate.Apply(d("100"), d("-3"))
	require.ErrorIs(t, err, ErrNegativeAmount)
	// 被破坏的档位必须被移除
	assert.Equal(t, 0, plate.Depth())
}

func Test_TradePlate_Apply_NegativeDeltaOnMissingLevel(t *testing.T) {
	plate := NewTradePlate("BTC/USDT", DirectionSell)

	err := plate.Apply(d("100"), d("-1"))
	require.ErrorIs(t, err, ErrNegativeAmount)
	assert.Equal(t, 0, plate.Depth())
}

func Test_TradePlate_Render_DepthPrefix(t *testing.T) {
	plate := NewTradePlate("BTC/USDT", DirectionBuy)
	for _, p := range []string{"100", "101", "102", "103", "104"} {
		require.NoError(t, plate.Apply(d(p), d("1")))
	}

	shallow := plate.Render(2)
	deep := plate.Render(4)

	require.Len(t, shallow.Items, 2)
	require.Len(t, deep.Items, 4)
	// 浅档必须是深档的前缀
	for i, item := range shallow.Items {
		assert.True(t, item.Price.Equal(deep.Items[i].Price))
	}
	assert.True(t, shallow.TotalAmount.Equal(d("2")))
	assert.True(t, deep.TotalAmount.Equal(d("4")))
	assert.True(t, shallow.HighestPrice.Equal(d("104")))
	assert.True(t, shallow.LowestPrice.Equal(d("103")))
}

func Test_TradePlate_Render_DoesNotMutate(t *testing.T) {
	plate := NewTradePlate("BTC/USDT", DirectionBuy)
	require.NoError(t, plate.Apply(d("100"), d("1")))
	require.NoError(t, plate.Apply(d("101"), d("1")))

	_ = plate.Render(1)
	assert.Equal(t, 2, plate.Depth())
}

func Test_TradePlate_Snapshot_Isolated(t *testing.T) {
	plate := NewTradePlate("BTC/USDT", DirectionBuy)
	require.NoError(t, plate.Apply(d("100"), d("1")))

	snap := plate.Snapshot()
	require.NoError(t, plate.Apply(d("101"), d("1")))

	assert.Equal(t, 1, snap.Depth())
	assert.Equal(t, 2, plate.Depth())
}
