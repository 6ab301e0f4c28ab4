package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTrade(price, amount string, ts int64) *ExchangeTrade {
	return &ExchangeTrade{
		Symbol:    "BTC/USDT",
		Price:     decimal.RequireFromString(price),
		Amount:    decimal.RequireFromString(amount),
		Direction: DirectionBuy,
		Time:      ts,
	}
}

func Test_Period_Align(t *testing.T) {
	oneMin, err := ParsePeriod("1min")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, base, oneMin.Align(base))
	assert.Equal(t, base, oneMin.Align(base+30_000))
	assert.Equal(t, base, oneMin.Align(base+59_999))
	assert.Equal(t, base+60_000, oneMin.Align(base+60_000))
}

func Test_ParsePeriod_Unknown(t *testing.T) {
	_, err := ParsePeriod("3min")
	assert.Error(t, err)
}

func Test_ParsePeriods(t *testing.T) {
	periods, err := ParsePeriods([]string{"1min", "1hour", "1day"})
	require.NoError(t, err)
	require.Len(t, periods, 3)
	assert.Equal(t, time.Minute, periods[0].Duration)
	assert.Equal(t, 24*time.Hour, periods[2].Duration)
}

func Test_KLine_OpenAndUpdate(t *testing.T) {
	oneMin, err := ParsePeriod("1min")
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli()
	k := NewKLine("BTC/USDT", oneMin, testTrade("10", "1", base))

	assert.Equal(t, base, k.Time)
	assert.True(t, k.OpenPrice.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, int64(1), k.Count)

	k.Update(testTrade("12", "2", base+10_000))
	k.Update(testTrade("9", "1", base+20_000))

	assert.True(t, k.OpenPrice.Equal(decimal.NewFromInt(10)))
	assert.True(t, k.HighestPrice.Equal(decimal.NewFromInt(12)))
	assert.True(t, k.LowestPrice.Equal(decimal.NewFromInt(9)))
	assert.True(t, k.ClosePrice.Equal(decimal.NewFromInt(9)))
	assert.True(t, k.Volume.Equal(decimal.NewFromInt(4)))
	// 10*1 + 12*2 + 9*1
	assert.True(t, k.Turnover.Equal(decimal.NewFromInt(43)))
	assert.Equal(t, int64(3), k.Count)
}
