package domain

import (
	"github.com/shopspring/decimal"
)

// CoinThumb 交易对的滚动 24 小时简况。由处理器在每笔成交上增量更新，
// 周期性地用历史 K 线重算基准（近似滑动窗口，不做精确逐笔淘汰）。
type CoinThumb struct {
	Symbol string `json:"symbol" bson:"symbol"`
	// Open 24 小时窗口基准价（用于涨跌幅）
	Open decimal.Decimal `json:"open" bson:"open"`
	// High / Low 24 小时最高与最低价
	High decimal.Decimal `json:"high" bson:"high"`
	Low  decimal.Decimal `json:"low" bson:"low"`
	// Close 最新成交价
	Close decimal.Decimal `json:"close" bson:"close"`
	// Change 绝对变动，Chg 百分比变动
	Change decimal.Decimal `json:"change" bson:"change"`
	Chg    decimal.Decimal `json:"chg" bson:"chg"`
	// Volume / Turnover 24 小时成交量与成交额
	Volume   decimal.Decimal `json:"volume" bson:"volume"`
	Turnover decimal.Decimal `json:"turnover" bson:"turnover"`
	// UsdRate 最新成交价折算成美元的价格；汇率缺失时保留上一次的折算值
	UsdRate decimal.Decimal `json:"usdRate" bson:"usdRate"`
}

// NewCoinThumb 创建零值简况
func NewCoinThumb(symbol string) *CoinThumb {
	return &CoinThumb{Symbol: symbol}
}

// UpdateTrade 用一笔成交增量更新简况
func (t *CoinThumb) UpdateTrade(trade *ExchangeTrade) {
	t.Close = trade.Price
	if trade.Price.GreaterThan(t.High) {
		t.High = trade.Price
	}
	if t.Low.IsZero() || trade.Price.LessThan(t.Low) {
		t.Low = trade.Price
	}
	t.Volume = t.Volume.Add(trade.Amount)
	t.Turnover = t.Turnover.Add(trade.Turnover())
	if t.Open.IsZero() {
		t.Open = trade.Price
	}
	t.Change = t.Close.Sub(t.Open)
	if t.Open.IsPositive() {
		t.Chg = t.Change.Div(t.Open).Round(4)
	}
}

// Rebase 用历史 K 线重算 24 小时窗口基准
func (t *CoinThumb) Rebase(open, high, low, volume, turnover decimal.Decimal) {
	t.Open = open
	t.High = high
	t.Low = low
	t.Volume = volume
	t.Turnover = turnover
	if t.Close.IsPositive() && t.Close.GreaterThan(t.High) {
		t.High = t.Close
	}
	if t.Close.IsPositive() && (t.Low.IsZero() || t.Close.LessThan(t.Low)) {
		t.Low = t.Close
	}
	t.Change = t.Close.Sub(t.Open)
	if t.Open.IsPositive() {
		t.Chg = t.Change.Div(t.Open).Round(4)
	}
}

// Copy 返回简况的副本，供处理链与推送队列持有
func (t *CoinThumb) Copy() *CoinThumb {
	c := *t
	return &c
}
