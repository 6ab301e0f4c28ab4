package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Period K 线周期
type Period struct {
	// Name 周期名，如 1min、1hour、1day
	Name string
	// Duration 周期长度
	Duration time.Duration
}

var knownPeriods = map[string]time.Duration{
	"1min":  time.Minute,
	"5min":  5 * time.Minute,
	"15min": 15 * time.Minute,
	"30min": 30 * time.Minute,
	"1hour": time.Hour,
	"4hour": 4 * time.Hour,
	"1day":  24 * time.Hour,
}

// ParsePeriod 解析周期名
func ParsePeriod(name string) (Period, error) {
	d, ok := knownPeriods[name]
	if !ok {
		return Period{}, fmt.Errorf("unknown kline period: %s", name)
	}
	return Period{Name: name, Duration: d}, nil
}

// ParsePeriods 解析周期名列表
func ParsePeriods(names []string) ([]Period, error) {
	periods := make([]Period, 0, len(names))
	for _, name := range names {
		p, err := ParsePeriod(name)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, nil
}

// Align 将毫秒时间戳对齐到周期边界
func (p Period) Align(timeMillis int64) int64 {
	interval := p.Duration.Milliseconds()
	return timeMillis - timeMillis%interval
}

// KLine 一根 OHLCV K 线；Time 为对齐到周期边界的开盘时间（毫秒）。
// 开着的 K 线由处理器独占修改，关闭后不再变化并落库。
type KLine struct {
	Symbol       string          `json:"symbol" bson:"symbol"`
	Period       string          `json:"period" bson:"period"`
	Time         int64           `json:"time" bson:"time"`
	OpenPrice    decimal.Decimal `json:"openPrice" bson:"openPrice"`
	HighestPrice decimal.Decimal `json:"highestPrice" bson:"highestPrice"`
	LowestPrice  decimal.Decimal `json:"lowestPrice" bson:"lowestPrice"`
	ClosePrice   decimal.Decimal `json:"closePrice" bson:"closePrice"`
	Volume       decimal.Decimal `json:"volume" bson:"volume"`
	Turnover     decimal.Decimal `json:"turnover" bson:"turnover"`
	Count        int64           `json:"count" bson:"count"`
}

// NewKLine 以一笔成交开盘一根新 K 线
func NewKLine(symbol string, period Period, trade *ExchangeTrade) *KLine {
	return &KLine{
		Symbol:       symbol,
		Period:       period.Name,
		Time:         period.Align(trade.Time),
		OpenPrice:    trade.Price,
		HighestPrice: trade.Price,
		LowestPrice:  trade.Price,
		ClosePrice:   trade.Price,
		Volume:       trade.Amount,
		Turnover:     trade.Turnover(),
		Count:        1,
	}
}

// Update 用一笔成交更新开着的 K 线
func (k *KLine) Update(trade *ExchangeTrade) {
	if trade.Price.GreaterThan(k.HighestPrice) {
		k.HighestPrice = trade.Price
	}
	if trade.Price.LessThan(k.LowestPrice) {
		k.LowestPrice = trade.Price
	}
	k.ClosePrice = trade.Price
	k.Volume = k.Volume.Add(trade.Amount)
	k.Turnover = k.Turnover.Add(trade.Turnover())
	k.Count++
}
