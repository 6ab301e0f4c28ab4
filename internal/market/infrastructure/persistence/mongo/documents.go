package mongo

import (
	"github.com/shopspring/decimal"

	"github.com/bitvex/marketcenter/internal/market/domain"
)

// 文档内的金额一律存十进制字符串，避免二进制浮点误差。

type tradeDocument struct {
	Symbol      string `bson:"symbol"`
	Price       string `bson:"price"`
	Amount      string `bson:"amount"`
	Direction   string `bson:"direction"`
	BuyOrderID  string `bson:"buyOrderId"`
	SellOrderID string `bson:"sellOrderId"`
	Time        int64  `bson:"time"`
}

func tradeDoc(t *domain.ExchangeTrade) tradeDocument {
	return tradeDocument{
		Symbol:      t.Symbol,
		Price:       t.Price.String(),
		Amount:      t.Amount.String(),
		Direction:   string(t.Direction),
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		Time:        t.Time,
	}
}

type klineDocument struct {
	Time         int64  `bson:"time"`
	OpenPrice    string `bson:"openPrice"`
	HighestPrice string `bson:"highestPrice"`
	LowestPrice  string `bson:"lowestPrice"`
	ClosePrice   string `bson:"closePrice"`
	Volume       string `bson:"volume"`
	Turnover     string `bson:"turnover"`
	Count        int64  `bson:"count"`
}

func klineDoc(k *domain.KLine) klineDocument {
	return klineDocument{
		Time:         k.Time,
		OpenPrice:    k.OpenPrice.String(),
		HighestPrice: k.HighestPrice.String(),
		LowestPrice:  k.LowestPrice.String(),
		ClosePrice:   k.ClosePrice.String(),
		Volume:       k.Volume.String(),
		Turnover:     k.Turnover.String(),
		Count:        k.Count,
	}
}

func (d *klineDocument) toDomain(symbol, period string) *domain.KLine {
	return &domain.KLine{
		Symbol:       symbol,
		Period:       period,
		Time:         d.Time,
		OpenPrice:    parseDecimal(d.OpenPrice),
		HighestPrice: parseDecimal(d.HighestPrice),
		LowestPrice:  parseDecimal(d.LowestPrice),
		ClosePrice:   parseDecimal(d.ClosePrice),
		Volume:       parseDecimal(d.Volume),
		Turnover:     parseDecimal(d.Turnover),
		Count:        d.Count,
	}
}

type orderDocument struct {
	OrderID       string `bson:"orderId"`
	MemberID      int64  `bson:"memberId"`
	Symbol        string `bson:"symbol"`
	CoinSymbol    string `bson:"coinSymbol"`
	BaseSymbol    string `bson:"baseSymbol"`
	Direction     string `bson:"direction"`
	Price         string `bson:"price"`
	Amount        string `bson:"amount"`
	TradedAmount  string `bson:"tradedAmount"`
	Turnover      string `bson:"turnover"`
	Status        string `bson:"status"`
	Time          int64  `bson:"time"`
	CompletedTime int64  `bson:"completedTime"`
}

func (d *orderDocument) toDomain() *domain.ExchangeOrder {
	return &domain.ExchangeOrder{
		OrderID:       d.OrderID,
		MemberID:      d.MemberID,
		Symbol:        d.Symbol,
		CoinSymbol:    d.CoinSymbol,
		BaseSymbol:    d.BaseSymbol,
		Direction:     domain.Direction(d.Direction),
		Price:         parseDecimal(d.Price),
		Amount:        parseDecimal(d.Amount),
		TradedAmount:  parseDecimal(d.TradedAmount),
		Turnover:      parseDecimal(d.Turnover),
		Status:        domain.OrderStatus(d.Status),
		Time:          d.Time,
		CompletedTime: d.CompletedTime,
	}
}

type orderDetailDocument struct {
	OrderID  string `bson:"orderId"`
	Price    string `bson:"price"`
	Amount   string `bson:"amount"`
	Turnover string `bson:"turnover"`
	Fee      string `bson:"fee"`
	Time     int64  `bson:"time"`
}

func (d *orderDetailDocument) toDomain() *domain.ExchangeOrderDetail {
	return &domain.ExchangeOrderDetail{
		OrderID:  d.OrderID,
		Price:    parseDecimal(d.Price),
		Amount:   parseDecimal(d.Amount),
		Turnover: parseDecimal(d.Turnover),
		Fee:      parseDecimal(d.Fee),
		Time:     d.Time,
	}
}

// parseDecimal 解析失败按零值处理，坏数据由上层按单条丢弃策略消化
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
