package domain

import (
	"github.com/shopspring/decimal"
)

// OrderStatus 委托单状态
type OrderStatus string

const (
	// OrderStatusTrading 交易中
	OrderStatusTrading OrderStatus = "TRADING"
	// OrderStatusCompleted 已完成
	OrderStatusCompleted OrderStatus = "COMPLETED"
	// OrderStatusCanceled 已撤销
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// ExchangeOrder 委托单。重放时 TradedAmount/Turnover 一律从成交明细重算，
// 存储的聚合值不可信。
type ExchangeOrder struct {
	OrderID      string          `json:"orderId" bson:"orderId"`
	MemberID     int64           `json:"memberId" bson:"memberId"`
	Symbol       string          `json:"symbol" bson:"symbol"`
	CoinSymbol   string          `json:"coinSymbol" bson:"coinSymbol"`
	BaseSymbol   string          `json:"baseSymbol" bson:"baseSymbol"`
	Direction    Direction       `json:"direction" bson:"direction"`
	Price        decimal.Decimal `json:"price" bson:"price"`
	Amount       decimal.Decimal `json:"amount" bson:"amount"`
	TradedAmount decimal.Decimal `json:"tradedAmount" bson:"tradedAmount"`
	Turnover     decimal.Decimal `json:"turnover" bson:"turnover"`
	Status       OrderStatus     `json:"status" bson:"status"`
	// Time 下单时间（毫秒）
	Time int64 `json:"time" bson:"time"`
	// CompletedTime 完成时间（毫秒）
	CompletedTime int64 `json:"completedTime" bson:"completedTime"`
}

// ExchangeOrderDetail 委托单的单笔成交明细，是成交量与成交额的事实来源
type ExchangeOrderDetail struct {
	OrderID  string          `json:"orderId" bson:"orderId"`
	Price    decimal.Decimal `json:"price" bson:"price"`
	Amount   decimal.Decimal `json:"amount" bson:"amount"`
	Turnover decimal.Decimal `json:"turnover" bson:"turnover"`
	Fee      decimal.Decimal `json:"fee" bson:"fee"`
	Time     int64           `json:"time" bson:"time"`
}

// RecomputeFromDetails 从成交明细重算成交量与成交额，覆盖存储的聚合值
func (o *ExchangeOrder) RecomputeFromDetails(details []*ExchangeOrderDetail) {
	traded := decimal.Zero
	turnover := decimal.Zero
	for _, d := range details {
		traded = traded.Add(d.Amount)
		turnover = turnover.Add(d.Amount.Mul(d.Price))
	}
	o.TradedAmount = traded
	o.Turnover = turnover
}

// Completed 判断委托单是否已完全成交
func (o *ExchangeOrder) Completed() bool {
	return o.Amount.IsPositive() && o.TradedAmount.GreaterThanOrEqual(o.Amount)
}
