// Package domain 行情中心的领域模型：成交、盘口、K 线、简况、委托单与仓储接口
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction 买卖方向
type Direction string

const (
	// DirectionBuy 买入
	DirectionBuy Direction = "BUY"
	// DirectionSell 卖出
	DirectionSell Direction = "SELL"
)

// Valid 判断方向是否合法
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// ParseDirection 解析买卖方向字符串
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown trade direction: %q", s)
	}
	return d, nil
}

// ExchangeTrade 撮合产生的成交明细，经由消息总线到达，处理后不再修改
type ExchangeTrade struct {
	Symbol    string          `json:"symbol" bson:"symbol"`
	Price     decimal.Decimal `json:"price" bson:"price"`
	Amount    decimal.Decimal `json:"amount" bson:"amount"`
	Direction Direction       `json:"direction" bson:"direction"`
	// BuyOrderID / SellOrderID 撮合双方委托单号
	BuyOrderID  string `json:"buyOrderId" bson:"buyOrderId"`
	SellOrderID string `json:"sellOrderId" bson:"sellOrderId"`
	// Time 成交时间（毫秒）
	Time int64 `json:"time" bson:"time"`
}

// Turnover 返回该笔成交的成交额
func (t *ExchangeTrade) Turnover() decimal.Decimal {
	return t.Price.Mul(t.Amount)
}

// Valid 校验成交消息的基本字段
func (t *ExchangeTrade) Valid() bool {
	return t.Symbol != "" && t.Direction.Valid() &&
		t.Price.IsPositive() && t.Amount.IsPositive() && t.Time > 0
}
