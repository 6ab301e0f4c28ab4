package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/bitvex/marketcenter/internal/market/application"
	"github.com/bitvex/marketcenter/internal/market/domain"
	"github.com/bitvex/marketcenter/pkg/logger"
	"github.com/bitvex/marketcenter/pkg/metrics"
)

// plateDeltaMessage 撮合引擎推送的盘口增量：
// amount 为该价位的数量变化，挂单为正、撤单或成交为负
type plateDeltaMessage struct {
	Symbol    string          `json:"symbol"`
	Direction string          `json:"direction"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
}

// PlateConsumer 消费盘口增量消息
type PlateConsumer struct {
	factory *application.ProcessorFactory
	metrics *metrics.Metrics
}

// NewPlateConsumer 创建盘口消费者
func NewPlateConsumer(factory *application.ProcessorFactory, m *metrics.Metrics) *PlateConsumer {
	return &PlateConsumer{factory: factory, metrics: m}
}

// Handle 解析盘口增量并应用到对应的处理器
func (c *PlateConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	var delta plateDeltaMessage
	if err := json.Unmarshal(msg.Value, &delta); err != nil {
		c.metrics.MessagesDropped.Inc()
		return fmt.Errorf("failed to decode plate delta message: %w", err)
	}

	direction, err := domain.ParseDirection(delta.Direction)
	if err != nil {
		c.metrics.MessagesDropped.Inc()
		return fmt.Errorf("failed to parse plate delta direction: %w", err)
	}
	if delta.Symbol == "" || delta.Price.Sign() <= 0 {
		c.metrics.MessagesDropped.Inc()
		logger.Warn(ctx, "dropping invalid plate delta", "symbol", delta.Symbol)
		return nil
	}

	processor, ok := c.factory.Get(delta.Symbol)
	if !ok {
		logger.Debug(ctx, "no processor for plate delta", "symbol", delta.Symbol)
		return nil
	}
	processor.ProcessPlateDelta(ctx, direction, delta.Price, delta.Amount)
	return nil
}
