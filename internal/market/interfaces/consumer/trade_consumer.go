// Package consumer 撮合引擎产出的 Kafka 消息入口
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/bitvex/marketcenter/internal/market/application"
	"github.com/bitvex/marketcenter/internal/market/domain"
	"github.com/bitvex/marketcenter/pkg/logger"
	"github.com/bitvex/marketcenter/pkg/metrics"
)

const symbolQueueSize = 1024

// TradeConsumer 消费成交消息，按交易对派发给对应的处理器。
// 同一交易对的成交必须串行处理，否则盘口与 K 线状态会竞争，
// 因此每个交易对持有一条专属队列和一个派发 goroutine。
// 消息随带的已完成委托单转发到完成通知主题。
type TradeConsumer struct {
	factory  *application.ProcessorFactory
	notifier domain.CompletionNotifier
	metrics  *metrics.Metrics

	mu     sync.Mutex
	queues map[string]chan *domain.ExchangeTrade
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewTradeConsumer 创建成交消费者；notifier 可为 nil（不转发完成通知）
func NewTradeConsumer(factory *application.ProcessorFactory, notifier domain.CompletionNotifier, m *metrics.Metrics) *TradeConsumer {
	return &TradeConsumer{
		factory:  factory,
		notifier: notifier,
		metrics:  m,
		queues:   make(map[string]chan *domain.ExchangeTrade),
		done:     make(chan struct{}),
	}
}

// tradeEnvelope 带委托单快照的成交消息体：撮合引擎在委托单完全成交时
// 把终态快照随成交一起发出
type tradeEnvelope struct {
	Trades          []*domain.ExchangeTrade `json:"trades"`
	CompletedOrders []*domain.ExchangeOrder `json:"completedOrders"`
}

// Handle 解析一条成交消息并入队。消息体可以是单个成交对象、
// 批量数组，或带已完成委托单的信封。
func (c *TradeConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	trades, completed, err := decodeTrades(msg.Value)
	if err != nil {
		c.metrics.MessagesDropped.Inc()
		return fmt.Errorf("failed to decode trade message: %w", err)
	}
	for _, trade := range trades {
		if !trade.Valid() {
			c.metrics.MessagesDropped.Inc()
			logger.Warn(ctx, "dropping invalid trade", "symbol", trade.Symbol)
			continue
		}
		c.dispatch(ctx, trade)
	}

	if len(completed) > 0 && c.notifier != nil {
		if err := c.notifier.NotifyCompleted(ctx, completed); err != nil {
			logger.Error(ctx, "failed to forward completed orders", "count", len(completed), "error", err)
		}
	}
	return nil
}

// decodeTrades 兼容信封、数组和单条三种消息体
func decodeTrades(data []byte) ([]*domain.ExchangeTrade, []*domain.ExchangeOrder, error) {
	var envelope tradeEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil &&
		(len(envelope.Trades) > 0 || len(envelope.CompletedOrders) > 0) {
		return envelope.Trades, envelope.CompletedOrders, nil
	}
	var trades []*domain.ExchangeTrade
	if err := json.Unmarshal(data, &trades); err == nil {
		return trades, nil, nil
	}
	var single domain.ExchangeTrade
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, nil, err
	}
	return []*domain.ExchangeTrade{&single}, nil, nil
}

// dispatch 将成交投入交易对专属队列，队列满时丢弃并计数，
// 不能让单个拥堵的交易对阻塞整个分区的消费。
func (c *TradeConsumer) dispatch(ctx context.Context, trade *domain.ExchangeTrade) {
	c.mu.Lock()
	queue, ok := c.queues[trade.Symbol]
	if !ok {
		queue = make(chan *domain.ExchangeTrade, symbolQueueSize)
		c.queues[trade.Symbol] = queue
		c.wg.Add(1)
		go c.drain(trade.Symbol, queue)
	}
	c.mu.Unlock()

	select {
	case queue <- trade:
	default:
		c.metrics.MessagesDropped.Inc()
		logger.Warn(ctx, "trade queue full, dropping trade", "symbol", trade.Symbol)
	}
}

// drain 单个交易对的串行处理循环
func (c *TradeConsumer) drain(symbol string, queue chan *domain.ExchangeTrade) {
	defer c.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-c.done:
			return
		case trade := <-queue:
			processor, ok := c.factory.Get(symbol)
			if !ok {
				c.metrics.MessagesDropped.Inc()
				logger.Warn(ctx, "no processor for symbol, dropping trade", "symbol", symbol)
				continue
			}
			processor.ProcessTrade(ctx, trade)
		}
	}
}

// Stop 通知所有派发 goroutine 退出并等待结束
func (c *TradeConsumer) Stop() {
	close(c.done)
	c.wg.Wait()
}
