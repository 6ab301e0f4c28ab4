// Package messaging 消息总线上的出站通知
package messaging

import (
	"context"

	"github.com/bitvex/marketcenter/internal/market/domain"
	"github.com/bitvex/marketcenter/pkg/mq"
)

// CompletionNotifier 订单完成通知的 Kafka 实现：
// 按交易对拆分批次，消息键取交易对，同一交易对的通知落在同一分区
type CompletionNotifier struct {
	producer *mq.Producer
	topic    string
}

// NewCompletionNotifier 创建通知器
func NewCompletionNotifier(producer *mq.Producer, topic string) *CompletionNotifier {
	return &CompletionNotifier{producer: producer, topic: topic}
}

// NotifyCompleted 发布一批已完成委托单
func (n *CompletionNotifier) NotifyCompleted(ctx context.Context, orders []*domain.ExchangeOrder) error {
	for _, batch := range splitBySymbol(orders) {
		if err := n.producer.Send(ctx, n.topic, batch[0].Symbol, batch); err != nil {
			return err
		}
	}
	return nil
}

// splitBySymbol 按交易对分组，保持组间首次出现顺序与组内原始顺序
func splitBySymbol(orders []*domain.ExchangeOrder) [][]*domain.ExchangeOrder {
	groups := make(map[string][]*domain.ExchangeOrder)
	var symbols []string
	for _, o := range orders {
		if _, ok := groups[o.Symbol]; !ok {
			symbols = append(symbols, o.Symbol)
		}
		groups[o.Symbol] = append(groups[o.Symbol], o)
	}
	out := make([][]*domain.ExchangeOrder, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, groups[s])
	}
	return out
}
