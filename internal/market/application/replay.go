package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/bitvex/marketcenter/internal/market/domain"
)

// OrderReplayer 启动重放：进程接受任何实时事件之前执行一次。
// 对注册表中的每个交易对，从持久层加载未终结的委托单，用成交明细重算
// 成交量与成交额（存储的聚合值不可信），把仍未完成的批量回灌给撮合
// 引擎，把重放期间已完成的批量发一条完成通知，最后无条件把处理器标记
// 为就绪——回灌失败不会让交易对永远挂起。
type OrderReplayer struct {
	factory  *ProcessorFactory
	orders   domain.OrderRepository
	engine   domain.EngineClient
	notifier domain.CompletionNotifier
	logger   *slog.Logger
}

// NewOrderReplayer 创建重放器
func NewOrderReplayer(factory *ProcessorFactory, orders domain.OrderRepository,
	engine domain.EngineClient, notifier domain.CompletionNotifier, logger *slog.Logger,
) *OrderReplayer {
	return &OrderReplayer{
		factory:  factory,
		orders:   orders,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
	}
}

// Replay 对注册表内所有交易对执行重放
func (r *OrderReplayer) Replay(ctx context.Context) {
	for symbol, p := range r.factory.All() {
		r.replaySymbol(ctx, symbol)
		p.SetReady(true)
	}
}

func (r *OrderReplayer) replaySymbol(ctx context.Context, symbol string) {
	orders, err := r.orders.FindTradingOrders(ctx, symbol)
	if err != nil {
		r.logger.Error("failed to load trading orders for replay", "symbol", symbol, "error", err)
		return
	}
	r.logger.Info("replaying orders", "symbol", symbol, "count", len(orders))

	var trading []*domain.ExchangeOrder
	var completed []*domain.ExchangeOrder
	for _, order := range orders {
		details, err := r.orders.FindOrderDetails(ctx, order.OrderID)
		if err != nil {
			// 单条坏数据不影响同批其余委托单
			r.logger.Error("failed to load order details, dropping order from replay",
				"symbol", symbol, "orderId", order.OrderID, "error", err)
			continue
		}
		order.RecomputeFromDetails(details)

		if order.Completed() {
			order.Status = domain.OrderStatusCompleted
			order.CompletedTime = time.Now().UnixMilli()
			completed = append(completed, order)
		} else {
			trading = append(trading, order)
		}
	}

	if len(trading) > 0 {
		if err := r.engine.ResumeTrading(ctx, symbol, trading); err != nil {
			// 回灌失败只记录：交易对仍会被标记就绪，不能无限期阻塞实时流量
			r.logger.Error("failed to resume trading orders", "symbol", symbol, "count", len(trading), "error", err)
		}
	}

	if len(completed) > 0 {
		if err := r.notifier.NotifyCompleted(ctx, completed); err != nil {
			r.logger.Error("failed to notify completed orders", "symbol", symbol, "count", len(completed), "error", err)
		}
	}
}
