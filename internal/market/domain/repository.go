package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// 撮合引擎交易对状态
const (
	// EngineStatusTrading 正常交易
	EngineStatusTrading = 1
	// EngineStatusHalted 暂停交易
	EngineStatusHalted = 2
)

// MarketRepository 行情历史仓储（文档存储，最终持久化语义）
type MarketRepository interface {
	// SaveTrades 保存一批成交明细
	SaveTrades(ctx context.Context, symbol string, trades []*ExchangeTrade) error
	// SaveKLine 保存一根已关闭的 K 线
	SaveKLine(ctx context.Context, kline *KLine) error
	// FindKLines 查询 [from, to) 区间内的 K 线，按时间升序
	FindKLines(ctx context.Context, symbol, period string, from, to int64) ([]*KLine, error)
}

// ThumbCache 行情热缓存：最新简况与各周期最近一根已关闭 K 线
type ThumbCache interface {
	SaveThumb(ctx context.Context, thumb *CoinThumb) error
	// SaveLatestKLine 覆盖写入该交易对该周期最近一根已关闭的 K 线
	SaveLatestKLine(ctx context.Context, kline *KLine) error
}

// OrderRepository 委托单仓储，仅用于启动重放
type OrderRepository interface {
	// FindTradingOrders 查询指定交易对所有未终结的委托单
	FindTradingOrders(ctx context.Context, symbol string) ([]*ExchangeOrder, error)
	// FindOrderDetails 查询委托单的全部成交明细
	FindOrderDetails(ctx context.Context, orderID string) ([]*ExchangeOrderDetail, error)
}

// CoinRepository 交易对目录仓储
type CoinRepository interface {
	// FindBySymbol 按符号查询交易对定义；不存在返回 (nil, nil)
	FindBySymbol(ctx context.Context, symbol string) (*ExchangeCoin, error)
	// FindAllEnabled 查询所有启用的交易对
	FindAllEnabled(ctx context.Context) ([]*ExchangeCoin, error)
}

// EngineClient 撮合引擎监控接口
type EngineClient interface {
	// EngineSymbols 拉取引擎当前支持的交易对及状态（1 交易中，2 暂停）
	EngineSymbols(ctx context.Context) (map[string]int, error)
	// ResumeTrading 启动重放时把未完成的委托单批量回灌给引擎
	ResumeTrading(ctx context.Context, symbol string, orders []*ExchangeOrder) error
}

// RateProvider 汇率查询。实现不允许阻塞调用方：
// 汇率缺失或过期时返回最后一次已知值或零值。
type RateProvider interface {
	UsdRate(unit string) decimal.Decimal
}

// CompletionNotifier 订单完成通知（消息总线发布）
type CompletionNotifier interface {
	NotifyCompleted(ctx context.Context, orders []*ExchangeOrder) error
}
