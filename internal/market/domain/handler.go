package domain

import "context"

// MarketHandler 行情处理链上的一个环节，在处理器完成状态更新后被同步调用。
// 实现必须自行消化错误场景：返回的 error 只会被记录，不会中断后续环节，
// 也不会传播回事件摄入路径。
type MarketHandler interface {
	// OnTrade 一笔成交处理完成
	OnTrade(ctx context.Context, trade *ExchangeTrade) error
	// OnKLineClose 一根 K 线跨过周期边界关闭
	OnKLineClose(ctx context.Context, kline *KLine) error
	// OnPlateChange 盘口发生变化，plate 为变化后的快照
	OnPlateChange(ctx context.Context, plate *TradePlate) error
	// OnThumbChange 简况发生变化，thumb 为副本
	OnThumbChange(ctx context.Context, thumb *CoinThumb) error
}

// BrowserChannel 浏览器推送通道（主题寻址）。盘口、成交与简况由推送调度器
// 定时批量冲刷；K 线关闭频率低，由处理链直接推送。
type BrowserChannel interface {
	// PublishTrades 推送一批成交
	PublishTrades(ctx context.Context, symbol string, trades []*ExchangeTrade) error
	// PublishKLine 推送一根已关闭的 K 线
	PublishKLine(ctx context.Context, kline *KLine) error
	// PublishPlate 推送浅档与深档两种盘口渲染
	PublishPlate(ctx context.Context, symbol string, shallow, deep *TradePlateView) error
	// PublishThumb 推送最新简况
	PublishThumb(ctx context.Context, thumb *CoinThumb) error
}

// GatewayChannel 原生客户端长连接网关，帧格式由网关实现负责
type GatewayChannel interface {
	// HandlePlate 每个方向每个推送窗口通知一次
	HandlePlate(ctx context.Context, symbol string, plate *TradePlateView) error
}
