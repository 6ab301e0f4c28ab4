package application

import (
	"context"
	"log/slog"

	"github.com/bitvex/marketcenter/internal/market/domain"
)

// StorageMarketHandler 处理链的持久化环节：成交写入文档存储，
// 最新简况写入热缓存。失败只记录，不会阻断链上后续环节。
type StorageMarketHandler struct {
	repo   domain.MarketRepository
	cache  domain.ThumbCache
	logger *slog.Logger
}

// NewStorageMarketHandler 创建持久化环节
func NewStorageMarketHandler(repo domain.MarketRepository, cache domain.ThumbCache, logger *slog.Logger) *StorageMarketHandler {
	return &StorageMarketHandler{repo: repo, cache: cache, logger: logger}
}

// OnTrade 成交明细落库
func (h *StorageMarketHandler) OnTrade(ctx context.Context, trade *domain.ExchangeTrade) error {
	return h.repo.SaveTrades(ctx, trade.Symbol, []*domain.ExchangeTrade{trade})
}

// OnKLineClose 已关闭的 K 线落库，并刷新周期最新一根的热缓存
func (h *StorageMarketHandler) OnKLineClose(ctx context.Context, kline *domain.KLine) error {
	if err := h.repo.SaveKLine(ctx, kline); err != nil {
		return err
	}
	if err := h.cache.SaveLatestKLine(ctx, kline); err != nil {
		h.logger.Warn("failed to cache latest kline",
			"symbol", kline.Symbol, "period", kline.Period, "error", err)
	}
	return nil
}

// OnPlateChange 盘口不落库，由推送路径消化
func (h *StorageMarketHandler) OnPlateChange(ctx context.Context, plate *domain.TradePlate) error {
	return nil
}

// OnThumbChange 最新简况写入热缓存
func (h *StorageMarketHandler) OnThumbChange(ctx context.Context, thumb *domain.CoinThumb) error {
	return h.cache.SaveThumb(ctx, thumb)
}

// WebsocketMarketHandler 处理链的浏览器推送环节。不直接做网络 I/O，
// 只把产物追加进调度器队列后立即返回，这是内部处理速率与外部推送
// 速率解耦的接缝。
type WebsocketMarketHandler struct {
	scheduler *PushScheduler
	browser   domain.BrowserChannel
}

// NewWebsocketMarketHandler 创建浏览器推送环节
func NewWebsocketMarketHandler(scheduler *PushScheduler, browser domain.BrowserChannel) *WebsocketMarketHandler {
	return &WebsocketMarketHandler{scheduler: scheduler, browser: browser}
}

// OnTrade 成交入队
func (h *WebsocketMarketHandler) OnTrade(ctx context.Context, trade *domain.ExchangeTrade) error {
	h.scheduler.AddTrade(trade.Symbol, trade)
	return nil
}

// OnKLineClose K 线关闭频率低，不经调度器直接推送
func (h *WebsocketMarketHandler) OnKLineClose(ctx context.Context, kline *domain.KLine) error {
	return h.browser.PublishKLine(ctx, kline)
}

// OnPlateChange 盘口快照入队
func (h *WebsocketMarketHandler) OnPlateChange(ctx context.Context, plate *domain.TradePlate) error {
	h.scheduler.AddPlate(plate.Symbol, plate)
	return nil
}

// OnThumbChange 简况入队
func (h *WebsocketMarketHandler) OnThumbChange(ctx context.Context, thumb *domain.CoinThumb) error {
	h.scheduler.AddThumb(thumb.Symbol, thumb)
	return nil
}

// GatewayMarketHandler 处理链的原生网关推送环节。与浏览器环节共享盘口
// 队列：冲刷窗口内的先到优先与最新优先策略会折叠二者重复入队的产物，
// 网关通知由盘口冲刷统一发出。
type GatewayMarketHandler struct {
	scheduler *PushScheduler
}

// NewGatewayMarketHandler 创建网关推送环节
func NewGatewayMarketHandler(scheduler *PushScheduler) *GatewayMarketHandler {
	return &GatewayMarketHandler{scheduler: scheduler}
}

// OnTrade 网关不推送成交明细
func (h *GatewayMarketHandler) OnTrade(ctx context.Context, trade *domain.ExchangeTrade) error {
	return nil
}

// OnKLineClose 网关不推送 K 线
func (h *GatewayMarketHandler) OnKLineClose(ctx context.Context, kline *domain.KLine) error {
	return nil
}

// OnPlateChange 盘口快照入队
func (h *GatewayMarketHandler) OnPlateChange(ctx context.Context, plate *domain.TradePlate) error {
	h.scheduler.AddPlate(plate.Symbol, plate)
	return nil
}

// OnThumbChange 简况入队
func (h *GatewayMarketHandler) OnThumbChange(ctx context.Context, thumb *domain.CoinThumb) error {
	h.scheduler.AddThumb(thumb.Symbol, thumb)
	return nil
}
