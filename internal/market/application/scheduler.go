package application

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitvex/marketcenter/internal/market/domain"
	"github.com/bitvex/marketcenter/pkg/metrics"
)

// SchedulerConfig 推送调度配置
type SchedulerConfig struct {
	TradeInterval time.Duration
	PlateInterval time.Duration
	ThumbInterval time.Duration
	ShallowDepth  int
	DeepDepth     int
}

// PushScheduler 出站推送的批量调度器。处理链把产物追加进按交易对分组的
// 队列，三个独立的定时冲刷任务按固定周期批量外发，把内部高频更新与外部
// 推送速率解耦：
//   - 成交：整批按序推送
//   - 盘口：每个方向每窗口只推第一次出现的快照（先到优先），
//     同时渲染浅档与深档给浏览器通道，并通知网关一次
//   - 简况：只推窗口内最新一条
//
// 队列采用换空再排干：生产者追加从不被排干阻塞，锁不跨越任何 I/O。
// 上一轮还没冲完时，本轮 tick 被跳过而不是排队。
type PushScheduler struct {
	mu     sync.Mutex
	trades map[string][]*domain.ExchangeTrade
	plates map[string][]*domain.TradePlate
	thumbs map[string][]*domain.CoinThumb

	browser domain.BrowserChannel
	gateway domain.GatewayChannel

	cfg SchedulerConfig

	tradeFlushing atomic.Bool
	plateFlushing atomic.Bool
	thumbFlushing atomic.Bool

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPushScheduler 创建调度器
func NewPushScheduler(cfg SchedulerConfig, browser domain.BrowserChannel, gateway domain.GatewayChannel,
	m *metrics.Metrics, logger *slog.Logger,
) *PushScheduler {
	return &PushScheduler{
		trades:  make(map[string][]*domain.ExchangeTrade),
		plates:  make(map[string][]*domain.TradePlate),
		thumbs:  make(map[string][]*domain.CoinThumb),
		browser: browser,
		gateway: gateway,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// AddTrade 成交入队
func (s *PushScheduler) AddTrade(symbol string, trade *domain.ExchangeTrade) {
	s.mu.Lock()
	s.trades[symbol] = append(s.trades[symbol], trade)
	s.mu.Unlock()
}

// AddPlate 盘口快照入队
func (s *PushScheduler) AddPlate(symbol string, plate *domain.TradePlate) {
	s.mu.Lock()
	s.plates[symbol] = append(s.plates[symbol], plate)
	s.mu.Unlock()
}

// AddThumb 简况入队
func (s *PushScheduler) AddThumb(symbol string, thumb *domain.CoinThumb) {
	s.mu.Lock()
	s.thumbs[symbol] = append(s.thumbs[symbol], thumb)
	s.mu.Unlock()
}

// Start 启动三个冲刷循环，直到 ctx 取消
func (s *PushScheduler) Start(ctx context.Context) {
	go s.runLoop(ctx, s.cfg.TradeInterval, &s.tradeFlushing, s.FlushTrades)
	go s.runLoop(ctx, s.cfg.PlateInterval, &s.plateFlushing, s.FlushPlates)
	go s.runLoop(ctx, s.cfg.ThumbInterval, &s.thumbFlushing, s.FlushThumbs)
}

// runLoop 固定周期触发 flush；上一轮未结束时跳过本轮 tick
func (s *PushScheduler) runLoop(ctx context.Context, interval time.Duration, flushing *atomic.Bool, flush func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !flushing.CompareAndSwap(false, true) {
				if s.metrics != nil {
					s.metrics.PushTicksSkipped.Inc()
				}
				continue
			}
			go func() {
				defer flushing.Store(false)
				flush(ctx)
			}()
		}
	}
}

// FlushTrades 把每个交易对累积的成交整批推出
func (s *PushScheduler) FlushTrades(ctx context.Context) {
	s.mu.Lock()
	pending := s.trades
	s.trades = make(map[string][]*domain.ExchangeTrade)
	s.mu.Unlock()

	for symbol, trades := range pending {
		if len(trades) == 0 {
			continue
		}
		if err := s.browser.PublishTrades(ctx, symbol, trades); err != nil {
			s.logger.Error("failed to push trades", "symbol", symbol, "error", err)
			continue
		}
		if s.metrics != nil {
			s.metrics.TradePushes.Inc()
		}
	}
}

// FlushPlates 盘口合并推送：每个方向只推窗口内第一次出现的快照，
// 浅档与深档发给浏览器通道，并通知网关一次。
// 发送失败只影响当前交易对的当前通道，不影响本轮其余冲刷。
func (s *PushScheduler) FlushPlates(ctx context.Context) {
	s.mu.Lock()
	pending := s.plates
	s.plates = make(map[string][]*domain.TradePlate)
	s.mu.Unlock()

	for symbol, plates := range pending {
		pushedBuy := false
		pushedSell := false
		for _, plate := range plates {
			if plate.Direction == domain.DirectionBuy {
				if pushedBuy {
					continue
				}
				pushedBuy = true
			} else {
				if pushedSell {
					continue
				}
				pushedSell = true
			}

			shallow := plate.Render(s.cfg.ShallowDepth)
			deep := plate.Render(s.cfg.DeepDepth)
			if err := s.browser.PublishPlate(ctx, symbol, shallow, deep); err != nil {
				s.logger.Error("failed to push plate", "symbol", symbol, "direction", plate.Direction, "error", err)
			}
			if err := s.gateway.HandlePlate(ctx, symbol, deep); err != nil {
				s.logger.Error("failed to notify gateway plate", "symbol", symbol, "direction", plate.Direction, "error", err)
			}
			if s.metrics != nil {
				s.metrics.PlatePushes.Inc()
			}
		}
	}
}

// FlushThumbs 每个交易对只推窗口内最新一条简况
func (s *PushScheduler) FlushThumbs(ctx context.Context) {
	s.mu.Lock()
	pending := s.thumbs
	s.thumbs = make(map[string][]*domain.CoinThumb)
	s.mu.Unlock()

	for symbol, thumbs := range pending {
		if len(thumbs) == 0 {
			continue
		}
		latest := thumbs[len(thumbs)-1]
		if err := s.browser.PublishThumb(ctx, latest); err != nil {
			s.logger.Error("failed to push thumb", "symbol", symbol, "error", err)
			continue
		}
		if s.metrics != nil {
			s.metrics.ThumbPushes.Inc()
		}
	}
}
