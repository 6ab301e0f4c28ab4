// Package application 行情中心的应用层：交易对处理器、注册工厂、推送调度、
// 状态同步与启动重放。
package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bitvex/marketcenter/internal/market/domain"
	"github.com/bitvex/marketcenter/pkg/metrics"
)

// rebaseInterval 简况 24 小时窗口的重算周期
const rebaseInterval = time.Hour

// CoinProcessor 单交易对的状态机：持有一对盘口、各周期开着的 K 线和简况，
// 消费成交与盘口增量事件，并把状态变化交给处理链。
// 状态只由所属交易对的事件路径串行写入（单写者）；halt/stopKLine/ready
// 三个意图标志由状态同步与启动重放独占写入。
type CoinProcessor struct {
	symbol     string
	coinSymbol string
	baseSymbol string

	buyPlate  *domain.TradePlate
	sellPlate *domain.TradePlate
	thumb     *domain.CoinThumb
	current   map[string]*domain.KLine
	periods   []domain.Period

	handlers []domain.MarketHandler
	repo     domain.MarketRepository
	rate     domain.RateProvider

	// mu 保证快照读取（推送、查询）与事件路径的写入互不撕裂
	mu sync.Mutex

	halt      atomic.Bool
	stopKLine atomic.Bool
	ready     atomic.Bool

	lastRebase atomic.Int64

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCoinProcessor 创建处理器；处理链通过 AddHandler 挂接
func NewCoinProcessor(symbol, coinSymbol, baseSymbol string, periods []domain.Period,
	repo domain.MarketRepository, rate domain.RateProvider, m *metrics.Metrics, logger *slog.Logger,
) *CoinProcessor {
	return &CoinProcessor{
		symbol:     symbol,
		coinSymbol: coinSymbol,
		baseSymbol: baseSymbol,
		buyPlate:   domain.NewTradePlate(symbol, domain.DirectionBuy),
		sellPlate:  domain.NewTradePlate(symbol, domain.DirectionSell),
		thumb:      domain.NewCoinThumb(symbol),
		current:    make(map[string]*domain.KLine),
		periods:    periods,
		repo:       repo,
		rate:       rate,
		metrics:    m,
		logger:     logger.With("symbol", symbol),
	}
}

// Symbol 交易对符号
func (p *CoinProcessor) Symbol() string { return p.symbol }

// AddHandler 追加一个处理环节，调用顺序即注册顺序
func (p *CoinProcessor) AddHandler(h domain.MarketHandler) {
	p.handlers = append(p.handlers, h)
}

// SetHalt 设置是否忽略新成交
func (p *CoinProcessor) SetHalt(halt bool) { p.halt.Store(halt) }

// Halted 是否处于暂停状态
func (p *CoinProcessor) Halted() bool { return p.halt.Load() }

// SetStopKLine 设置是否暂停 K 线产出（状态仍然推进）
func (p *CoinProcessor) SetStopKLine(stop bool) { p.stopKLine.Store(stop) }

// KLineStopped 是否暂停 K 线产出
func (p *CoinProcessor) KLineStopped() bool { return p.stopKLine.Load() }

// SetReady 标记启动重放已完成
func (p *CoinProcessor) SetReady(ready bool) { p.ready.Store(ready) }

// Ready 是否已就绪
func (p *CoinProcessor) Ready() bool { return p.ready.Load() }

// Thumb 返回当前简况的副本
func (p *CoinProcessor) Thumb() *domain.CoinThumb {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.thumb.Copy()
}

// PlateSnapshot 返回指定方向盘口的快照
func (p *CoinProcessor) PlateSnapshot(direction domain.Direction) *domain.TradePlate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plate(direction).Snapshot()
}

func (p *CoinProcessor) plate(direction domain.Direction) *domain.TradePlate {
	if direction == domain.DirectionBuy {
		return p.buyPlate
	}
	return p.sellPlate
}

// ProcessTrade 处理一笔成交：推进各周期 K 线、更新盘口与简况，
// 然后按注册顺序调用处理链。暂停或未就绪时忽略。
func (p *CoinProcessor) ProcessTrade(ctx context.Context, trade *domain.ExchangeTrade) {
	if p.halt.Load() || !p.ready.Load() {
		return
	}

	p.mu.Lock()
	closed := p.rollKLines(trade)

	if err := p.plate(trade.Direction).Apply(trade.Price, trade.Amount); err != nil {
		p.mu.Unlock()
		p.invariantViolated(err)
		return
	}
	plateSnap := p.plate(trade.Direction).Snapshot()

	p.thumb.UpdateTrade(trade)
	p.refreshUsdRate()
	thumbCopy := p.thumb.Copy()
	p.mu.Unlock()

	p.emitClosed(ctx, closed)

	for _, h := range p.handlers {
		if err := h.OnTrade(ctx, trade); err != nil {
			p.logger.Error("market handler failed on trade", "error", err)
		}
		if err := h.OnPlateChange(ctx, plateSnap); err != nil {
			p.logger.Error("market handler failed on plate change", "error", err)
		}
		if err := h.OnThumbChange(ctx, thumbCopy); err != nil {
			p.logger.Error("market handler failed on thumb change", "error", err)
		}
	}

	if p.metrics != nil {
		p.metrics.TradesProcessed.Inc()
	}
}

// ProcessPlateDelta 处理一条盘口增量（挂单、撤单），只触发盘口相关的处理环节
func (p *CoinProcessor) ProcessPlateDelta(ctx context.Context, direction domain.Direction, price, delta decimal.Decimal) {
	if p.halt.Load() || !p.ready.Load() {
		return
	}

	p.mu.Lock()
	if err := p.plate(direction).Apply(price, delta); err != nil {
		p.mu.Unlock()
		p.invariantViolated(err)
		return
	}
	plateSnap := p.plate(direction).Snapshot()
	p.mu.Unlock()

	for _, h := range p.handlers {
		if err := h.OnPlateChange(ctx, plateSnap); err != nil {
			p.logger.Error("market handler failed on plate change", "error", err)
		}
	}
}

// rollKLines 推进各周期的开着 K 线；跨过周期边界时关闭上一根。
// 返回需要落库的已关闭 K 线（暂停产出期间返回空，但状态照常推进）。
func (p *CoinProcessor) rollKLines(trade *domain.ExchangeTrade) []*domain.KLine {
	var closed []*domain.KLine
	for _, period := range p.periods {
		openTime := period.Align(trade.Time)
		cur := p.current[period.Name]
		if cur == nil {
			p.current[period.Name] = domain.NewKLine(p.symbol, period, trade)
			continue
		}
		if cur.Time == openTime {
			cur.Update(trade)
			continue
		}
		p.current[period.Name] = domain.NewKLine(p.symbol, period, trade)
		if !p.stopKLine.Load() {
			closed = append(closed, cur)
		}
	}
	return closed
}

// emitClosed 把已关闭的 K 线交给处理链（落库与推送都在链上完成）
func (p *CoinProcessor) emitClosed(ctx context.Context, closed []*domain.KLine) {
	for _, k := range closed {
		for _, h := range p.handlers {
			if err := h.OnKLineClose(ctx, k); err != nil {
				p.logger.Error("market handler failed on kline close",
					"period", k.Period, "time", k.Time, "error", err)
			}
		}
		if p.metrics != nil {
			p.metrics.KLinesClosed.Inc()
		}
	}
}

// refreshUsdRate 用注入的汇率折算最新价；汇率缺失时保留上一次折算值
func (p *CoinProcessor) refreshUsdRate() {
	rate := p.rate.UsdRate(p.baseSymbol)
	if rate.IsPositive() {
		p.thumb.UsdRate = p.thumb.Close.Mul(rate)
	}
}

// invariantViolated 程序不变量被破坏：仅暂停本交易对，等状态同步恢复
func (p *CoinProcessor) invariantViolated(err error) {
	if errors.Is(err, domain.ErrNegativeAmount) {
		p.logger.Error("trade plate invariant violated, halting symbol", "error", err)
		p.halt.Store(true)
		return
	}
	p.logger.Error("unexpected plate error", "error", err)
}

// InitializeThumb 用最近 24 小时的 1min K 线重算简况基准
func (p *CoinProcessor) InitializeThumb(ctx context.Context) error {
	now := time.Now().UnixMilli()
	from := now - 24*time.Hour.Milliseconds()
	klines, err := p.repo.FindKLines(ctx, p.symbol, "1min", from, now)
	if err != nil {
		return err
	}
	p.lastRebase.Store(now)
	if len(klines) == 0 {
		return nil
	}

	open := klines[0].OpenPrice
	high := klines[0].HighestPrice
	low := klines[0].LowestPrice
	volume := decimal.Zero
	turnover := decimal.Zero
	last := klines[len(klines)-1].ClosePrice
	for _, k := range klines {
		if k.HighestPrice.GreaterThan(high) {
			high = k.HighestPrice
		}
		if k.LowestPrice.LessThan(low) {
			low = k.LowestPrice
		}
		volume = volume.Add(k.Volume)
		turnover = turnover.Add(k.Turnover)
	}

	p.mu.Lock()
	if p.thumb.Close.IsZero() {
		p.thumb.Close = last
	}
	p.thumb.Rebase(open, high, low, volume, turnover)
	p.refreshUsdRate()
	p.mu.Unlock()
	return nil
}

// MaybeRebase 距上次重算超过一个周期时重算 24 小时窗口；由状态同步循环驱动
func (p *CoinProcessor) MaybeRebase(ctx context.Context) {
	last := p.lastRebase.Load()
	if time.Since(time.UnixMilli(last)) < rebaseInterval {
		return
	}
	if err := p.InitializeThumb(ctx); err != nil {
		p.logger.Error("failed to rebase thumb window", "error", err)
	}
}
