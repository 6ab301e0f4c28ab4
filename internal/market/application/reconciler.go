package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bitvex/marketcenter/internal/market/domain"
	"github.com/bitvex/marketcenter/pkg/metrics"
)

// ProcessorBuilder 按交易对目录条目构造处理器并挂接标准处理链。
// 所有处理器共享同一组 handler 单例与协作方引用（显式构造，无容器装配）。
type ProcessorBuilder struct {
	periods  []domain.Period
	repo     domain.MarketRepository
	rate     domain.RateProvider
	handlers []domain.MarketHandler
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewProcessorBuilder 创建构造器
func NewProcessorBuilder(periods []domain.Period, repo domain.MarketRepository, rate domain.RateProvider,
	handlers []domain.MarketHandler, m *metrics.Metrics, logger *slog.Logger,
) *ProcessorBuilder {
	return &ProcessorBuilder{
		periods:  periods,
		repo:     repo,
		rate:     rate,
		handlers: handlers,
		metrics:  m,
		logger:   logger,
	}
}

// Build 构造处理器并用历史 K 线初始化简况；初始化失败不阻止发布，
// 简况会在下一次周期重算时补齐。
func (b *ProcessorBuilder) Build(ctx context.Context, coin *domain.ExchangeCoin) *CoinProcessor {
	p := NewCoinProcessor(coin.Symbol, coin.CoinSymbol, coin.BaseSymbol, b.periods, b.repo, b.rate, b.metrics, b.logger)
	for _, h := range b.handlers {
		p.AddHandler(h)
	}
	if err := p.InitializeThumb(ctx); err != nil {
		b.logger.Error("failed to initialize thumb from history", "symbol", coin.Symbol, "error", err)
	}
	return p
}

// EngineReconciler 周期性把撮合引擎公布的交易对集合与本地处理器注册表
// 收敛一致：已存在的只收敛 halt/stopKLine 标志，不重建；缺失的按目录
// 定义新建；引擎未公布的保留不动（不做隐式删除，避免外部瞬时故障导致
// 交易对突然消失）。对相同的外部状态重复执行不产生任何变更。
type EngineReconciler struct {
	factory  *ProcessorFactory
	engine   domain.EngineClient
	coins    domain.CoinRepository
	builder  *ProcessorBuilder
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngineReconciler 创建同步循环
func NewEngineReconciler(factory *ProcessorFactory, engine domain.EngineClient, coins domain.CoinRepository,
	builder *ProcessorBuilder, interval time.Duration, m *metrics.Metrics, logger *slog.Logger,
) *EngineReconciler {
	return &EngineReconciler{
		factory:  factory,
		engine:   engine,
		coins:    coins,
		builder:  builder,
		interval: interval,
		metrics:  m,
		logger:   logger,
	}
}

// Start 启动同步循环，直到 ctx 取消
func (r *EngineReconciler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Reconcile(ctx); err != nil {
					r.logger.Error("reconcile pass failed", "error", err)
				}
			}
		}
	}()
}

// Reconcile 执行一次收敛
func (r *EngineReconciler) Reconcile(ctx context.Context) error {
	statuses, err := r.engine.EngineSymbols(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch engine symbols: %w", err)
	}

	for symbol, status := range statuses {
		if p, ok := r.factory.Get(symbol); ok {
			r.converge(p, status)
			continue
		}

		coin, err := r.coins.FindBySymbol(ctx, symbol)
		if err != nil {
			r.logger.Error("failed to look up exchange coin", "symbol", symbol, "error", err)
			continue
		}
		if coin == nil {
			// 引擎先于目录上线的交易对，下个周期再试
			r.logger.Debug("engine symbol not yet configured, skipping", "symbol", symbol)
			continue
		}

		r.logger.Info("initializing new coin processor", "symbol", symbol, "status", status)
		p := r.builder.Build(ctx, coin)
		p.SetHalt(false)
		p.SetStopKLine(status == domain.EngineStatusHalted)
		p.SetReady(true)
		r.factory.Put(symbol, p)
	}

	for _, p := range r.factory.All() {
		p.MaybeRebase(ctx)
	}

	if r.metrics != nil {
		r.metrics.ReconcileRuns.Inc()
		r.metrics.ProcessorsActive.Set(float64(r.factory.Size()))
	}
	return nil
}

// converge 只收敛意图标志，状态不变时不做任何写入
func (r *EngineReconciler) converge(p *CoinProcessor, status int) {
	stopKLine := status == domain.EngineStatusHalted
	if p.KLineStopped() != stopKLine {
		if stopKLine {
			r.logger.Info("suspending kline generation", "symbol", p.Symbol())
		} else {
			r.logger.Info("resuming kline generation", "symbol", p.Symbol())
		}
		p.SetStopKLine(stopKLine)
	}
	if p.Halted() {
		r.logger.Info("resuming trade processing", "symbol", p.Symbol())
		p.SetHalt(false)
	}
}
