// Package metrics 提供 Prometheus helper，包含行情处理与推送的常用指标
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bitvex/marketcenter/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// 已处理成交数
	TradesProcessed prometheus.Counter
	// 已关闭 K 线数
	KLinesClosed prometheus.Counter
	// 丢弃的非法消息数
	MessagesDropped prometheus.Counter

	// 推送批次计数
	TradePushes prometheus.Counter
	PlatePushes prometheus.Counter
	ThumbPushes prometheus.Counter
	// 跳过的推送周期（上一轮尚未完成）
	PushTicksSkipped prometheus.Counter

	// 活跃交易对处理器数
	ProcessorsActive prometheus.Gauge
	// 状态同步执行计数
	ReconcileRuns prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		TradesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "trades_processed_total",
			Help:      "Total trade executions processed",
		}),
		KLinesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "klines_closed_total",
			Help:      "Total kline bars closed",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "messages_dropped_total",
			Help:      "Total malformed bus messages dropped",
		}),
		TradePushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "trade_pushes_total",
			Help:      "Total trade batches pushed downstream",
		}),
		PlatePushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "plate_pushes_total",
			Help:      "Total trade plate updates pushed downstream",
		}),
		ThumbPushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "thumb_pushes_total",
			Help:      "Total thumb updates pushed downstream",
		}),
		PushTicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "push_ticks_skipped_total",
			Help:      "Total flush ticks skipped because the previous flush was still running",
		}),
		ProcessorsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "processors_active",
			Help:      "Number of active symbol processors",
		}),
		ReconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exchange",
			Subsystem: serviceName,
			Name:      "reconcile_runs_total",
			Help:      "Total reconciliation passes against the matching engine",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.TradesProcessed,
		m.KLinesClosed,
		m.MessagesDropped,
		m.TradePushes,
		m.PlatePushes,
		m.ThumbPushes,
		m.PushTicksSkipped,
		m.ProcessorsActive,
		m.ReconcileRuns,
	}
	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting metrics HTTP server", "addr", addr, "path", path)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error(context.Background(), "metrics HTTP server exited", "error", err)
		}
	}()
}
