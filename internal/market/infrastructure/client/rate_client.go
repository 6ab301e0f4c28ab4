package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RateClient 汇率服务客户端。后台周期刷新，UsdRate 只读内存缓存，
// 永不阻塞调用方：刷新失败时沿用最后一次已知汇率，从未取到过则返回零值。
type RateClient struct {
	baseURL    string
	httpClient *http.Client
	interval   time.Duration
	logger     *slog.Logger

	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewRateClient 创建客户端
func NewRateClient(baseURL string, timeout, interval time.Duration, logger *slog.Logger) *RateClient {
	return &RateClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		interval:   interval,
		logger:     logger,
		rates:      make(map[string]decimal.Decimal),
	}
}

// UsdRate 返回单位币种折美元汇率；未知币种返回零值
func (c *RateClient) UsdRate(unit string) decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rates[unit]
}

// Start 启动后台刷新循环，直到 ctx 取消。首次刷新同步执行，
// 失败只记录，不阻止启动。
func (c *RateClient) Start(ctx context.Context) {
	if err := c.refresh(ctx); err != nil {
		c.logger.Error("initial exchange rate refresh failed", "error", err)
	}
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.refresh(ctx); err != nil {
					c.logger.Error("exchange rate refresh failed, keeping last known rates", "error", err)
				}
			}
		}
	}()
}

// refresh 拉取全量汇率表 {unit: rate}
func (c *RateClient) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rate/usd", nil)
	if err != nil {
		return fmt.Errorf("failed to build rate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch usd rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rate request returned status %d", resp.StatusCode)
	}

	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode usd rates: %w", err)
	}

	rates := make(map[string]decimal.Decimal, len(raw))
	for unit, value := range raw {
		rate, err := decimal.NewFromString(value)
		if err != nil {
			c.logger.Warn("dropping malformed usd rate", "unit", unit, "value", value)
			continue
		}
		rates[unit] = rate
	}

	c.mu.Lock()
	for unit, rate := range rates {
		c.rates[unit] = rate
	}
	c.mu.Unlock()
	return nil
}

// SetRate 手工设置汇率，便于测试与静态配置
func (c *RateClient) SetRate(unit string, rate decimal.Decimal) {
	c.mu.Lock()
	c.rates[unit] = rate
	c.mu.Unlock()
}
