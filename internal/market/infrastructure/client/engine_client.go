// Package client 撮合引擎与汇率服务的 HTTP 客户端
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bitvex/marketcenter/internal/market/domain"
)

// EngineClient 撮合引擎监控接口的 HTTP 实现
type EngineClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewEngineClient 创建客户端
func NewEngineClient(baseURL string, timeout time.Duration) *EngineClient {
	return &EngineClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// EngineSymbols 拉取引擎当前支持的交易对及状态（1 交易中，2 暂停）
func (c *EngineClient) EngineSymbols(ctx context.Context) (map[string]int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/monitor/engines", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine symbols request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch engine symbols: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine symbols request returned status %d", resp.StatusCode)
	}

	var statuses map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("failed to decode engine symbols: %w", err)
	}
	return statuses, nil
}

// ResumeTrading 把仍未完成的委托单批量回灌给引擎
func (c *EngineClient) ResumeTrading(ctx context.Context, symbol string, orders []*domain.ExchangeOrder) error {
	body, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("failed to marshal resume orders: %w", err)
	}

	url := fmt.Sprintf("%s/monitor/resume-trading?symbol=%s", c.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build resume trading request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to resume trading orders: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("resume trading request returned status %d", resp.StatusCode)
	}
	return nil
}
