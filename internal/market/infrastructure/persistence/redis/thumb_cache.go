// Package redis 最新行情的热缓存实现
package redis

import (
	"context"
	"time"

	"github.com/bitvex/marketcenter/internal/market/domain"
	"github.com/bitvex/marketcenter/pkg/cache"
)

const (
	thumbKeyPrefix = "market:thumb:"
	klineKeyPrefix = "market:kline:"
	thumbTTL       = 48 * time.Hour
)

// ThumbCache 最新简况缓存，供行情查询侧读取
type ThumbCache struct {
	cache *cache.RedisCache
}

// NewThumbCache 创建缓存
func NewThumbCache(c *cache.RedisCache) *ThumbCache {
	return &ThumbCache{cache: c}
}

// SaveThumb 覆盖写入最新简况
func (t *ThumbCache) SaveThumb(ctx context.Context, thumb *domain.CoinThumb) error {
	return t.cache.SetJSON(ctx, thumbKeyPrefix+thumb.Symbol, thumb, thumbTTL)
}

// SaveLatestKLine 覆盖写入该周期最近一根已关闭的 K 线
func (t *ThumbCache) SaveLatestKLine(ctx context.Context, kline *domain.KLine) error {
	key := klineKeyPrefix + kline.Symbol + ":" + kline.Period
	return t.cache.SetJSON(ctx, key, kline, thumbTTL)
}

// LoadThumb 读取最新简况；不存在返回 (nil, nil)
func (t *ThumbCache) LoadThumb(ctx context.Context, symbol string) (*domain.CoinThumb, error) {
	var thumb domain.CoinThumb
	ok, err := t.cache.GetJSON(ctx, thumbKeyPrefix+symbol, &thumb)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &thumb, nil
}
