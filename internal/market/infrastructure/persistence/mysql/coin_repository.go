// Package mysql 交易对目录的 MySQL 仓储实现
package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/bitvex/marketcenter/internal/market/domain"
)

// CoinRepository 交易对目录仓储
type CoinRepository struct {
	db *gorm.DB
}

// NewCoinRepository 创建仓储
func NewCoinRepository(db *gorm.DB) *CoinRepository {
	return &CoinRepository{db: db}
}

// FindBySymbol 按符号查询交易对定义；不存在返回 (nil, nil)
func (r *CoinRepository) FindBySymbol(ctx context.Context, symbol string) (*domain.ExchangeCoin, error) {
	var coin domain.ExchangeCoin
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&coin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange coin: %w", err)
	}
	return &coin, nil
}

// FindAllEnabled 查询所有启用的交易对，按排序值升序
func (r *CoinRepository) FindAllEnabled(ctx context.Context) ([]*domain.ExchangeCoin, error) {
	var coins []*domain.ExchangeCoin
	err := r.db.WithContext(ctx).
		Where("enable = ?", domain.CoinEnableOn).
		Order("sort asc").
		Find(&coins).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled exchange coins: %w", err)
	}
	return coins, nil
}
