// Package mongo 行情历史与委托单的 MongoDB 仓储实现。
// 与原有撮合侧约定一致：每个交易对一个成交集合、每个周期一个 K 线集合。
package mongo

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bitvex/marketcenter/internal/market/domain"
)

// MarketRepository 行情历史仓储
type MarketRepository struct {
	db *mongo.Database
}

// NewMarketRepository 创建仓储
func NewMarketRepository(db *mongo.Database) *MarketRepository {
	return &MarketRepository{db: db}
}

// collectionKey 交易对符号转集合名片段，BTC/USDT -> btc_usdt
func collectionKey(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "/", "_"))
}

// SaveTrades 批量写入成交明细
func (r *MarketRepository) SaveTrades(ctx context.Context, symbol string, trades []*domain.ExchangeTrade) error {
	if len(trades) == 0 {
		return nil
	}
	docs := make([]any, 0, len(trades))
	for _, t := range trades {
		docs = append(docs, tradeDoc(t))
	}
	coll := r.db.Collection("exchange_trade_" + collectionKey(symbol))
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert trades: %w", err)
	}
	return nil
}

// SaveKLine 写入一根已关闭的 K 线；同一开盘时间重复写入时覆盖
func (r *MarketRepository) SaveKLine(ctx context.Context, kline *domain.KLine) error {
	coll := r.db.Collection(fmt.Sprintf("exchange_kline_%s_%s", collectionKey(kline.Symbol), kline.Period))
	filter := bson.M{"time": kline.Time}
	opts := options.Replace().SetUpsert(true)
	if _, err := coll.ReplaceOne(ctx, filter, klineDoc(kline), opts); err != nil {
		return fmt.Errorf("failed to upsert kline: %w", err)
	}
	return nil
}

// FindKLines 查询 [from, to) 区间的 K 线，按时间升序
func (r *MarketRepository) FindKLines(ctx context.Context, symbol, period string, from, to int64) ([]*domain.KLine, error) {
	coll := r.db.Collection(fmt.Sprintf("exchange_kline_%s_%s", collectionKey(symbol), period))
	filter := bson.M{"time": bson.M{"$gte": from, "$lt": to}}
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query klines: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []klineDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode klines: %w", err)
	}
	klines := make([]*domain.KLine, 0, len(docs))
	for i := range docs {
		klines = append(klines, docs[i].toDomain(symbol, period))
	}
	return klines, nil
}
