package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bitvex/marketcenter/internal/market/domain"
)

// OrderRepository 委托单仓储，仅服务启动重放
type OrderRepository struct {
	db *mongo.Database
}

// NewOrderRepository 创建仓储
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindTradingOrders 查询指定交易对所有交易中的委托单
func (r *OrderRepository) FindTradingOrders(ctx context.Context, symbol string) ([]*domain.ExchangeOrder, error) {
	coll := r.db.Collection("exchange_order")
	filter := bson.M{
		"symbol": symbol,
		"status": string(domain.OrderStatusTrading),
	}

	cursor, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query trading orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode trading orders: %w", err)
	}
	orders := make([]*domain.ExchangeOrder, 0, len(docs))
	for i := range docs {
		orders = append(orders, docs[i].toDomain())
	}
	return orders, nil
}

// FindOrderDetails 查询委托单的全部成交明细，按时间升序
func (r *OrderRepository) FindOrderDetails(ctx context.Context, orderID string) ([]*domain.ExchangeOrderDetail, error) {
	coll := r.db.Collection("exchange_order_detail")
	filter := bson.M{"orderId": orderID}
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: 1}})

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query order details: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []orderDetailDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode order details: %w", err)
	}
	details := make([]*domain.ExchangeOrderDetail, 0, len(docs))
	for i := range docs {
		details = append(details, docs[i].toDomain())
	}
	return details, nil
}
