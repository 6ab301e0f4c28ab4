package application

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/bitvex/marketcenter/internal/market/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMarketRepository 内存版行情仓储
type fakeMarketRepository struct {
	mu      sync.Mutex
	trades  map[string][]*domain.ExchangeTrade
	klines  []*domain.KLine
	history []*domain.KLine

	saveKLineErr error
	findErr      error
}

func newFakeMarketRepository() *fakeMarketRepository {
	return &fakeMarketRepository{trades: make(map[string][]*domain.ExchangeTrade)}
}

func (f *fakeMarketRepository) SaveTrades(ctx context.Context, symbol string, trades []*domain.ExchangeTrade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades[symbol] = append(f.trades[symbol], trades...)
	return nil
}

func (f *fakeMarketRepository) SaveKLine(ctx context.Context, kline *domain.KLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveKLineErr != nil {
		return f.saveKLineErr
	}
	f.klines = append(f.klines, kline)
	return nil
}

func (f *fakeMarketRepository) FindKLines(ctx context.Context, symbol, period string, from, to int64) ([]*domain.KLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.history, nil
}

func (f *fakeMarketRepository) savedKLines() []*domain.KLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.KLine, len(f.klines))
	copy(out, f.klines)
	return out
}

// fakeThumbCache 内存版热缓存
type fakeThumbCache struct {
	mu           sync.Mutex
	thumbs       map[string]*domain.CoinThumb
	latestKLines map[string]*domain.KLine // symbol:period
}

func newFakeThumbCache() *fakeThumbCache {
	return &fakeThumbCache{
		thumbs:       make(map[string]*domain.CoinThumb),
		latestKLines: make(map[string]*domain.KLine),
	}
}

func (f *fakeThumbCache) SaveThumb(ctx context.Context, thumb *domain.CoinThumb) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thumbs[thumb.Symbol] = thumb
	return nil
}

func (f *fakeThumbCache) SaveLatestKLine(ctx context.Context, kline *domain.KLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latestKLines[kline.Symbol+":"+kline.Period] = kline
	return nil
}

// fakeRateProvider 固定汇率
type fakeRateProvider struct {
	rates map[string]decimal.Decimal
}

func (f *fakeRateProvider) UsdRate(unit string) decimal.Decimal {
	if f == nil || f.rates == nil {
		return decimal.Zero
	}
	return f.rates[unit]
}

// recordingHandler 记录处理链收到的每次调用
type recordingHandler struct {
	mu       sync.Mutex
	trades   []*domain.ExchangeTrade
	klines   []*domain.KLine
	plates   []*domain.TradePlate
	thumbs   []*domain.CoinThumb
	tradeErr error
}

func (h *recordingHandler) OnTrade(ctx context.Context, trade *domain.ExchangeTrade) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trades = append(h.trades, trade)
	return h.tradeErr
}

func (h *recordingHandler) OnKLineClose(ctx context.Context, kline *domain.KLine) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.klines = append(h.klines, kline)
	return nil
}

func (h *recordingHandler) OnPlateChange(ctx context.Context, plate *domain.TradePlate) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.plates = append(h.plates, plate)
	return nil
}

func (h *recordingHandler) OnThumbChange(ctx context.Context, thumb *domain.CoinThumb) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.thumbs = append(h.thumbs, thumb)
	return nil
}

func (h *recordingHandler) closedKLines() []*domain.KLine {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*domain.KLine, len(h.klines))
	copy(out, h.klines)
	return out
}

func (h *recordingHandler) tradeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.trades)
}

// fakeBrowserChannel 记录浏览器通道收到的推送
type fakeBrowserChannel struct {
	mu          sync.Mutex
	tradeBatch  map[string][][]*domain.ExchangeTrade
	plateViews  map[string][]*domain.TradePlateView // 浅档
	depthViews  map[string][]*domain.TradePlateView // 深档
	klinePushes []*domain.KLine
	thumbPushes []*domain.CoinThumb
	plateErr    error
}

func newFakeBrowserChannel() *fakeBrowserChannel {
	return &fakeBrowserChannel{
		tradeBatch: make(map[string][][]*domain.ExchangeTrade),
		plateViews: make(map[string][]*domain.TradePlateView),
		depthViews: make(map[string][]*domain.TradePlateView),
	}
}

func (f *fakeBrowserChannel) PublishTrades(ctx context.Context, symbol string, trades []*domain.ExchangeTrade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tradeBatch[symbol] = append(f.tradeBatch[symbol], trades)
	return nil
}

func (f *fakeBrowserChannel) PublishKLine(ctx context.Context, kline *domain.KLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.klinePushes = append(f.klinePushes, kline)
	return nil
}

func (f *fakeBrowserChannel) PublishPlate(ctx context.Context, symbol string, shallow, deep *domain.TradePlateView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.plateErr != nil {
		return f.plateErr
	}
	f.plateViews[symbol] = append(f.plateViews[symbol], shallow)
	f.depthViews[symbol] = append(f.depthViews[symbol], deep)
	return nil
}

func (f *fakeBrowserChannel) PublishThumb(ctx context.Context, thumb *domain.CoinThumb) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thumbPushes = append(f.thumbPushes, thumb)
	return nil
}

// fakeGatewayChannel 记录网关通道收到的盘口通知
type fakeGatewayChannel struct {
	mu     sync.Mutex
	plates map[string][]*domain.TradePlateView
}

func newFakeGatewayChannel() *fakeGatewayChannel {
	return &fakeGatewayChannel{plates: make(map[string][]*domain.TradePlateView)}
}

func (f *fakeGatewayChannel) HandlePlate(ctx context.Context, symbol string, plate *domain.TradePlateView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plates[symbol] = append(f.plates[symbol], plate)
	return nil
}

// fakeEngineClient 固定的交易对状态表
type fakeEngineClient struct {
	mu       sync.Mutex
	statuses map[string]int
	err      error

	resumed   map[string][]*domain.ExchangeOrder
	resumeErr error
}

func newFakeEngineClient(statuses map[string]int) *fakeEngineClient {
	return &fakeEngineClient{
		statuses: statuses,
		resumed:  make(map[string][]*domain.ExchangeOrder),
	}
}

func (f *fakeEngineClient) EngineSymbols(ctx context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]int, len(f.statuses))
	for k, v := range f.statuses {
		out[k] = v
	}
	return out, nil
}

func (f *fakeEngineClient) ResumeTrading(ctx context.Context, symbol string, orders []*domain.ExchangeOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resumeErr != nil {
		return f.resumeErr
	}
	f.resumed[symbol] = append(f.resumed[symbol], orders...)
	return nil
}

// fakeCoinRepository 内存版交易对目录
type fakeCoinRepository struct {
	coins map[string]*domain.ExchangeCoin
}

func newFakeCoinRepository(coins ...*domain.ExchangeCoin) *fakeCoinRepository {
	m := make(map[string]*domain.ExchangeCoin)
	for _, c := range coins {
		m[c.Symbol] = c
	}
	return &fakeCoinRepository{coins: m}
}

func (f *fakeCoinRepository) FindBySymbol(ctx context.Context, symbol string) (*domain.ExchangeCoin, error) {
	return f.coins[symbol], nil
}

func (f *fakeCoinRepository) FindAllEnabled(ctx context.Context) ([]*domain.ExchangeCoin, error) {
	out := make([]*domain.ExchangeCoin, 0, len(f.coins))
	for _, c := range f.coins {
		out = append(out, c)
	}
	return out, nil
}

// fakeOrderRepository 内存版委托单仓储
type fakeOrderRepository struct {
	orders     map[string][]*domain.ExchangeOrder
	details    map[string][]*domain.ExchangeOrderDetail
	ordersErr  error
	detailsErr map[string]error
}

func newFakeOrderRepository() *fakeOrderRepository {
	return &fakeOrderRepository{
		orders:     make(map[string][]*domain.ExchangeOrder),
		details:    make(map[string][]*domain.ExchangeOrderDetail),
		detailsErr: make(map[string]error),
	}
}

func (f *fakeOrderRepository) FindTradingOrders(ctx context.Context, symbol string) ([]*domain.ExchangeOrder, error) {
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	return f.orders[symbol], nil
}

func (f *fakeOrderRepository) FindOrderDetails(ctx context.Context, orderID string) ([]*domain.ExchangeOrderDetail, error) {
	if err := f.detailsErr[orderID]; err != nil {
		return nil, err
	}
	return f.details[orderID], nil
}

// fakeCompletionNotifier 记录完成通知
type fakeCompletionNotifier struct {
	mu      sync.Mutex
	batches [][]*domain.ExchangeOrder
	err     error
}

func (f *fakeCompletionNotifier) NotifyCompleted(ctx context.Context, orders []*domain.ExchangeOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, orders)
	return nil
}
