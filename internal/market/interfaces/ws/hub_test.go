package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitvex/marketcenter/internal/market/domain"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func subscribe(t *testing.T, conn *websocket.Conn, topic string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "subscribe", Topic: topic}))

	// ack 返回后订阅必然已登记
	var ack serverMessage
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "ack", ack.Type)
}

func readEvent(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg serverMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func Test_Hub_SubscribePublishThumb(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)
	subscribe(t, conn, topicThumb)

	thumb := &domain.CoinThumb{Symbol: "BTC/USDT", Close: decimal.NewFromInt(100)}
	require.NoError(t, hub.PublishThumb(context.Background(), thumb))

	msg := readEvent(t, conn)
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, topicThumb, msg.Topic)

	var got domain.CoinThumb
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "BTC/USDT", got.Symbol)
	assert.True(t, got.Close.Equal(decimal.NewFromInt(100)))
}

func Test_Hub_PublishKLine(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)
	subscribe(t, conn, topicKLine+"BTC/USDT")

	kline := &domain.KLine{Symbol: "BTC/USDT", Period: "1min",
		ClosePrice: decimal.NewFromInt(101), Time: 1000}
	require.NoError(t, hub.PublishKLine(context.Background(), kline))

	msg := readEvent(t, conn)
	assert.Equal(t, topicKLine+"BTC/USDT", msg.Topic)

	var got domain.KLine
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "1min", got.Period)
	assert.True(t, got.ClosePrice.Equal(decimal.NewFromInt(101)))
}

func Test_Hub_PublishPlate_ShallowAndDeepTopics(t *testing.T) {
	hub := NewHub()
	shallowConn := dialHub(t, hub)
	deepConn := dialHub(t, hub)
	subscribe(t, shallowConn, topicTradePlate+"BTC/USDT")
	subscribe(t, deepConn, topicTradeDepth+"BTC/USDT")

	shallow := &domain.TradePlateView{Symbol: "BTC/USDT", Direction: domain.DirectionBuy,
		Items: []domain.TradePlateItem{{Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(1)}}}
	deep := &domain.TradePlateView{Symbol: "BTC/USDT", Direction: domain.DirectionBuy,
		Items: []domain.TradePlateItem{
			{Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(1)},
			{Price: decimal.NewFromInt(99), Amount: decimal.NewFromInt(2)},
		}}
	require.NoError(t, hub.PublishPlate(context.Background(), "BTC/USDT", shallow, deep))

	var gotShallow, gotDeep domain.TradePlateView
	msg := readEvent(t, shallowConn)
	require.NoError(t, json.Unmarshal(msg.Data, &gotShallow))
	msg = readEvent(t, deepConn)
	require.NoError(t, json.Unmarshal(msg.Data, &gotDeep))

	assert.Len(t, gotShallow.Items, 1)
	assert.Len(t, gotDeep.Items, 2)
}

func Test_Hub_PublishTrades_OnlySubscribedSymbol(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)
	subscribe(t, conn, topicTrade+"BTC/USDT")

	other := []*domain.ExchangeTrade{{Symbol: "ETH/USDT", Price: decimal.NewFromInt(10),
		Amount: decimal.NewFromInt(1), Direction: domain.DirectionBuy, Time: 1000}}
	require.NoError(t, hub.PublishTrades(context.Background(), "ETH/USDT", other))

	mine := []*domain.ExchangeTrade{{Symbol: "BTC/USDT", Price: decimal.NewFromInt(100),
		Amount: decimal.NewFromInt(1), Direction: domain.DirectionBuy, Time: 2000}}
	require.NoError(t, hub.PublishTrades(context.Background(), "BTC/USDT", mine))

	// 收到的第一条事件必须是自己订阅的交易对
	msg := readEvent(t, conn)
	assert.Equal(t, topicTrade+"BTC/USDT", msg.Topic)
}

func Test_Hub_Unsubscribe(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)
	subscribe(t, conn, topicThumb)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "unsubscribe", Topic: topicThumb}))
	var ack serverMessage
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "ack", ack.Type)

	require.NoError(t, hub.PublishThumb(context.Background(),
		&domain.CoinThumb{Symbol: "BTC/USDT"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var msg serverMessage
	err := conn.ReadJSON(&msg)
	assert.Error(t, err)
}

// 客户端断开与广播并发进行时，推送面不允许崩溃：
// readLoop 退出时关闭 send 通道与广播方的写入必须互斥
func Test_Hub_BroadcastDuringDisconnect(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	const clients = 50
	conns := make([]*websocket.Conn, 0, clients)
	for i := 0; i < clients; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		subscribe(t, conn, topicThumb)
		conns = append(conns, conn)
	}

	thumb := &domain.CoinThumb{Symbol: "BTC/USDT", Close: decimal.NewFromInt(100)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			assert.NoError(t, hub.PublishThumb(context.Background(), thumb))
		}
	}()

	// 广播过程中陆续断开全部客户端
	for _, conn := range conns {
		_ = conn.Close()
	}
	<-done
}

func Test_Hub_InvalidCommand(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var msg serverMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: "subscribe"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
}
