// Package ws 浏览器端的 WebSocket 推送通道，按主题订阅分发
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/bitvex/marketcenter/internal/market/domain"
	"github.com/bitvex/marketcenter/pkg/logger"
)

// 主题命名沿用前端约定
const (
	topicTrade      = "/topic/market/trade/"       // + symbol
	topicTradePlate = "/topic/market/trade-plate/" // + symbol，浅档
	topicTradeDepth = "/topic/market/trade-depth/" // + symbol，深档
	topicKLine      = "/topic/market/kline/"       // + symbol
	topicThumb      = "/topic/market/thumb"
)

const clientSendBuffer = 256

// clientMessage 客户端指令
type clientMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

// serverMessage 服务端下行帧
type serverMessage struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// client 单个浏览器连接。send 队列满视为慢消费者，直接断开，
// 防止单个连接拖垮整个推送面
type client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	subs   map[string]struct{}
	closed bool
}

// trySend 投递一帧下行数据。入队成功返回 true；连接已关闭或队列
// 已满返回 false。写入与 closed 标记在同一把锁下，广播方不可能
// 往已关闭的通道发送。
func (c *client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown 标记连接关闭并结束 writeLoop，幂等
func (c *client) shutdown() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.conn.Close()
}

// Hub 主题订阅表与广播入口，实现 domain.BrowserChannel
type Hub struct {
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	topics map[string]map[*client]struct{}
}

// NewHub 创建推送中心
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		topics: make(map[string]map[*client]struct{}),
	}
}

// ServeWS 升级连接并进入读写循环
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error(r.Context(), "failed to upgrade websocket", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
		subs: make(map[string]struct{}),
	}
	conn.SetReadLimit(1 << 20)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.removeFromAllTopics(c)
		c.shutdown()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendControl(c, "error", "invalid json")
			continue
		}

		switch msg.Type {
		case "subscribe":
			if msg.Topic == "" {
				h.sendControl(c, "error", "missing topic")
				continue
			}
			h.subscribe(c, msg.Topic)
			h.sendControl(c, "ack", "subscribed "+msg.Topic)
		case "unsubscribe":
			if msg.Topic == "" {
				h.sendControl(c, "error", "missing topic")
				continue
			}
			h.unsubscribe(c, msg.Topic)
			h.sendControl(c, "ack", "unsubscribed "+msg.Topic)
		default:
			h.sendControl(c, "error", "unknown type")
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (h *Hub) subscribe(c *client, topic string) {
	h.mu.Lock()
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[*client]struct{})
	}
	h.topics[topic][c] = struct{}{}
	h.mu.Unlock()

	c.mu.Lock()
	c.subs[topic] = struct{}{}
	c.mu.Unlock()
}

func (h *Hub) unsubscribe(c *client, topic string) {
	h.mu.Lock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	h.mu.Unlock()

	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()
}

func (h *Hub) removeFromAllTopics(c *client) {
	c.mu.Lock()
	topics := make([]string, 0, len(c.subs))
	for t := range c.subs {
		topics = append(topics, t)
	}
	c.mu.Unlock()

	for _, t := range topics {
		h.unsubscribe(c, t)
	}
}

// broadcast 将载荷推送到单个主题的所有订阅者。不持锁发送
func (h *Hub) broadcast(topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}
	data, err := json.Marshal(serverMessage{Type: "event", Topic: topic, Data: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal push frame: %w", err)
	}

	h.mu.RLock()
	subs := h.topics[topic]
	targets := make([]*client, 0, len(subs))
	for c := range subs {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if !c.trySend(data) {
			// 慢消费者：断开连接，readLoop 负责清理订阅
			_ = c.conn.Close()
		}
	}
	return nil
}

func (h *Hub) sendControl(c *client, typ, message string) {
	data, _ := json.Marshal(serverMessage{Type: typ, Message: message})
	if !c.trySend(data) {
		_ = c.conn.Close()
	}
}

// PublishTrades 推送一批成交
func (h *Hub) PublishTrades(ctx context.Context, symbol string, trades []*domain.ExchangeTrade) error {
	return h.broadcast(topicTrade+symbol, trades)
}

// PublishPlate 浅档推给盘口主题，深档推给深度主题
func (h *Hub) PublishPlate(ctx context.Context, symbol string, shallow, deep *domain.TradePlateView) error {
	if err := h.broadcast(topicTradePlate+symbol, shallow); err != nil {
		return err
	}
	return h.broadcast(topicTradeDepth+symbol, deep)
}

// PublishKLine 推送一根已关闭的 K 线，载荷内带周期
func (h *Hub) PublishKLine(ctx context.Context, kline *domain.KLine) error {
	return h.broadcast(topicKLine+kline.Symbol, kline)
}

// PublishThumb 推送最新简况，所有交易对共用一个主题
func (h *Hub) PublishThumb(ctx context.Context, thumb *domain.CoinThumb) error {
	return h.broadcast(topicThumb, thumb)
}
