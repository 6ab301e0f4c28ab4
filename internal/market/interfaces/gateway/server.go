// Package gateway 原生客户端长连接网关。
// 帧格式：4 字节大端长度前缀 + JSON 载荷
package gateway

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/bitvex/marketcenter/internal/market/domain"
	"github.com/bitvex/marketcenter/pkg/logger"
)

const (
	headerSize      = 4
	connSendBuffer  = 64
	defaultMaxFrame = 1 << 20
)

// commandFrame 客户端上行指令
type commandFrame struct {
	Cmd    string `json:"cmd"`
	Symbol string `json:"symbol"`
}

// pushFrame 服务端下行推送
type pushFrame struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
	Data   any    `json:"data"`
}

// conn 一条网关连接和它订阅的交易对
type conn struct {
	raw  net.Conn
	send chan []byte

	mu     sync.Mutex
	subs   map[string]struct{}
	closed bool
}

func (c *conn) subscribed(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[symbol]
	return ok
}

// trySend 投递一帧下行数据。连接已关闭或队列已满返回 false。
// 写入与 closed 标记在同一把锁下，推送方不可能往已关闭的通道发送。
func (c *conn) trySend(data []byte) bool {
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
func (c *conn) shutdown() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.raw.Close()
}

// Server 网关服务，实现 domain.GatewayChannel
type Server struct {
	addr     string
	maxFrame int

	mu    sync.RWMutex
	conns map[*conn]struct{}

	listener net.Listener
}

// NewServer 创建网关服务
func NewServer(addr string, maxFrame int) *Server {
	if maxFrame <= 0 {
		maxFrame = defaultMaxFrame
	}
	return &Server{
		addr:     addr,
		maxFrame: maxFrame,
		conns:    make(map[*conn]struct{}),
	}
}

// Start 开始监听并接受连接，直到 ctx 取消
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	logger.Info(ctx, "gateway server listening", "addr", s.addr)

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	go func() {
		for {
			raw, err := listener.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logger.Error(ctx, "failed to accept gateway connection", "error", err)
				continue
			}
			c := &conn{
				raw:  raw,
				send: make(chan []byte, connSendBuffer),
				subs: make(map[string]struct{}),
			}
			s.add(c)
			go s.writeLoop(c)
			go s.readLoop(ctx, c)
		}
	}()
	return nil
}

// Addr 实际监听地址；未启动时返回空串
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) add(c *conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) remove(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) readLoop(ctx context.Context, c *conn) {
	defer func() {
		s.remove(c)
		c.shutdown()
	}()

	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(c.raw, header); err != nil {
			return
		}
		size := binary.BigEndian.Uint32(header)
		if size == 0 || int(size) > s.maxFrame {
			logger.Warn(ctx, "gateway frame size out of range, closing connection",
				"remote", c.raw.RemoteAddr().String(), "size", size)
			return
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(c.raw, payload); err != nil {
			return
		}

		var cmd commandFrame
		if err := json.Unmarshal(payload, &cmd); err != nil {
			logger.Warn(ctx, "gateway frame decode failed", "error", err)
			continue
		}
		s.handleCommand(c, &cmd)
	}
}

func (s *Server) handleCommand(c *conn, cmd *commandFrame) {
	if cmd.Symbol == "" {
		return
	}
	switch cmd.Cmd {
	case "SUBSCRIBE":
		c.mu.Lock()
		c.subs[cmd.Symbol] = struct{}{}
		c.mu.Unlock()
	case "UNSUBSCRIBE":
		c.mu.Lock()
		delete(c.subs, cmd.Symbol)
		c.mu.Unlock()
	}
}

func (s *Server) writeLoop(c *conn) {
	header := make([]byte, headerSize)
	for data := range c.send {
		binary.BigEndian.PutUint32(header, uint32(len(data)))
		if _, err := c.raw.Write(header); err != nil {
			return
		}
		if _, err := c.raw.Write(data); err != nil {
			return
		}
	}
}

// HandlePlate 将盘口渲染推送给订阅该交易对的全部连接
func (s *Server) HandlePlate(ctx context.Context, symbol string, plate *domain.TradePlateView) error {
	data, err := json.Marshal(pushFrame{Type: "trade-plate", Symbol: symbol, Data: plate})
	if err != nil {
		return fmt.Errorf("failed to marshal plate frame: %w", err)
	}

	s.mu.RLock()
	targets := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.RUnlock()

	for _, c := range targets {
		if !c.subscribed(symbol) {
			continue
		}
		if !c.trySend(data) {
			// 慢消费者断开，readLoop 负责清理
			_ = c.raw.Close()
		}
	}
	return nil
}
