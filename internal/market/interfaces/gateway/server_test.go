package gateway

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitvex/marketcenter/internal/market/domain"
)

func writeFrame(t *testing.T, conn net.Conn, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header, uint32(len(data)))
	_, err = conn.Write(append(header, data...))
	require.NoError(t, err)
}

func tryReadFrame(conn net.Conn, wait time.Duration) ([]byte, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, false
	}
	payload := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, false
	}
	return payload, true
}

func Test_GatewayServer_SubscribeAndPush(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer("127.0.0.1:0", 0)
	require.NoError(t, s.Start(ctx))

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	writeFrame(t, conn, commandFrame{Cmd: "SUBSCRIBE", Symbol: "BTC/USDT"})

	view := &domain.TradePlateView{
		Symbol:    "BTC/USDT",
		Direction: domain.DirectionBuy,
		Items: []domain.TradePlateItem{
			{Price: decimal.NewFromInt(100), Amount: decimal.NewFromInt(1)},
		},
	}

	var payload []byte
	// 订阅指令是异步处理的，推送重试到订阅生效为止
	require.Eventually(t, func() bool {
		require.NoError(t, s.HandlePlate(ctx, "BTC/USDT", view))
		data, ok := tryReadFrame(conn, 100*time.Millisecond)
		if ok {
			payload = data
		}
		return ok
	}, 3*time.Second, 50*time.Millisecond)

	var frame struct {
		Type   string                `json:"type"`
		Symbol string                `json:"symbol"`
		Data   domain.TradePlateView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &frame))
	assert.Equal(t, "trade-plate", frame.Type)
	assert.Equal(t, "BTC/USDT", frame.Symbol)
	require.Len(t, frame.Data.Items, 1)
	assert.True(t, frame.Data.Items[0].Price.Equal(decimal.NewFromInt(100)))
}

func Test_GatewayServer_UnsubscribedSymbolNotPushed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer("127.0.0.1:0", 0)
	require.NoError(t, s.Start(ctx))

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	writeFrame(t, conn, commandFrame{Cmd: "SUBSCRIBE", Symbol: "BTC/USDT"})
	// 给读循环时间处理订阅
	time.Sleep(100 * time.Millisecond)

	view := &domain.TradePlateView{Symbol: "ETH/USDT", Direction: domain.DirectionBuy}
	require.NoError(t, s.HandlePlate(ctx, "ETH/USDT", view))

	_, ok := tryReadFrame(conn, 200*time.Millisecond)
	assert.False(t, ok)
}

// 客户端断开与推送并发进行时，推送面不允许崩溃：
// 断开方关闭 send 通道与推送方的写入必须互斥
func Test_GatewayServer_PushDuringDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer("127.0.0.1:0", 0)
	require.NoError(t, s.Start(ctx))

	const clients = 50
	conns := make([]net.Conn, 0, clients)
	for i := 0; i < clients; i++ {
		conn, err := net.Dial("tcp", s.Addr())
		require.NoError(t, err)
		writeFrame(t, conn, commandFrame{Cmd: "SUBSCRIBE", Symbol: "BTC/USDT"})
		conns = append(conns, conn)
	}
	// 给读循环时间处理订阅
	time.Sleep(100 * time.Millisecond)

	view := &domain.TradePlateView{Symbol: "BTC/USDT", Direction: domain.DirectionBuy}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			assert.NoError(t, s.HandlePlate(ctx, "BTC/USDT", view))
		}
	}()

	// 推送过程中陆续断开全部客户端
	for _, conn := range conns {
		_ = conn.Close()
	}
	<-done
}

func Test_GatewayServer_OversizedFrameClosesConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer("127.0.0.1:0", 64)
	require.NoError(t, s.Start(ctx))

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header, 1024)
	_, err = conn.Write(header)
	require.NoError(t, err)

	// 服务端应当断开连接
	require.Eventually(t, func() bool {
		_ = conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		_, err := conn.Read(make([]byte, 1))
		return err == io.EOF
	}, 3*time.Second, 50*time.Millisecond)
}
