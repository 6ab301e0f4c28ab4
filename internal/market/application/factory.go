package application

import (
	"sync"
)

// ProcessorFactory 交易对到处理器的注册表。读多写少：
// 事件摄入与推送并发读取，状态同步偶尔增删。
// 处理器必须完整构造后再发布进来。
type ProcessorFactory struct {
	mu         sync.RWMutex
	processors map[string]*CoinProcessor
}

// NewProcessorFactory 创建空注册表
func NewProcessorFactory() *ProcessorFactory {
	return &ProcessorFactory{
		processors: make(map[string]*CoinProcessor),
	}
}

// Get 按交易对查询处理器
func (f *ProcessorFactory) Get(symbol string) (*CoinProcessor, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.processors[symbol]
	return p, ok
}

// Put 注册或替换处理器
func (f *ProcessorFactory) Put(symbol string, p *CoinProcessor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processors[symbol] = p
}

// Remove 移除处理器
func (f *ProcessorFactory) Remove(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.processors, symbol)
}

// All 返回当前注册表的副本
func (f *ProcessorFactory) All() map[string]*CoinProcessor {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]*CoinProcessor, len(f.processors))
	for symbol, p := range f.processors {
		out[symbol] = p
	}
	return out
}

// Size 当前处理器数量
func (f *ProcessorFactory) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.processors)
}
