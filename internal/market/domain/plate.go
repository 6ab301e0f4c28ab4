package domain

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrNegativeAmount 盘口档位出现负的聚合数量，属于程序不变量被破坏
var ErrNegativeAmount = errors.New("trade plate level has negative aggregate amount")

// TradePlateItem 盘口单个档位
type TradePlateItem struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// TradePlate 单交易对、单方向的盘口：按最优价优先排序的档位序列。
// 买盘价格降序，卖盘价格升序；同价档位唯一；数量归零的档位被移除。
// 写入方唯一（所属交易对的处理器），对外推送一律使用快照。
type TradePlate struct {
	Symbol    string
	Direction Direction
	items     []TradePlateItem
}

// NewTradePlate 创建空盘口
func NewTradePlate(symbol string, direction Direction) *TradePlate {
	return &TradePlate{
		Symbol:    symbol,
		Direction: direction,
		items:     make([]TradePlateItem, 0, 64),
	}
}

// Depth 当前档位数
func (p *TradePlate) Depth() int {
	return len(p.items)
}

// Apply 在 price 档位上累加 delta。档位不存在时按排序规则插入；
// 累加后数量为零的档位被移除；数量为负视为不变量被破坏，档位被移除
// 并返回 ErrNegativeAmount，由调用方决定该交易对的处置。
func (p *TradePlate) Apply(price, delta decimal.Decimal) error {
	idx := p.search(price)
	if idx < len(p.items) && p.items[idx].Price.Equal(price) {
		amount := p.items[idx].Amount.Add(delta)
		if amount.Sign() > 0 {
			p.items[idx].Amount = amount
			return nil
		}
		p.items = append(p.items[:idx], p.items[idx+1:]...)
		if amount.Sign() < 0 {
			return ErrNegativeAmount
		}
		return nil
	}

	if delta.Sign() < 0 {
		return ErrNegativeAmount
	}
	if delta.Sign() == 0 {
		return nil
	}
	p.items = append(p.items, TradePlateItem{})
	copy(p.items[idx+1:], p.items[idx:])
	p.items[idx] = TradePlateItem{Price: price, Amount: delta}
	return nil
}

// search 返回 price 在排序序列中的插入位置
func (p *TradePlate) search(price decimal.Decimal) int {
	if p.Direction == DirectionBuy {
		// 买盘降序
		return sort.Search(len(p.items), func(i int) bool {
			return p.items[i].Price.LessThanOrEqual(price)
		})
	}
	// 卖盘升序
	return sort.Search(len(p.items), func(i int) bool {
		return p.items[i].Price.GreaterThanOrEqual(price)
	})
}

// BestPrice 最优价；空盘口返回零值
func (p *TradePlate) BestPrice() decimal.Decimal {
	if len(p.items) == 0 {
		return decimal.Zero
	}
	return p.items[0].Price
}

// Snapshot 深拷贝当前盘口，供推送队列持有
func (p *TradePlate) Snapshot() *TradePlate {
	items := make([]TradePlateItem, len(p.items))
	copy(items, p.items)
	return &TradePlate{Symbol: p.Symbol, Direction: p.Direction, items: items}
}

// Render 返回前 depth 档的只读视图，不修改盘口状态
func (p *TradePlate) Render(depth int) *TradePlateView {
	if depth > len(p.items) {
		depth = len(p.items)
	}
	view := &TradePlateView{
		Symbol:    p.Symbol,
		Direction: p.Direction,
		Items:     make([]TradePlateItem, depth),
	}
	copy(view.Items, p.items[:depth])
	for _, item := range view.Items {
		view.TotalAmount = view.TotalAmount.Add(item.Amount)
	}
	if depth > 0 {
		view.HighestPrice = view.Items[0].Price
		view.LowestPrice = view.Items[depth-1].Price
		if p.Direction == DirectionSell {
			view.HighestPrice, view.LowestPrice = view.LowestPrice, view.HighestPrice
		}
	}
	return view
}

// TradePlateView 盘口的对外渲染形式
type TradePlateView struct {
	Symbol       string           `json:"symbol"`
	Direction    Direction        `json:"direction"`
	HighestPrice decimal.Decimal  `json:"highestPrice"`
	LowestPrice  decimal.Decimal  `json:"lowestPrice"`
	TotalAmount  decimal.Decimal  `json:"totalAmount"`
	Items        []TradePlateItem `json:"items"`
}
