package domain

// CoinEnableOn / CoinEnableOff ExchangeCoin.Enable 的取值
const (
	CoinEnableOn  = 1
	CoinEnableOff = 2
)

// ExchangeCoin 交易对目录条目（静态定义），存于 MySQL
type ExchangeCoin struct {
	ID uint `gorm:"primarykey" json:"id"`
	// Symbol 交易对符号，如 BTC/USDT
	Symbol string `gorm:"column:symbol;type:varchar(32);uniqueIndex;not null" json:"symbol"`
	// CoinSymbol 交易币单位
	CoinSymbol string `gorm:"column:coin_symbol;type:varchar(16);not null" json:"coinSymbol"`
	// BaseSymbol 计价币单位
	BaseSymbol string `gorm:"column:base_symbol;type:varchar(16);not null" json:"baseSymbol"`
	// Enable 1 启用 2 禁用
	Enable int `gorm:"column:enable;type:tinyint;default:1" json:"enable"`
	// Sort 展示排序
	Sort int `gorm:"column:sort;type:int;default:0" json:"sort"`
}

// TableName GORM 表名
func (ExchangeCoin) TableName() string {
	return "exchange_coin"
}
