package product

import (
	"context"
	"time"
)

// Product 商品模型
// AvailableStock 只允许通过 TryReserve（条件扣减）和 ResetSale（开售重置）变化，
// 其它路径不得直接改写该字段。
type Product struct {
	ID             int64      `gorm:"primaryKey"`
	Name           string     `gorm:"size:128;not null"`
	Description    string     `gorm:"size:512"`
	Price          int64      `gorm:"not null"` // 分
	TotalStock     int64      `gorm:"not null"` // 创建后不再变化
	AvailableStock int64      `gorm:"not null;index"`
	SaleStartTime  *time.Time `gorm:"index"` // NULL 表示从未开售
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SaleActive 判断当前是否处于可购买窗口：已设置开售时间、已到时且还有库存
// 仅凭库存大于 0 不能视为开售。
func (p *Product) SaleActive(now time.Time) bool {
	return p.SaleStartTime != nil && !now.Before(*p.SaleStartTime) && p.AvailableStock > 0
}

// Repository 商品仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)
	Create(ctx context.Context, p *Product) error

	// TryReserve 原子条件扣减：仅当 available_stock >= qty 时扣减 qty，
	// 读改写对所有并发调用方不可分割。返回扣减后的剩余库存。
	// 商品不存在返回 apperr.ErrProductNotFound；
	// 从未开售或未到开售时间返回 apperr.ErrSaleNotActive；
	// 时间窗口已开但库存不够本次数量（含竞争中被抢光）返回
	// apperr.ErrInsufficientStock——这是竞争落败的正常结果，不是异常。
	TryReserve(ctx context.Context, id, qty int64) (remaining int64, err error)

	// ResetSale 开售重置：一次性写入 sale_start_time = startTime 且
	// available_stock = total_stock，与并发的 TryReserve 由同一行级原子机制线性化。
	// 商品不存在返回 apperr.ErrProductNotFound；
	// 上一场秒杀（sale_start_time 非空）仍有剩余库存时返回
	// apperr.ErrSaleAlreadyActive，从未开售的商品首次开售不受库存限制。
	ResetSale(ctx context.Context, id int64, startTime time.Time) (*Product, error)
}
