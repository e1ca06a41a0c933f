package order

import (
	"context"
	"time"
)

// Order 订单模型，只增不改的购买事实账本
// UnitPrice 是下单时刻商品价格的快照，后续商品调价不回写。
type Order struct {
	ID           int64     `gorm:"primaryKey"`
	UserID       int64     `gorm:"index;not null"`
	ProductID    int64     `gorm:"index;not null"`
	Quantity     int64     `gorm:"not null"`
	UnitPrice    int64     `gorm:"not null"` // 分
	TotalAmount  int64     `gorm:"not null"` // UnitPrice * Quantity
	PurchaseTime time.Time `gorm:"index;not null"`
	Successful   bool      `gorm:"index;not null"`
	CreatedAt    time.Time
}

// Repository 订单仓储接口，账本语义：没有更新和删除
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)

	// ListByUser 某买家的全部订单，按购买时间倒序
	ListByUser(ctx context.Context, userID int64) ([]*Order, error)

	// ListSuccessfulByProduct 某商品的成功订单，按购买时间正序（先买到的在前）
	ListSuccessfulByProduct(ctx context.Context, productID int64) ([]*Order, error)

	// ListSuccessful 全部成功订单，按购买时间正序
	ListSuccessful(ctx context.Context) ([]*Order, error)
}
