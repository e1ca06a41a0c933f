package user

import (
	"context"
	"time"
)

// User 用户模型
type User struct {
	ID        int64  `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;size:128;not null"`
	Password  string `gorm:"size:255;not null"` // 已加密密码
	Salt      string `gorm:"size:64"`
	Role      string `gorm:"size:16;index;default:user"` // user / admin
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PurchaseRecord 买家购买历史的投影记录
// 只在对应订单提交的同一事务内追加，订单回滚时一并回滚。
type PurchaseRecord struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"index;not null"`
	OrderID   int64 `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}

// Repository 用户仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, u *User) error
	ListByIDs(ctx context.Context, ids []int64) (map[int64]*User, error)

	// AppendPurchase 向买家购买历史追加一条订单引用
	AppendPurchase(ctx context.Context, userID, orderID int64) error
	// ListPurchaseOrderIDs 买家购买历史中的订单 ID，按追加顺序
	ListPurchaseOrderIDs(ctx context.Context, userID int64) ([]int64, error)
}
