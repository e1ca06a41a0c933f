package repository

import (
	"context"

	"github.com/example/flashsale/internal/datamodels/order"
	"github.com/example/flashsale/internal/datamodels/product"
	"github.com/example/flashsale/internal/datamodels/user"
)

// Repos 一组仓储句柄，同一 Repos 内的操作落在同一个事务（或自动提交）作用域
type Repos struct {
	Products product.Repository
	Orders   order.Repository
	Users    user.Repository
}

// Store 事务性存储入口
// Repos 返回自动提交语义的仓储；Do 在单个事务内执行 fn，
// fn 返回错误时整个事务回滚，不留下任何半完成状态。
type Store interface {
	Repos() Repos
	Do(ctx context.Context, fn func(Repos) error) error
}
