package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/example/flashsale/internal/apperr"
	"github.com/example/flashsale/internal/datamodels/product"
)

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) product.Repository {
	return &productRepo{db: db}
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	var p product.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) ListAll(ctx context.Context) ([]*product.Product, error) {
	var list []*product.Product
	if err := r.db.WithContext(ctx).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *productRepo) Create(ctx context.Context, p *product.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// TryReserve 条件扣减库存
// 扣减本身是一条带 available_stock >= ? 守卫的 UPDATE，由数据库行级原子性保证
// 不存在先读后写的竞态窗口；没命中守卫的调用方即竞争失败。
func (r *productRepo) TryReserve(ctx context.Context, id, qty int64) (int64, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	if p.SaleStartTime == nil || now.Before(*p.SaleStartTime) {
		return 0, apperr.ErrSaleNotActive
	}

	res := r.db.WithContext(ctx).Model(&product.Product{}).
		Where("id = ? AND available_stock >= ?", id, qty).
		Update("available_stock", gorm.Expr("available_stock - ?", qty))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		// 库存为正但不够本次数量：竞争落败，正常业务结果
		return 0, apperr.ErrInsufficientStock
	}

	var remaining int64
	if err := r.db.WithContext(ctx).Model(&product.Product{}).
		Where("id = ?", id).
		Pluck("available_stock", &remaining).Error; err != nil {
		return 0, err
	}
	return remaining, nil
}

// ResetSale 开售重置
// 写入同样是一条带 available_stock = 0 守卫的 UPDATE，与 TryReserve 的扣减
// 在同一行上串行化，不会出现半生效的重置值。
func (r *productRepo) ResetSale(ctx context.Context, id int64, startTime time.Time) (*product.Product, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}

	res := r.db.WithContext(ctx).Model(&product.Product{}).
		Where("id = ? AND (sale_start_time IS NULL OR available_stock = 0)", id).
		Updates(map[string]interface{}{
			"sale_start_time": startTime,
			"available_stock": gorm.Expr("total_stock"),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// 上一场秒杀还有剩余库存，拒绝叠加开售
		return nil, apperr.ErrSaleAlreadyActive
	}
	return r.GetByID(ctx, id)
}
