package service

import (
	"context"
	"errors"

	"github.com/example/flashsale/internal/datamodels/product"
	"github.com/example/flashsale/internal/repository"
)

type ProductService struct {
	store repository.Store
}

func NewProductService(store repository.Store) *ProductService {
	return &ProductService{store: store}
}

func (s *ProductService) ListAll(ctx context.Context) ([]*product.Product, error) {
	return s.store.Repos().Products.ListAll(ctx)
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return s.store.Repos().Products.GetByID(ctx, id)
}

// Create 创建商品，可用库存初始等于总库存
// 开售时间此时为空：没跑过 Activate 的商品不可购买。
func (s *ProductService) Create(ctx context.Context, name, description string, price, totalStock int64) (*product.Product, error) {
	if price < 0 {
		return nil, errors.New("价格不能为负")
	}
	if totalStock < 0 {
		return nil, errors.New("总库存不能为负")
	}
	p := &product.Product{
		Name:           name,
		Description:    description,
		Price:          price,
		TotalStock:     totalStock,
		AvailableStock: totalStock,
	}
	if err := s.store.Repos().Products.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
