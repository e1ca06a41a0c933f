package service

import (
	"context"
	"fmt"
	"log"
	"time"

	radix "github.com/mediocregopher/radix/v3"

	"github.com/example/flashsale/internal/datamodels/product"
	"github.com/example/flashsale/internal/repository"
)

// SaleService 秒杀窗口管理
// 开售 = 设置开售时间 + 把可用库存重置为总库存，二者是同一条条件写，
// 上一场还有剩余库存时拒绝叠加开售。
type SaleService struct {
	store repository.Store
	redis radix.Client // 可为 nil
}

// NewSaleService 创建秒杀窗口服务
func NewSaleService(store repository.Store, redis radix.Client) *SaleService {
	return &SaleService{store: store, redis: redis}
}

// Activate 为商品设置新一场秒杀
// 条件写由仓储的 ResetSale 保证：与并发购买的扣减在同一行上串行化，
// 不会出现基于半生效重置值的扣减。
func (s *SaleService) Activate(ctx context.Context, productID int64, startTime time.Time) (*product.Product, error) {
	p, err := s.store.Repos().Products.ResetSale(ctx, productID, startTime)
	if err != nil {
		return nil, err
	}

	log.Printf("sale activated for product %d, stock reset to %d, starts at %s",
		p.ID, p.AvailableStock, startTime.Format(time.RFC3339))

	// 同步库存镜像，失败不影响开售结果（stock-sync 会补齐）
	s.syncMirror(p)

	return p, nil
}

// syncMirror 将商品可用库存写入 Redis 镜像
func (s *SaleService) syncMirror(p *product.Product) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf(redisStockMirrorKey, p.ID)
	if err := s.redis.Do(radix.FlatCmd(nil, "SET", key, p.AvailableStock)); err != nil {
		GetMonitor().RecordRedisError()
		log.Printf("failed to sync stock mirror for product %d: %v", p.ID, err)
	}
}
