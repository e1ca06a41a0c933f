package service

import (
	"context"
	"time"

	"github.com/example/flashsale/internal/datamodels/order"
	"github.com/example/flashsale/internal/repository"
)

// PurchaseEntry 排行榜中的一条购买记录
// Email 读的是买家当前资料，金额/数量来自订单快照。
type PurchaseEntry struct {
	Email        string    `json:"email"`
	Quantity     int64     `json:"quantity"`
	PurchaseTime time.Time `json:"purchase_time"`
}

// ProductSummary 排行榜里的商品概要，SoldOut 在读取时计算，不落库
type ProductSummary struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	TotalStock     int64  `json:"total_stock"`
	AvailableStock int64  `json:"available_stock"`
	SoldOut        bool   `json:"sold_out"`
}

// LeaderboardView 单个商品的购买排行榜，按购买时间正序（先抢到的在前）
type LeaderboardView struct {
	Product   ProductSummary  `json:"product"`
	Purchases []PurchaseEntry `json:"purchases"`
}

// LeaderboardService 购买排行榜聚合，只读，不产生任何副作用
type LeaderboardService struct {
	store repository.Store
}

// NewLeaderboardService 创建排行榜服务
func NewLeaderboardService(store repository.Store) *LeaderboardService {
	return &LeaderboardService{store: store}
}

// ForProduct 某个商品的购买排行榜
func (s *LeaderboardService) ForProduct(ctx context.Context, productID int64) (*LeaderboardView, error) {
	repos := s.store.Repos()

	p, err := repos.Products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	orders, err := repos.Orders.ListSuccessfulByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	entries, err := s.buildEntries(ctx, repos, orders)
	if err != nil {
		return nil, err
	}

	return &LeaderboardView{
		Product: ProductSummary{
			ID:             p.ID,
			Name:           p.Name,
			TotalStock:     p.TotalStock,
			AvailableStock: p.AvailableStock,
			SoldOut:        p.AvailableStock == 0,
		},
		Purchases: entries,
	}, nil
}

// ForAllProducts 全部商品的购买排行榜，按商品分组
// 分组顺序以各商品首笔成功购买的时间为准，组内保持时间正序。
func (s *LeaderboardService) ForAllProducts(ctx context.Context) ([]*LeaderboardView, error) {
	repos := s.store.Repos()

	orders, err := repos.Orders.ListSuccessful(ctx)
	if err != nil {
		return nil, err
	}

	grouped := make(map[int64][]*order.Order)
	var productOrder []int64
	for _, o := range orders {
		if _, ok := grouped[o.ProductID]; !ok {
			productOrder = append(productOrder, o.ProductID)
		}
		grouped[o.ProductID] = append(grouped[o.ProductID], o)
	}

	views := make([]*LeaderboardView, 0, len(productOrder))
	for _, pid := range productOrder {
		p, err := repos.Products.GetByID(ctx, pid)
		if err != nil {
			// 商品记录已不可用时跳过该组，排行榜容忍历史数据缺口
			continue
		}
		entries, err := s.buildEntries(ctx, repos, grouped[pid])
		if err != nil {
			return nil, err
		}
		views = append(views, &LeaderboardView{
			Product: ProductSummary{
				ID:             p.ID,
				Name:           p.Name,
				TotalStock:     p.TotalStock,
				AvailableStock: p.AvailableStock,
				SoldOut:        p.AvailableStock == 0,
			},
			Purchases: entries,
		})
	}
	return views, nil
}

// buildEntries 把订单列表连上买家当前身份信息
func (s *LeaderboardService) buildEntries(ctx context.Context, repos repository.Repos, orders []*order.Order) ([]PurchaseEntry, error) {
	ids := make([]int64, 0, len(orders))
	seen := make(map[int64]bool)
	for _, o := range orders {
		if !seen[o.UserID] {
			seen[o.UserID] = true
			ids = append(ids, o.UserID)
		}
	}

	users, err := repos.Users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]PurchaseEntry, 0, len(orders))
	for _, o := range orders {
		email := ""
		if u, ok := users[o.UserID]; ok {
			email = u.Email
		}
		entries = append(entries, PurchaseEntry{
			Email:        email,
			Quantity:     o.Quantity,
			PurchaseTime: o.PurchaseTime,
		})
	}
	return entries, nil
}
