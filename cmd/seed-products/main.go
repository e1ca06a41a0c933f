package main

import (
	"context"
	"log"

	"github.com/example/flashsale/internal/config"
	"github.com/example/flashsale/internal/datamodels/product"
	"github.com/example/flashsale/internal/repository/mysql"
)

// 演示数据：往数据库里塞几件待秒杀的商品
// 商品创建后开售时间为空，需要管理员调用 /api/admin/sales/date 才能购买。
func main() {
	cfg := config.FromEnv()
	db := mysql.Init(&cfg.MySQL)
	store := mysql.NewStore(db)

	products := []*product.Product{
		{Name: "限量款运动鞋", Description: "秒杀专供", Price: 19900, TotalStock: 100, AvailableStock: 100},
		{Name: "蓝牙耳机", Description: "旗舰降噪", Price: 49900, TotalStock: 50, AvailableStock: 50},
		{Name: "机械键盘", Description: "87键热插拔", Price: 29900, TotalStock: 30, AvailableStock: 30},
		{Name: "保温杯", Description: "500ml", Price: 5900, TotalStock: 200, AvailableStock: 200},
	}

	ctx := context.Background()
	repo := store.Repos().Products
	for _, p := range products {
		if err := repo.Create(ctx, p); err != nil {
			log.Printf("failed to create product %q: %v", p.Name, err)
			continue
		}
		log.Printf("created product %d: %s (stock=%d)", p.ID, p.Name, p.TotalStock)
	}
	log.Println("seed done")
}
