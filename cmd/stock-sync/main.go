package main

import (
	"context"
	"fmt"
	"log"
	"time"

	radix "github.com/mediocregopher/radix/v3"

	"github.com/example/flashsale/internal/config"
	"github.com/example/flashsale/internal/datamodels/product"
	"github.com/example/flashsale/internal/infra/redis"
	"github.com/example/flashsale/internal/repository/mysql"
)

const redisStockMirrorKey = "sale:stock:%d" // productID

func main() {
	cfg := config.FromEnv()

	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	store := mysql.NewStore(db)

	interval := time.Duration(cfg.Sale.MirrorSyncSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log.Println("stock mirror sync started...")
	log.Printf("check interval: %v", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 立即执行一次
	checkAndSync(context.Background(), store.Repos().Products, redisClient)

	// 定时执行
	for range ticker.C {
		checkAndSync(context.Background(), store.Repos().Products, redisClient)
	}
}

// checkAndSync 以 MySQL 为准修复 Redis 库存镜像
// 镜像只用于购买前的快速失败，偏差不会影响正确性，但会造成多余的数据库回退或误拒。
func checkAndSync(ctx context.Context, products product.Repository, redisClient radix.Client) {
	list, err := products.ListAll(ctx)
	if err != nil {
		log.Printf("failed to list products: %v", err)
		return
	}

	now := time.Now()
	inconsistent := 0
	synced := 0

	for _, p := range list {
		// 只维护处于售卖窗口内的商品镜像
		if !p.SaleActive(now) {
			continue
		}

		key := fmt.Sprintf(redisStockMirrorKey, p.ID)
		var mirror int64
		if err := redisClient.Do(radix.Cmd(&mirror, "GET", key)); err != nil {
			// Redis 中没有，需要同步
			if err := syncMirror(key, p.AvailableStock, redisClient); err == nil {
				synced++
			}
			continue
		}

		if mirror != p.AvailableStock {
			inconsistent++
			log.Printf("product %d (%s): mirror drift - mysql: %d, redis: %d",
				p.ID, p.Name, p.AvailableStock, mirror)
			if err := syncMirror(key, p.AvailableStock, redisClient); err == nil {
				synced++
				log.Printf("product %d: mirror repaired", p.ID)
			}
		}
	}

	log.Printf("stock mirror sync done - drift: %d, repaired: %d", inconsistent, synced)
}

func syncMirror(key string, stock int64, redisClient radix.Client) error {
	if err := redisClient.Do(radix.FlatCmd(nil, "SET", key, stock)); err != nil {
		return fmt.Errorf("failed to sync mirror: %v", err)
	}
	return nil
}
