package mysql

import (
	"context"
	"log"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/example/flashsale/internal/config"
	"github.com/example/flashsale/internal/datamodels/order"
	"github.com/example/flashsale/internal/datamodels/product"
	"github.com/example/flashsale/internal/datamodels/user"
	"github.com/example/flashsale/internal/repository"
)

var (
	db   *gorm.DB
	once sync.Once
)

// Init 初始化全局 GORM 实例并自动迁移表结构
func Init(cfg *config.MySQLConfig) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}

		if err = db.AutoMigrate(
			&user.User{},
			&user.PurchaseRecord{},
			&product.Product{},
			&order.Order{},
		); err != nil {
			log.Fatalf("auto migrate failed: %v", err)
		}
	})
	return db
}

// DB 获取全局 DB
func DB() *gorm.DB {
	return db
}

// store 基于 gorm 的事务性存储实现
type store struct {
	db *gorm.DB
}

// NewStore 创建 MySQL 存储
func NewStore(db *gorm.DB) repository.Store {
	return &store{db: db}
}

func reposOf(db *gorm.DB) repository.Repos {
	return repository.Repos{
		Products: NewProductRepository(db),
		Orders:   NewOrderRepository(db),
		Users:    NewUserRepository(db),
	}
}

func (s *store) Repos() repository.Repos {
	return reposOf(s.db)
}

// Do 在单个数据库事务内执行 fn，fn 报错则整体回滚
func (s *store) Do(ctx context.Context, fn func(repository.Repos) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(reposOf(tx))
	})
}
