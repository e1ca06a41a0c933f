package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	radix "github.com/mediocregopher/radix/v3"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/flashsale/internal/apperr"
	"github.com/example/flashsale/internal/datamodels/order"
	"github.com/example/flashsale/internal/repository"
)

const (
	redisStockMirrorKey = "sale:stock:%d" // productID

	orderEventsQueue = "order_events"
)

// OrderCreatedEvent 订单提交后发往 MQ 的事件，供下游通知/投影消费
type OrderCreatedEvent struct {
	OrderID      int64     `json:"order_id"`
	UserID       int64     `json:"user_id"`
	ProductID    int64     `json:"product_id"`
	Quantity     int64     `json:"quantity"`
	TotalAmount  int64     `json:"total_amount"`
	PurchaseTime time.Time `json:"purchase_time"`
}

// PurchaseSummary 购买成功返回的摘要
type PurchaseSummary struct {
	OrderID        int64     `json:"order_id"`
	ProductID      int64     `json:"product_id"`
	ProductName    string    `json:"product_name"`
	Quantity       int64     `json:"quantity"`
	TotalAmount    int64     `json:"total_amount"`
	PurchaseTime   time.Time `json:"purchase_time"`
	RemainingStock int64     `json:"remaining_stock"`
}

// PurchaseService 购买事务协调者
// 在一个事务内完成条件扣减、订单落库和购买历史追加，任何一步失败全部回滚：
// 不存在没有订单的扣减，也不存在没有扣减的订单。
// redis 与 mqConn 均可为 nil（测试或降级运行时），只影响快速失败和事件通知。
type PurchaseService struct {
	store          repository.Store
	redis          radix.Client
	mqConn         *amqp.Connection
	maxPerPurchase int64
}

// NewPurchaseService 创建购买服务
func NewPurchaseService(store repository.Store, redis radix.Client, mqConn *amqp.Connection, maxPerPurchase int64) *PurchaseService {
	if maxPerPurchase <= 0 {
		maxPerPurchase = 10
	}
	return &PurchaseService{
		store:          store,
		redis:          redis,
		mqConn:         mqConn,
		maxPerPurchase: maxPerPurchase,
	}
}

// Purchase 发起购买
func (s *PurchaseService) Purchase(ctx context.Context, userID, productID, qty int64) (*PurchaseSummary, error) {
	GetMonitor().RecordPurchaseRequest()

	// 1) 业务上限校验（上游只做了格式校验，数量上限是这里的业务规则）
	if qty <= 0 || qty > s.maxPerPurchase {
		return nil, apperr.ErrInvalidQuantity
	}

	// 2) Redis 库存镜像快速失败（仅加速，权威判定始终是数据库里的条件扣减）
	if err := s.mirrorFastFail(productID, qty); err != nil {
		GetMonitor().RecordStockRejection()
		return nil, err
	}

	// 3) 读取商品并做快速失败检查：未开售、未到时或已售罄的请求
	//    不必进入事务。权威判定仍然是事务内的条件扣减。
	p, err := s.store.Repos().Products.GetByID(ctx, productID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			GetMonitor().RecordDBError()
		}
		return nil, err
	}
	if !p.SaleActive(time.Now()) {
		GetMonitor().RecordStockRejection()
		return nil, apperr.ErrSaleNotActive
	}

	// 4) 在单个事务内：条件扣减 + 订单落库 + 购买历史追加
	var summary *PurchaseSummary
	err = s.store.Do(ctx, func(r repository.Repos) error {
		remaining, err := r.Products.TryReserve(ctx, productID, qty)
		if err != nil {
			// InsufficientStock 是竞争落败的正常结果，原样向上传递
			return err
		}

		o := &order.Order{
			UserID:       userID,
			ProductID:    productID,
			Quantity:     qty,
			UnitPrice:    p.Price, // 下单时刻价格快照
			TotalAmount:  p.Price * qty,
			PurchaseTime: time.Now(),
			Successful:   true,
		}
		if err := r.Orders.Create(ctx, o); err != nil {
			return err
		}

		if err := r.Users.AppendPurchase(ctx, userID, o.ID); err != nil {
			return err
		}

		summary = &PurchaseSummary{
			OrderID:        o.ID,
			ProductID:      p.ID,
			ProductName:    p.Name,
			Quantity:       qty,
			TotalAmount:    o.TotalAmount,
			PurchaseTime:   o.PurchaseTime,
			RemainingStock: remaining,
		}
		return nil
	})
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindInsufficientStock, apperr.KindSaleNotActive:
			GetMonitor().RecordStockRejection()
		case apperr.KindInternal:
			GetMonitor().RecordDBError()
		}
		return nil, err
	}

	GetMonitor().RecordPurchaseSuccess()

	// 5) 提交后的旁路动作：镜像扣减与事件通知，失败只记录，不影响购买结果
	s.mirrorDecr(productID, qty)
	s.publishOrderEvent(ctx, userID, summary)

	return summary, nil
}

// History 买家购买历史，按购买时间倒序
func (s *PurchaseService) History(ctx context.Context, userID int64) ([]*order.Order, error) {
	return s.store.Repos().Orders.ListByUser(ctx, userID)
}

// mirrorFastFail 查询 Redis 库存镜像，明显不够时直接拒绝
// 镜像可能滞后，stock-sync 会定期对账；查不到或出错一律放行走数据库。
func (s *PurchaseService) mirrorFastFail(productID, qty int64) error {
	if s.redis == nil {
		return nil
	}
	key := fmt.Sprintf(redisStockMirrorKey, productID)
	var raw string
	if err := s.redis.Do(radix.Cmd(&raw, "GET", key)); err != nil {
		GetMonitor().RecordRedisError()
		return nil
	}
	if raw == "" {
		return nil
	}
	var mirror int64
	if _, err := fmt.Sscan(raw, &mirror); err != nil {
		return nil
	}
	if mirror <= 0 {
		return apperr.ErrSaleNotActive
	}
	if mirror < qty {
		return apperr.ErrInsufficientStock
	}
	return nil
}

// mirrorDecr 提交成功后同步扣减镜像，尽力而为
func (s *PurchaseService) mirrorDecr(productID, qty int64) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf(redisStockMirrorKey, productID)
	if err := s.redis.Do(radix.FlatCmd(nil, "DECRBY", key, qty)); err != nil {
		GetMonitor().RecordRedisError()
		log.Printf("failed to decr stock mirror for product %d: %v", productID, err)
	}
}

// publishOrderEvent 提交成功后发布订单事件
func (s *PurchaseService) publishOrderEvent(ctx context.Context, userID int64, sum *PurchaseSummary) {
	if s.mqConn == nil || sum == nil {
		return
	}
	ch, err := s.mqConn.Channel()
	if err != nil {
		GetMonitor().RecordMQError()
		log.Printf("failed to open mq channel: %v", err)
		return
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(orderEventsQueue, true, false, false, false, nil); err != nil {
		GetMonitor().RecordMQError()
		log.Printf("failed to declare queue: %v", err)
		return
	}

	body, err := json.Marshal(&OrderCreatedEvent{
		OrderID:      sum.OrderID,
		UserID:       userID,
		ProductID:    sum.ProductID,
		Quantity:     sum.Quantity,
		TotalAmount:  sum.TotalAmount,
		PurchaseTime: sum.PurchaseTime,
	})
	if err != nil {
		return
	}

	err = ch.PublishWithContext(
		ctx,
		"",
		orderEventsQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		GetMonitor().RecordMQError()
		log.Printf("failed to publish order event: %v", err)
	}
}
