package main

import (
	"encoding/json"
	"log"

	"github.com/example/flashsale/internal/config"
	"github.com/example/flashsale/internal/infra/mq"
	"github.com/example/flashsale/internal/service"
)

const orderEventsQueue = "order_events"

// 订单事件消费者：购买事务提交后由服务端发布事件，
// 这里消费并输出通知（真实场景可接短信/邮件/仓储系统）。
func main() {
	cfg := config.FromEnv()

	mqConn := mq.Init(&cfg.RabbitMQ)

	ch, err := mqConn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(orderEventsQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("failed to declare queue: %v", err)
	}

	// 手动确认模式（auto-ack=false）
	msgs, err := ch.Consume(orderEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	log.Println("order notifier started, waiting for events...")

	for d := range msgs {
		var ev service.OrderCreatedEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			log.Printf("invalid event payload: %v", err)
			// 格式错误的消息直接丢弃，避免死循环重投
			_ = d.Nack(false, false)
			continue
		}

		log.Printf("order created: order=%d user=%d product=%d qty=%d amount=%d time=%s",
			ev.OrderID, ev.UserID, ev.ProductID, ev.Quantity, ev.TotalAmount,
			ev.PurchaseTime.Format("2006-01-02 15:04:05"))

		if err := d.Ack(false); err != nil {
			log.Printf("failed to ack message: %v", err)
		}
	}
}
