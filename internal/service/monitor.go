package service

import (
	"sync"
	"time"
)

// Monitor 监控服务，用于统计错误和业务指标
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	RedisErrors int64
	MQErrors    int64
	DBErrors    int64

	// 业务统计
	PurchaseRequests int64
	PurchaseSuccess  int64
	StockRejections  int64 // InsufficientStock / SaleNotActive 拒绝次数

	// 时间统计
	LastRedisError   time.Time
	LastMQError      time.Time
	LastDBError      time.Time
	LastPurchaseTime time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordRedisError 记录Redis错误
func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
	m.LastRedisError = time.Now()
}

// RecordMQError 记录MQ错误
func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
	m.LastMQError = time.Now()
}

// RecordDBError 记录数据库错误
func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
	m.LastDBError = time.Now()
}

// RecordPurchaseRequest 记录购买请求
func (m *Monitor) RecordPurchaseRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PurchaseRequests++
	m.LastPurchaseTime = time.Now()
}

// RecordPurchaseSuccess 记录购买成功
func (m *Monitor) RecordPurchaseSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PurchaseSuccess++
}

// RecordStockRejection 记录因库存/售卖窗口被拒绝的购买
func (m *Monitor) RecordStockRejection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StockRejections++
}

// GetStats 获取统计信息
func (m *Monitor) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	successRate := float64(0)
	if m.PurchaseRequests > 0 {
		successRate = float64(m.PurchaseSuccess) / float64(m.PurchaseRequests) * 100
	}

	return map[string]interface{}{
		"errors": map[string]interface{}{
			"redis": m.RedisErrors,
			"mq":    m.MQErrors,
			"db":    m.DBErrors,
		},
		"purchases": map[string]interface{}{
			"requests":         m.PurchaseRequests,
			"success":          m.PurchaseSuccess,
			"stock_rejections": m.StockRejections,
			"success_rate":     successRate,
		},
		"last_events": map[string]interface{}{
			"redis_error":   m.LastRedisError,
			"mq_error":      m.LastMQError,
			"db_error":      m.LastDBError,
			"last_purchase": m.LastPurchaseTime,
		},
	}
}

// Reset 重置统计（用于测试或定期清理）
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors = 0
	m.MQErrors = 0
	m.DBErrors = 0
	m.PurchaseRequests = 0
	m.PurchaseSuccess = 0
	m.StockRejections = 0
}
