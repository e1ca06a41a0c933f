// Package memory 提供内存版的事务性存储，主要服务于测试，
// 也可用于无外部依赖的本地演示。
//
// 并发模型：全局互斥锁把所有事务串行化，Do 在进入时做一份深拷贝快照，
// fn 报错即整体还原，保证与 MySQL 实现相同的"全部提交或全部回滚"语义。
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/flashsale/internal/apperr"
	"github.com/example/flashsale/internal/datamodels/order"
	"github.com/example/flashsale/internal/datamodels/product"
	"github.com/example/flashsale/internal/datamodels/user"
	"github.com/example/flashsale/internal/repository"
)

// ErrNotFound 记录不存在（非商品类记录）
var ErrNotFound = errors.New("record not found")

type state struct {
	products map[int64]*product.Product
	orders   map[int64]*order.Order
	users    map[int64]*user.User
	records  []*user.PurchaseRecord

	nextProductID int64
	nextOrderID   int64
	nextUserID    int64
	nextRecordID  int64
}

func newState() *state {
	return &state{
		products: make(map[int64]*product.Product),
		orders:   make(map[int64]*order.Order),
		users:    make(map[int64]*user.User),
	}
}

// clone 深拷贝整个状态，作为事务回滚用的快照
func (st *state) clone() *state {
	cp := &state{
		products:      make(map[int64]*product.Product, len(st.products)),
		orders:        make(map[int64]*order.Order, len(st.orders)),
		users:         make(map[int64]*user.User, len(st.users)),
		records:       make([]*user.PurchaseRecord, len(st.records)),
		nextProductID: st.nextProductID,
		nextOrderID:   st.nextOrderID,
		nextUserID:    st.nextUserID,
		nextRecordID:  st.nextRecordID,
	}
	for id, p := range st.products {
		c := *p
		if p.SaleStartTime != nil {
			t := *p.SaleStartTime
			c.SaleStartTime = &t
		}
		cp.products[id] = &c
	}
	for id, o := range st.orders {
		c := *o
		cp.orders[id] = &c
	}
	for id, u := range st.users {
		c := *u
		cp.users[id] = &c
	}
	for i, rec := range st.records {
		c := *rec
		cp.records[i] = &c
	}
	return cp
}

// Store 内存存储
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore 创建内存存储
func NewStore() *Store {
	return &Store{st: newState()}
}

func (s *Store) repos(tx bool) repository.Repos {
	return repository.Repos{
		Products: &productRepo{s: s, tx: tx},
		Orders:   &orderRepo{s: s, tx: tx},
		Users:    &userRepo{s: s, tx: tx},
	}
}

// Repos 自动提交语义的仓储：每个操作独立加锁
func (s *Store) Repos() repository.Repos {
	return s.repos(false)
}

// Do 串行化事务：加锁、快照、执行，出错时整体还原
func (s *Store) Do(ctx context.Context, fn func(repository.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(s.repos(true)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// ---------------- product ----------------

type productRepo struct {
	s  *Store
	tx bool // 事务内调用已持锁，不再加锁
}

func (r *productRepo) lock() func() {
	if r.tx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	defer r.lock()()
	p, ok := r.s.st.products[id]
	if !ok {
		return nil, apperr.ErrProductNotFound
	}
	c := *p
	if p.SaleStartTime != nil {
		t := *p.SaleStartTime
		c.SaleStartTime = &t
	}
	return &c, nil
}

func (r *productRepo) ListAll(ctx context.Context) ([]*product.Product, error) {
	defer r.lock()()
	list := make([]*product.Product, 0, len(r.s.st.products))
	for _, p := range r.s.st.products {
		c := *p
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

func (r *productRepo) Create(ctx context.Context, p *product.Product) error {
	defer r.lock()()
	st := r.s.st
	st.nextProductID++
	p.ID = st.nextProductID
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	c := *p
	st.products[p.ID] = &c
	return nil
}

func (r *productRepo) TryReserve(ctx context.Context, id, qty int64) (int64, error) {
	defer r.lock()()
	p, ok := r.s.st.products[id]
	if !ok {
		return 0, apperr.ErrProductNotFound
	}
	now := time.Now()
	if p.SaleStartTime == nil || now.Before(*p.SaleStartTime) {
		return 0, apperr.ErrSaleNotActive
	}
	if p.AvailableStock < qty {
		return 0, apperr.ErrInsufficientStock
	}
	p.AvailableStock -= qty
	p.UpdatedAt = time.Now()
	return p.AvailableStock, nil
}

func (r *productRepo) ResetSale(ctx context.Context, id int64, startTime time.Time) (*product.Product, error) {
	defer r.lock()()
	p, ok := r.s.st.products[id]
	if !ok {
		return nil, apperr.ErrProductNotFound
	}
	if p.SaleStartTime != nil && p.AvailableStock > 0 {
		return nil, apperr.ErrSaleAlreadyActive
	}
	t := startTime
	p.SaleStartTime = &t
	p.AvailableStock = p.TotalStock
	p.UpdatedAt = time.Now()
	c := *p
	c.SaleStartTime = &t
	return &c, nil
}

// ---------------- order ----------------

type orderRepo struct {
	s  *Store
	tx bool
}

func (r *orderRepo) lock() func() {
	if r.tx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *orderRepo) Create(ctx context.Context, o *order.Order) error {
	defer r.lock()()
	st := r.s.st
	st.nextOrderID++
	o.ID = st.nextOrderID
	o.CreatedAt = time.Now()
	c := *o
	st.orders[o.ID] = &c
	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	defer r.lock()()
	o, ok := r.s.st.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *o
	return &c, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	defer r.lock()()
	var list []*order.Order
	for _, o := range r.s.st.orders {
		if o.UserID == userID {
			c := *o
			list = append(list, &c)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].PurchaseTime.After(list[j].PurchaseTime)
	})
	return list, nil
}

func (r *orderRepo) ListSuccessfulByProduct(ctx context.Context, productID int64) ([]*order.Order, error) {
	defer r.lock()()
	var list []*order.Order
	for _, o := range r.s.st.orders {
		if o.ProductID == productID && o.Successful {
			c := *o
			list = append(list, &c)
		}
	}
	sortChronological(list)
	return list, nil
}

func (r *orderRepo) ListSuccessful(ctx context.Context) ([]*order.Order, error) {
	defer r.lock()()
	var list []*order.Order
	for _, o := range r.s.st.orders {
		if o.Successful {
			c := *o
			list = append(list, &c)
		}
	}
	sortChronological(list)
	return list, nil
}

// sortChronological 按购买时间正序，时间相同时按订单 ID 保证确定性
func sortChronological(list []*order.Order) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].PurchaseTime.Equal(list[j].PurchaseTime) {
			return list[i].ID < list[j].ID
		}
		return list[i].PurchaseTime.Before(list[j].PurchaseTime)
	})
}

// ---------------- user ----------------

type userRepo struct {
	s  *Store
	tx bool
}

func (r *userRepo) lock() func() {
	if r.tx {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	defer r.lock()()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	defer r.lock()()
	for _, u := range r.s.st.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *userRepo) Create(ctx context.Context, u *user.User) error {
	defer r.lock()()
	st := r.s.st
	st.nextUserID++
	u.ID = st.nextUserID
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now
	c := *u
	st.users[u.ID] = &c
	return nil
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []int64) (map[int64]*user.User, error) {
	defer r.lock()()
	out := make(map[int64]*user.User, len(ids))
	for _, id := range ids {
		if u, ok := r.s.st.users[id]; ok {
			c := *u
			out[id] = &c
		}
	}
	return out, nil
}

func (r *userRepo) AppendPurchase(ctx context.Context, userID, orderID int64) error {
	defer r.lock()()
	st := r.s.st
	st.nextRecordID++
	st.records = append(st.records, &user.PurchaseRecord{
		ID:        st.nextRecordID,
		UserID:    userID,
		OrderID:   orderID,
		CreatedAt: time.Now(),
	})
	return nil
}

func (r *userRepo) ListPurchaseOrderIDs(ctx context.Context, userID int64) ([]int64, error) {
	defer r.lock()()
	var ids []int64
	for _, rec := range r.s.st.records {
		if rec.UserID == userID {
			ids = append(ids, rec.OrderID)
		}
	}
	return ids, nil
}
