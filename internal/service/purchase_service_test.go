package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/flashsale/internal/apperr"
	"github.com/example/flashsale/internal/datamodels/order"
	"github.com/example/flashsale/internal/datamodels/product"
	"github.com/example/flashsale/internal/datamodels/user"
	"github.com/example/flashsale/internal/repository"
	"github.com/example/flashsale/internal/repository/memory"
)

func mustUser(t *testing.T, st *memory.Store, email string) int64 {
	t.Helper()
	u := &user.User{Email: email, Password: "x", Role: "user"}
	require.NoError(t, st.Repos().Users.Create(context.Background(), u))
	return u.ID
}

// mustActiveProduct 创建商品并立即开售（开售时间取一小时前）
func mustActiveProduct(t *testing.T, st *memory.Store, price, total int64) *product.Product {
	t.Helper()
	ctx := context.Background()
	p := &product.Product{Name: "秒杀商品", Price: price, TotalStock: total, AvailableStock: total}
	require.NoError(t, st.Repos().Products.Create(ctx, p))
	activated, err := st.Repos().Products.ResetSale(ctx, p.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	return activated
}

func TestPurchaseScenario(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := NewPurchaseService(st, nil, nil, 10)

	buyerA := mustUser(t, st, "a@example.com")
	buyerB := mustUser(t, st, "b@example.com")
	buyerC := mustUser(t, st, "c@example.com")

	p := mustActiveProduct(t, st, 1000, 2)

	// A 买 1 件：成功，剩余 1
	sumA, err := svc.Purchase(ctx, buyerA, p.ID, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), sumA.RemainingStock)
	require.Equal(t, int64(1000), sumA.TotalAmount)
	require.Equal(t, p.Name, sumA.ProductName)

	// B 买 2 件：只剩 1，竞争失败，库存与订单都不变
	_, err = svc.Purchase(ctx, buyerB, p.ID, 2)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	cur, err := st.Repos().Products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), cur.AvailableStock)

	orders, err := st.Repos().Orders.ListSuccessful(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	// C 买 1 件：成功，售罄
	sumC, err := svc.Purchase(ctx, buyerC, p.ID, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), sumC.RemainingStock)

	// 售罄后任何人再买都是"不在售卖窗口"
	_, err = svc.Purchase(ctx, buyerB, p.ID, 1)
	require.ErrorIs(t, err, apperr.ErrSaleNotActive)

	// 排行榜按时间给出 A、C
	lb := NewLeaderboardService(st)
	view, err := lb.ForProduct(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, view.Product.SoldOut)
	require.Len(t, view.Purchases, 2)
	require.Equal(t, "a@example.com", view.Purchases[0].Email)
	require.Equal(t, "c@example.com", view.Purchases[1].Email)

	// 每笔成功购买恰好留下一条购买历史
	idsA, err := st.Repos().Users.ListPurchaseOrderIDs(ctx, buyerA)
	require.NoError(t, err)
	require.Len(t, idsA, 1)
	require.Equal(t, sumA.OrderID, idsA[0])
}

func TestPurchaseQuantityCap(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := NewPurchaseService(st, nil, nil, 5)

	buyer := mustUser(t, st, "cap@example.com")
	p := mustActiveProduct(t, st, 100, 100)

	_, err := svc.Purchase(ctx, buyer, p.ID, 0)
	require.ErrorIs(t, err, apperr.ErrInvalidQuantity)

	_, err = svc.Purchase(ctx, buyer, p.ID, -1)
	require.ErrorIs(t, err, apperr.ErrInvalidQuantity)

	_, err = svc.Purchase(ctx, buyer, p.ID, 6)
	require.ErrorIs(t, err, apperr.ErrInvalidQuantity)

	// 上限以内正常
	_, err = svc.Purchase(ctx, buyer, p.ID, 5)
	require.NoError(t, err)
}

func TestPurchaseProductNotFound(t *testing.T) {
	st := memory.NewStore()
	svc := NewPurchaseService(st, nil, nil, 10)
	buyer := mustUser(t, st, "x@example.com")

	_, err := svc.Purchase(context.Background(), buyer, 9999, 1)
	require.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestPurchaseSaleWindow(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := NewPurchaseService(st, nil, nil, 10)
	buyer := mustUser(t, st, "w@example.com")

	// 从未开售：有库存也不能买
	never := &product.Product{Name: "未开售", Price: 100, TotalStock: 10, AvailableStock: 10}
	require.NoError(t, st.Repos().Products.Create(ctx, never))
	_, err := svc.Purchase(ctx, buyer, never.ID, 1)
	require.ErrorIs(t, err, apperr.ErrSaleNotActive)

	// 已设置开售时间但还没到时
	future := &product.Product{Name: "未到时", Price: 100, TotalStock: 10, AvailableStock: 10}
	require.NoError(t, st.Repos().Products.Create(ctx, future))
	_, err = st.Repos().Products.ResetSale(ctx, future.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = svc.Purchase(ctx, buyer, future.ID, 1)
	require.ErrorIs(t, err, apperr.ErrSaleNotActive)
}

// precheckGateStore 拦住事务入口之前的快速检查读，
// 让所有并发购买方都先读到同一个"还有库存"的快照，再一起进入条件扣减，
// 以便确定性地复现竞争场景。
type precheckGateStore struct {
	repository.Store
	arrived *sync.WaitGroup
	release chan struct{}
}

func (s *precheckGateStore) Repos() repository.Repos {
	r := s.Store.Repos()
	r.Products = &gatedProducts{Repository: r.Products, arrived: s.arrived, release: s.release}
	return r
}

type gatedProducts struct {
	product.Repository
	arrived *sync.WaitGroup
	release chan struct{}
}

func (g *gatedProducts) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	p, err := g.Repository.GetByID(ctx, id)
	g.arrived.Done()
	<-g.release
	return p, err
}

func TestPurchaseNoDoubleGrant(t *testing.T) {
	const workers = 32

	ctx := context.Background()
	st := memory.NewStore()

	var arrived sync.WaitGroup
	arrived.Add(workers)
	release := make(chan struct{})
	gated := &precheckGateStore{Store: st, arrived: &arrived, release: release}

	svc := NewPurchaseService(gated, nil, nil, 10)

	buyer := mustUser(t, st, "racer@example.com")
	p := mustActiveProduct(t, st, 500, 1) // 只有 1 件

	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := svc.Purchase(ctx, buyer, p.ID, 1)
			errs <- err
		}()
	}

	// 等全部完成快速检查后一起放行
	arrived.Wait()
	close(release)

	success := 0
	insufficient := 0
	for i := 0; i < workers; i++ {
		err := <-errs
		switch {
		case err == nil:
			success++
		case errors.Is(err, apperr.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	require.Equal(t, 1, success)
	require.Equal(t, workers-1, insufficient)

	cur, err := st.Repos().Products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), cur.AvailableStock)

	orders, err := st.Repos().Orders.ListSuccessful(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
}

func TestPurchaseOversellStress(t *testing.T) {
	const (
		totalStock = 50
		workers    = 120
	)

	ctx := context.Background()
	st := memory.NewStore()
	svc := NewPurchaseService(st, nil, nil, 10)

	buyer := mustUser(t, st, "stress@example.com")
	p := mustActiveProduct(t, st, 100, totalStock)

	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		qty := int64(i%3 + 1)
		go func() {
			defer wg.Done()
			_, err := svc.Purchase(ctx, buyer, p.ID, qty)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			// 并发抢购下的业务拒绝是正常结果，存储故障不是
			require.NotEqual(t, apperr.KindInternal, apperr.KindOf(err))
		}
	}

	cur, err := st.Repos().Products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, cur.AvailableStock, int64(0))

	orders, err := st.Repos().Orders.ListSuccessful(ctx)
	require.NoError(t, err)

	var sold int64
	for _, o := range orders {
		sold += o.Quantity
	}
	// 超卖不变量：成功订单总量不超过总库存，且与扣减精确对账
	require.LessOrEqual(t, sold, int64(totalStock))
	require.Equal(t, int64(totalStock)-cur.AvailableStock, sold)
}

// orderFaultStore 在事务内注入订单写入故障，验证扣减随之回滚
type orderFaultStore struct {
	repository.Store
	err error
}

func (s *orderFaultStore) Do(ctx context.Context, fn func(repository.Repos) error) error {
	return s.Store.Do(ctx, func(r repository.Repos) error {
		r.Orders = &faultyOrders{Repository: r.Orders, err: s.err}
		return fn(r)
	})
}

type faultyOrders struct {
	order.Repository
	err error
}

func (f *faultyOrders) Create(ctx context.Context, o *order.Order) error {
	return f.err
}

func TestPurchaseRollbackOnOrderFault(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	faulty := &orderFaultStore{Store: st, err: errors.New("storage fault")}
	svc := NewPurchaseService(faulty, nil, nil, 10)

	buyer := mustUser(t, st, "fault@example.com")
	p := mustActiveProduct(t, st, 100, 2)

	_, err := svc.Purchase(ctx, buyer, p.ID, 1)
	require.Error(t, err)
	require.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	// 扣减必须随订单失败一起回滚：没有订单的扣减绝不能被观察到
	cur, err := st.Repos().Products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), cur.AvailableStock)

	orders, err := st.Repos().Orders.ListSuccessful(ctx)
	require.NoError(t, err)
	require.Empty(t, orders)

	ids, err := st.Repos().Users.ListPurchaseOrderIDs(ctx, buyer)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestPurchaseHistoryOrdering(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := NewPurchaseService(st, nil, nil, 10)

	buyer := mustUser(t, st, "h@example.com")

	base := time.Now().Add(-time.Hour)
	for i, offset := range []time.Duration{30 * time.Minute, 10 * time.Minute, 20 * time.Minute} {
		o := &order.Order{
			UserID:       buyer,
			ProductID:    int64(i + 1),
			Quantity:     1,
			UnitPrice:    100,
			TotalAmount:  100,
			PurchaseTime: base.Add(offset),
			Successful:   true,
		}
		require.NoError(t, st.Repos().Orders.Create(ctx, o))
	}

	orders, err := svc.History(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	// 购买历史按时间倒序
	require.True(t, orders[0].PurchaseTime.After(orders[1].PurchaseTime))
	require.True(t, orders[1].PurchaseTime.After(orders[2].PurchaseTime))
}
