package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/flashsale/internal/apperr"
	"github.com/example/flashsale/internal/datamodels/order"
	"github.com/example/flashsale/internal/repository/memory"
)

func seedOrder(t *testing.T, st *memory.Store, userID, productID, qty int64, at time.Time) {
	t.Helper()
	require.NoError(t, st.Repos().Orders.Create(context.Background(), &order.Order{
		UserID:       userID,
		ProductID:    productID,
		Quantity:     qty,
		UnitPrice:    100,
		TotalAmount:  100 * qty,
		PurchaseTime: at,
		Successful:   true,
	}))
}

func TestLeaderboardChronologicalOrder(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := NewLeaderboardService(st)

	u1 := mustUser(t, st, "first@example.com")
	u2 := mustUser(t, st, "second@example.com")
	u3 := mustUser(t, st, "third@example.com")

	p := mustActiveProduct(t, st, 100, 10)

	base := time.Now().Add(-time.Hour)
	// 故意乱序写入，排行榜必须按购买时间重排
	seedOrder(t, st, u3, p.ID, 1, base.Add(30*time.Minute))
	seedOrder(t, st, u1, p.ID, 2, base.Add(5*time.Minute))
	seedOrder(t, st, u2, p.ID, 1, base.Add(15*time.Minute))

	view, err := svc.ForProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, view.Purchases, 3)
	require.Equal(t, "first@example.com", view.Purchases[0].Email)
	require.Equal(t, "second@example.com", view.Purchases[1].Email)
	require.Equal(t, "third@example.com", view.Purchases[2].Email)
	require.Equal(t, int64(2), view.Purchases[0].Quantity)

	require.False(t, view.Product.SoldOut)
	require.Equal(t, p.ID, view.Product.ID)
}

func TestLeaderboardSoldOutFlag(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	purchase := NewPurchaseService(st, nil, nil, 10)
	svc := NewLeaderboardService(st)

	buyer := mustUser(t, st, "solo@example.com")
	p := mustActiveProduct(t, st, 100, 1)

	_, err := purchase.Purchase(ctx, buyer, p.ID, 1)
	require.NoError(t, err)

	view, err := svc.ForProduct(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, view.Product.SoldOut)
	require.Equal(t, int64(0), view.Product.AvailableStock)
}

func TestLeaderboardProductNotFound(t *testing.T) {
	st := memory.NewStore()
	svc := NewLeaderboardService(st)

	_, err := svc.ForProduct(context.Background(), 12345)
	require.ErrorIs(t, err, apperr.ErrProductNotFound)
}

func TestLeaderboardForAllProducts(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := NewLeaderboardService(st)

	u1 := mustUser(t, st, "one@example.com")
	u2 := mustUser(t, st, "two@example.com")

	pa := mustActiveProduct(t, st, 100, 10)
	pb := mustActiveProduct(t, st, 200, 10)

	base := time.Now().Add(-time.Hour)
	// pb 的首笔购买更早，分组顺序应当是 pb、pa
	seedOrder(t, st, u1, pb.ID, 1, base.Add(1*time.Minute))
	seedOrder(t, st, u2, pa.ID, 1, base.Add(10*time.Minute))
	seedOrder(t, st, u2, pb.ID, 2, base.Add(20*time.Minute))

	views, err := svc.ForAllProducts(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	require.Equal(t, pb.ID, views[0].Product.ID)
	require.Len(t, views[0].Purchases, 2)
	require.Equal(t, "one@example.com", views[0].Purchases[0].Email)
	require.Equal(t, "two@example.com", views[0].Purchases[1].Email)

	require.Equal(t, pa.ID, views[1].Product.ID)
	require.Len(t, views[1].Purchases, 1)
}

func TestLeaderboardMissingUser(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	svc := NewLeaderboardService(st)

	p := mustActiveProduct(t, st, 100, 10)
	// 订单引用了不存在的买家，排行榜用空邮箱兜底
	seedOrder(t, st, 999, p.ID, 1, time.Now())

	view, err := svc.ForProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, view.Purchases, 1)
	require.Equal(t, "", view.Purchases[0].Email)
}
