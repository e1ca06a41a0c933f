package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/example/flashsale/internal/datamodels/user"
)

type userRepo struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) user.Repository {
	return &userRepo{db: db}
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) Create(ctx context.Context, u *user.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []int64) (map[int64]*user.User, error) {
	var list []*user.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]*user.User, len(list))
	for _, u := range list {
		out[u.ID] = u
	}
	return out, nil
}

func (r *userRepo) AppendPurchase(ctx context.Context, userID, orderID int64) error {
	return r.db.WithContext(ctx).Create(&user.PurchaseRecord{
		UserID:  userID,
		OrderID: orderID,
	}).Error
}

func (r *userRepo) ListPurchaseOrderIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).Model(&user.PurchaseRecord{}).
		Where("user_id = ?", userID).
		Order("id ASC").
		Pluck("order_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
