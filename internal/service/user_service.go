package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/example/flashsale/internal/auth"
	"github.com/example/flashsale/internal/config"
	"github.com/example/flashsale/internal/datamodels/user"
	"github.com/example/flashsale/internal/repository"
)

type UserService struct {
	store repository.Store
	jwt   *config.JWTConfig
}

func NewUserService(store repository.Store, jwt *config.JWTConfig) *UserService {
	return &UserService{store: store, jwt: jwt}
}

func hashPassword(raw, salt string) string {
	h := sha256.Sum256([]byte(raw + salt))
	return hex.EncodeToString(h[:])
}

// Register 简单注册（示例用）
func (s *UserService) Register(ctx context.Context, email, password string) (*user.User, error) {
	u := &user.User{
		Email: email,
		Salt:  "flashsale", // 简化实现，真实业务请使用随机盐
		Role:  "user",
	}
	u.Password = hashPassword(password, u.Salt)
	if err := s.store.Repos().Users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login 登录并返回 JWT
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.store.Repos().Users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if hashPassword(password, u.Salt) != u.Password {
		return "", errors.New("invalid password")
	}
	return auth.GenerateToken(s.jwt, u.ID, u.Email, u.Role)
}
