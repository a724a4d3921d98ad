package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"keymarket/internal/config"
	"keymarket/internal/model"
	"keymarket/internal/repository"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("账号或密码错误")

// AuthService 注册与登录
// 只做密码哈希校验，会话/令牌由上游网关负责
type AuthService struct {
	db              *gorm.DB
	userRepo        *repository.UserRepository
	referralService *ReferralService
}

func NewAuthService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		db:              db,
		userRepo:        repository.NewUserRepository(db),
		referralService: NewReferralService(db, redisClient, cfg),
	}
}

type RegisterRequest struct {
	Username     string `json:"username" binding:"required,min=3,max=32"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	ReferralCode string `json:"referral_code"` // 可选，无效时忽略
}

// Register 注册新用户
// 建用户和记邀请关系在同一个事务里；邀请码无效不阻断注册
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	code, err := generateReferralCode()
	if err != nil {
		return nil, fmt.Errorf("生成邀请码失败: %w", err)
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         model.RoleCustomer,
		Balance:      0,
		ReferralCode: code,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return repository.ErrDuplicateUser
			}
			return err
		}

		if _, err := s.referralService.RecordReferral(ctx, tx, req.ReferralCode, user.ID); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("用户注册成功: userID=%d, username=%s", user.ID, user.Username)
	return user, nil
}

// Login 校验用户名和密码
func (s *AuthService) Login(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// generateReferralCode 8位十六进制邀请码
func generateReferralCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
