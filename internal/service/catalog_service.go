package service

import (
	"context"

	"keymarket/internal/model"
	"keymarket/internal/repository"

	"gorm.io/gorm"
)

// CatalogService 商品与激活码池的最小维护入口
// 目录展示/编辑由上游系统负责，这里只覆盖结算依赖的部分
type CatalogService struct {
	productRepo   *repository.ProductRepository
	inventoryRepo *repository.InventoryRepository
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{
		productRepo:   repository.NewProductRepository(db),
		inventoryRepo: repository.NewInventoryRepository(db),
	}
}

func (s *CatalogService) CreateProduct(ctx context.Context, name string, price int64, productType string) (*model.Product, error) {
	if price <= 0 {
		return nil, ErrInvalidAmount
	}

	product := &model.Product{
		Name:        name,
		Price:       price,
		ProductType: productType,
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return s.productRepo.GetByID(ctx, id)
}

// AddKeys 向激活码池补货
func (s *CatalogService) AddKeys(ctx context.Context, productID int64, codes []string) error {
	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return err
	}

	keys := make([]*model.ProductKey, 0, len(codes))
	for _, code := range codes {
		keys = append(keys, &model.ProductKey{
			ProductID: productID,
			KeyCode:   code,
			Status:    model.KeyStatusAvailable,
		})
	}
	return s.productRepo.AddKeys(ctx, keys)
}

// ListInventory 用户库存列表
func (s *CatalogService) ListInventory(ctx context.Context, userID int64, page, pageSize int) ([]*model.UserInventory, int64, error) {
	return s.inventoryRepo.ListByUserID(ctx, userID, page, pageSize)
}

// DeleteInventory 用户删除自己的库存行，流水不受影响
func (s *CatalogService) DeleteInventory(ctx context.Context, id, userID int64) error {
	return s.inventoryRepo.DeleteByIDAndUser(ctx, id, userID)
}
