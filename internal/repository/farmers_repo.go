package repository

import (
	"context"

	"github.com/akvo/ai-logbook/internal/domain"
)

// FarmersRepo 农户存储接口
type FarmersRepo interface {
	GetFarmer(ctx context.Context, farmerID string) (*domain.Farmer, error)
	GetFarmerByExternalID(ctx context.Context, externalID string) (*domain.Farmer, error)

	// GetOrCreateFarmer 首次联系即建档；已存在时返回现有农户
	GetOrCreateFarmer(ctx context.Context, externalID, name, phoneNumber string) (*domain.Farmer, error)

	CreateFarmer(ctx context.Context, farmer *domain.Farmer) error
	UpdateFarmer(ctx context.Context, farmer *domain.Farmer) error
	DeleteFarmer(ctx context.Context, farmerID string) error
	ListFarmers(ctx context.Context, search string, offset, limit int) ([]*domain.Farmer, error)
}
