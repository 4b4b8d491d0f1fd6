package services

import (
	"context"
	"strings"

	"billing-backend/internal/billing"
	"billing-backend/internal/cache"
	"billing-backend/internal/models"
	"billing-backend/internal/repositories"
)

type BusinessService struct {
	businesses *repositories.BusinessRepository
}

func NewBusinessService(businesses *repositories.BusinessRepository) *BusinessService {
	return &BusinessService{businesses: businesses}
}

func (s *BusinessService) Create(ctx context.Context, req *models.CreateBusinessRequest) (*models.Business, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, billing.InvalidArgumentf("business name is required")
	}
	b := &models.Business{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	}
	if err := s.businesses.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BusinessService) Get(ctx context.Context, id int64) (*models.Business, error) {
	return s.businesses.Get(ctx, id)
}

func (s *BusinessService) List(ctx context.Context) ([]models.Business, error) {
	return s.businesses.List(ctx)
}

func (s *BusinessService) Update(ctx context.Context, id int64, req *models.UpdateBusinessRequest) (*models.Business, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, billing.InvalidArgumentf("business name is required")
	}
	return s.businesses.Update(ctx, id, req)
}

func (s *BusinessService) Delete(ctx context.Context, id int64) error {
	if err := s.businesses.Delete(ctx, id); err != nil {
		return err
	}
	cache.Delete(ctx, overviewCacheKey(id))
	return nil
}
