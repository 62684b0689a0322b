package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/models"
)

type assetStore interface {
	FindByID(ctx context.Context, id string) (*models.Asset, error)
}

// AssetService exposes asset register operations.
type AssetService struct {
	repo   assetStore
	status statusChanger
	logger *zap.Logger
}

// NewAssetService constructs the service.
func NewAssetService(repo assetStore, status statusChanger, logger *zap.Logger) *AssetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetService{repo: repo, status: status, logger: logger}
}

// GetAsset returns an asset.
func (s *AssetService) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	asset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "asset", "failed to load asset")
	}
	return asset, nil
}

// DeleteAsset retires an asset. The status is required.
func (s *AssetService) DeleteAsset(ctx context.Context, id string, req dto.DeleteEntityRequest, userID string) (*models.StatusChangeRecord, error) {
	return retire(ctx, s.status, models.EntityAssets, id, "", req, userID)
}
