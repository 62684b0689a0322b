package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/erp-status-api/internal/models"
)

// AssetRepository reads asset register rows.
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository constructs the repository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// FindByID fetches an asset.
func (r *AssetRepository) FindByID(ctx context.Context, id string) (*models.Asset, error) {
	const query = `SELECT id, tag, name, status, updated_at FROM assets WHERE id = $1`
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, id); err != nil {
		return nil, err
	}
	return &asset, nil
}
