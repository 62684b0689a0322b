package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/models"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
)

type recordStore interface {
	List(ctx context.Context, filter models.StatusChangeRecordFilter) ([]models.StatusChangeRecord, int, error)
	FindByID(ctx context.Context, id string) (*models.StatusChangeRecord, error)
	History(ctx context.Context, entityType, entityID string) ([]models.StatusChangeRecord, error)
}

// StatusRecordService serves the read side of the status change log.
type StatusRecordService struct {
	repo   recordStore
	logger *zap.Logger
}

// NewStatusRecordService constructs the service.
func NewStatusRecordService(repo recordStore, logger *zap.Logger) *StatusRecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusRecordService{repo: repo, logger: logger}
}

// List returns a page of records, newest first.
func (s *StatusRecordService) List(ctx context.Context, query dto.StatusRecordQuery) ([]models.StatusChangeRecord, *models.Pagination, error) {
	filter := query.Filter()
	if filter.EntityType != "" {
		if _, ok := models.LookupEntity(filter.EntityType); !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown entity type %q", filter.EntityType))
		}
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not be before startDate")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 500 {
		filter.PageSize = 50
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list status change records")
	}
	if records == nil {
		records = []models.StatusChangeRecord{}
	}
	return records, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single record.
func (s *StatusRecordService) Get(ctx context.Context, id string) (*models.StatusChangeRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "status change record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status change record")
	}
	return record, nil
}

// History returns all transitions of one entity, oldest first.
func (s *StatusRecordService) History(ctx context.Context, entityType, entityID string) ([]models.StatusChangeRecord, error) {
	if _, ok := models.LookupEntity(entityType); !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown entity type %q", entityType))
	}
	records, err := s.repo.History(ctx, entityType, entityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	if records == nil {
		records = []models.StatusChangeRecord{}
	}
	return records, nil
}
