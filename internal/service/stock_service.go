package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/events"
	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/internal/repository"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
)

type stockStore interface {
	FindByID(ctx context.Context, id string) (*models.StockItem, error)
	ApplyMovement(ctx context.Context, movement *models.StockMovement) (*models.StockItem, error)
}

type tokenGuard interface {
	Validate(ctx context.Context, token string, scope models.AccessTokenScope, entityID string, operation models.StockOperation) (*models.StockAccessToken, error)
	Release(ctx context.Context, token, holderID string) error
	Cancel(ctx context.Context, token, holderID string) error
}

// StockService applies inventory mutations under access tokens.
type StockService struct {
	repo      stockStore
	tokens    tokenGuard
	status    statusChanger
	bus       eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStockService constructs the service.
func NewStockService(repo stockStore, tokens tokenGuard, status statusChanger, bus eventPublisher, logger *zap.Logger) *StockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockService{repo: repo, tokens: tokens, status: status, bus: bus, validator: validator.New(), logger: logger}
}

// Get returns an inventory item.
func (s *StockService) Get(ctx context.Context, id string) (*models.StockItem, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "stock item", "failed to load stock item")
	}
	return item, nil
}

// ApplyMovement changes the quantity of itemID. The access token must cover the item
// and operation; it is released on success and cancelled on failure. A movement that
// leaves the item at or below zero raises StockItemOut.
func (s *StockService) ApplyMovement(ctx context.Context, itemID string, req dto.StockMovementRequest, userID string) (*models.StockItem, error) {
	req.Token = strings.TrimSpace(req.Token)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid stock movement payload")
	}
	if !models.ScopeInventory.AllowsOperation(req.Operation) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("operation %q is not an inventory movement", req.Operation))
	}

	token, err := s.tokens.Validate(ctx, req.Token, models.ScopeInventory, itemID, req.Operation)
	if err != nil {
		return nil, err
	}

	delta := req.Quantity
	if req.Operation == models.OperationSale || req.Operation == models.OperationTransfer {
		if req.Quantity <= 0 {
			s.cancel(ctx, token, userID)
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s quantity must be positive", req.Operation))
		}
		delta = -req.Quantity
	}

	item, err := s.repo.ApplyMovement(ctx, &models.StockMovement{
		ItemID:    itemID,
		Operation: req.Operation,
		Delta:     delta,
		Fence:     token.Fence,
		Token:     token.Token,
		CreatedBy: userID,
	})
	if err != nil {
		s.cancel(ctx, token, userID)
		if errors.Is(err, repository.ErrStaleFence) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a newer access token already modified this item")
		}
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s of %d exceeds available stock", req.Operation, req.Quantity))
		}
		return nil, notFoundOr(err, "stock item", "failed to apply stock movement")
	}

	if err := s.tokens.Release(ctx, token.Token, userID); err != nil {
		s.logger.Warn("release access token after movement", zap.String("item_id", itemID), zap.Error(err))
	}
	s.logger.Info("stock movement applied",
		zap.String("item_id", itemID),
		zap.String("operation", string(req.Operation)),
		zap.Int("delta", delta),
		zap.Int("quantity", item.Quantity))

	if item.Quantity <= 0 && s.bus != nil {
		if err := s.bus.Publish(ctx, events.StockItemOut{ItemID: itemID, Quantity: item.Quantity}); err != nil {
			s.logger.Warn("stock out handlers failed", zap.String("item_id", itemID), zap.Error(err))
		}
		if refreshed, err := s.repo.FindByID(ctx, itemID); err == nil {
			item = refreshed
		}
	}
	return item, nil
}

// DeleteItem retires an item into a terminal status, discontinued by default.
func (s *StockService) DeleteItem(ctx context.Context, itemID string, req dto.DeleteEntityRequest, userID string) (*models.StatusChangeRecord, error) {
	return retire(ctx, s.status, models.EntityStock, itemID, models.StockDiscontinued, req, userID)
}

func (s *StockService) cancel(ctx context.Context, token *models.StockAccessToken, userID string) {
	if err := s.tokens.Cancel(ctx, token.Token, userID); err != nil {
		s.logger.Warn("cancel access token", zap.String("entity_id", token.EntityID), zap.Error(err))
	}
}
