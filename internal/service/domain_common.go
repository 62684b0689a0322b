package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/events"
	"github.com/noah-isme/erp-status-api/internal/models"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
)

type statusChanger interface {
	ChangeStatus(ctx context.Context, req dto.ChangeStatusRequest, userID string) (*models.StatusChangeRecord, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// retire moves an entity into a terminal status. It is the only write path behind
// every "delete" endpoint.
func retire(ctx context.Context, changer statusChanger, entityType, id, fallback string, req dto.DeleteEntityRequest, userID string) (*models.StatusChangeRecord, error) {
	def, ok := models.LookupEntity(entityType)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown entity type %q", entityType))
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = fallback
	}
	if !def.IsTerminal(status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("%s cannot be deleted into status %q", entityType, status))
	}
	if strings.TrimSpace(req.ReasonID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reasonId is required")
	}
	return changer.ChangeStatus(ctx, dto.ChangeStatusRequest{
		EntityType: entityType,
		EntityID:   id,
		NewStatus:  status,
		ReasonID:   req.ReasonID,
		Comment:    req.Comment,
	}, userID)
}

func notFoundOr(err error, what, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
