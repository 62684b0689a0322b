package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/events"
	"github.com/noah-isme/erp-status-api/internal/models"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
)

type employeeStore interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
}

// HRService exposes employee lifecycle operations.
type HRService struct {
	repo   employeeStore
	status statusChanger
	bus    eventPublisher
	logger *zap.Logger
}

// NewHRService constructs the service.
func NewHRService(repo employeeStore, status statusChanger, bus eventPublisher, logger *zap.Logger) *HRService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HRService{repo: repo, status: status, bus: bus, logger: logger}
}

// GetEmployee returns an employee.
func (s *HRService) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "employee", "failed to load employee")
	}
	return employee, nil
}

// DeleteEmployee never removes the row. With an explicit terminal status the change
// is applied directly; otherwise EmployeeDeleted is raised and the workflow suspends
// the employee. The record is nil in the second case, and the call fails unless the
// employee is suspended once the handlers return.
func (s *HRService) DeleteEmployee(ctx context.Context, id string, req dto.DeleteEntityRequest, userID string) (*models.StatusChangeRecord, error) {
	if strings.TrimSpace(req.Status) != "" {
		return retire(ctx, s.status, models.EntityEmployees, id, "", req, userID)
	}
	if _, err := s.GetEmployee(ctx, id); err != nil {
		return nil, err
	}
	if s.bus == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "employee workflow is not configured")
	}
	if err := s.bus.Publish(ctx, events.EmployeeDeleted{EmployeeID: id, RequestedBy: userID}); err != nil {
		s.logger.Warn("employee deletion handlers failed", zap.String("employee_id", id), zap.Error(err))
		return nil, appErrors.FromError(err)
	}

	employee, err := s.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if employee.Status != models.EmployeeSuspended {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("employee %s is %s, suspension was not applied", id, employee.Status))
	}
	return nil, nil
}
