package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/pkg/response"
)

type hrService interface {
	GetEmployee(ctx context.Context, id string) (*models.Employee, error)
	DeleteEmployee(ctx context.Context, id string, req dto.DeleteEntityRequest, userID string) (*models.StatusChangeRecord, error)
}

// EmployeeHandler exposes employee endpoints.
type EmployeeHandler struct {
	service hrService
}

// NewEmployeeHandler builds a new handler.
func NewEmployeeHandler(service hrService) *EmployeeHandler {
	return &EmployeeHandler{service: service}
}

// Get godoc
// @Summary Get an employee
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Router /employees/{id} [get]
func (h *EmployeeHandler) Get(c *gin.Context) {
	employee, err := h.service.GetEmployee(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, employee, nil)
}

// Delete godoc
// @Summary Retire an employee
// @Description Without a status the employee is suspended by the workflow and 202 is returned.
// @Tags Employees
// @Accept json
// @Produce json
// @Param id path string true "Employee ID"
// @Param payload body dto.DeleteEntityRequest false "Terminal status and reason"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /employees/{id} [delete]
func (h *EmployeeHandler) Delete(c *gin.Context) {
	var req dto.DeleteEntityRequest
	if !bindOptionalJSON(c, &req, "delete") {
		return
	}
	record, err := h.service.DeleteEmployee(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if record == nil {
		response.JSON(c, http.StatusAccepted, gin.H{"employeeId": c.Param("id"), "status": models.EmployeeSuspended}, nil)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}
