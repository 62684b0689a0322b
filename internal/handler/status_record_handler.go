package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/internal/service"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
	"github.com/noah-isme/erp-status-api/pkg/response"
)

type statusRecordReader interface {
	List(ctx context.Context, query dto.StatusRecordQuery) ([]models.StatusChangeRecord, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.StatusChangeRecord, error)
	History(ctx context.Context, entityType, entityID string) ([]models.StatusChangeRecord, error)
}

type statusChanger interface {
	ChangeStatus(ctx context.Context, req dto.ChangeStatusRequest, userID string) (*models.StatusChangeRecord, error)
}

type statusExporter interface {
	Export(ctx context.Context, query dto.StatusRecordQuery, format string) (*service.ExportFile, error)
}

// StatusRecordHandler serves the status change log and the change-status command.
type StatusRecordHandler struct {
	records  statusRecordReader
	changer  statusChanger
	exporter statusExporter
}

// NewStatusRecordHandler builds a new handler.
func NewStatusRecordHandler(records statusRecordReader, changer statusChanger, exporter statusExporter) *StatusRecordHandler {
	return &StatusRecordHandler{records: records, changer: changer, exporter: exporter}
}

// List godoc
// @Summary List status change records
// @Tags StatusRecords
// @Produce json
// @Param entityType query string false "Entity type"
// @Param entityId query string false "Entity ID"
// @Param status query string false "New status"
// @Param startDate query string false "RFC3339 lower bound"
// @Param endDate query string false "RFC3339 upper bound"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /status-change-records [get]
func (h *StatusRecordHandler) List(c *gin.Context) {
	var query dto.StatusRecordQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	records, pagination, err := h.records.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Get godoc
// @Summary Get a status change record
// @Tags StatusRecords
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Router /status-change-records/{id} [get]
func (h *StatusRecordHandler) Get(c *gin.Context) {
	record, err := h.records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// History godoc
// @Summary Status history of one entity
// @Tags StatusRecords
// @Produce json
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity ID"
// @Success 200 {object} response.Envelope
// @Router /status-change-records/history/{entityType}/{entityId} [get]
func (h *StatusRecordHandler) History(c *gin.Context) {
	records, err := h.records.History(c.Request.Context(), c.Param("entityType"), c.Param("entityId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Create godoc
// @Summary Change the status of an entity
// @Tags StatusRecords
// @Accept json
// @Produce json
// @Param payload body dto.ChangeStatusRequest true "Status change"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /status-change-records [post]
func (h *StatusRecordHandler) Create(c *gin.Context) {
	var req dto.ChangeStatusRequest
	if !bindJSON(c, &req, "status change") {
		return
	}
	record, err := h.changer.ChangeStatus(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Export godoc
// @Summary Export status change records
// @Tags StatusRecords
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /status-change-records/export [get]
func (h *StatusRecordHandler) Export(c *gin.Context) {
	var query dto.StatusRecordQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), query, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
