package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/models"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
	"github.com/noah-isme/erp-status-api/pkg/export"
)

const (
	exportPageSize   = 500
	exportMaxRecords = 10000
)

type recordLister interface {
	List(ctx context.Context, filter models.StatusChangeRecordFilter) ([]models.StatusChangeRecord, int, error)
}

// ExportFile is a rendered export ready to be downloaded.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// StatusExportService renders the filtered status change log as CSV or PDF.
type StatusExportService struct {
	records recordLister
	logger  *zap.Logger
	now     func() time.Time
}

// NewStatusExportService constructs the service.
func NewStatusExportService(records recordLister, logger *zap.Logger) *StatusExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusExportService{records: records, logger: logger, now: time.Now}
}

// Export renders every record matching query, up to a fixed ceiling.
func (s *StatusExportService) Export(ctx context.Context, query dto.StatusRecordQuery, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	filter := query.Filter()
	filter.PageSize = exportPageSize
	var all []models.StatusChangeRecord
	for page := 1; len(all) < exportMaxRecords; page++ {
		filter.Page = page
		batch, total, err := s.records.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load records for export")
		}
		all = append(all, batch...)
		if len(batch) < exportPageSize || len(all) >= total {
			break
		}
	}
	if len(all) > exportMaxRecords {
		all = all[:exportMaxRecords]
	}

	body, err := export.Render(format, recordsDataset(all))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("status records exported", zap.String("format", string(format)), zap.Int("rows", len(all)))
	return &ExportFile{
		Filename:    fmt.Sprintf("status-changes-%s.%s", s.now().UTC().Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Body:        body,
		Rows:        len(all),
	}, nil
}

func recordsDataset(records []models.StatusChangeRecord) export.Dataset {
	data := export.Dataset{
		Title:   "Status change log",
		Headers: []string{"changed_at", "entity_type", "entity_id", "previous_status", "new_status", "reason_id", "changed_by", "approved_by", "comment"},
		Rows:    make([][]string, 0, len(records)),
	}
	for _, r := range records {
		data.Rows = append(data.Rows, []string{
			r.ChangedAt.UTC().Format(time.RFC3339),
			r.EntityType,
			r.EntityID,
			r.PreviousStatus,
			r.NewStatus,
			r.ReasonID,
			r.ChangedBy,
			deref(r.ApprovedBy),
			deref(r.Comment),
		})
	}
	return data
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
