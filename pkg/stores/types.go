package stores

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/xequation/xequation/pkg/config"
	"github.com/xequation/xequation/pkg/equation"
)

// ErrNotFound is returned when a workbook does not exist.
var ErrNotFound = errors.New("not found")

// WorkbookRecord is a stored workbook.
type WorkbookRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Statements  []string  `json:"statements"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Workbook converts the record back into a workbook document.
func (r *WorkbookRecord) Workbook() *config.Workbook {
	wb := config.NewWorkbook(r.Name, r.Statements)
	wb.Description = r.Description
	return wb
}

// EvaluationRecord is the outcome of one equation after an update pass.
type EvaluationRecord struct {
	ID          string    `json:"id"`
	WorkbookID  string    `json:"workbook_id"`
	Equation    string    `json:"equation"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	Value       string    `json:"value,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Snapshot captures the current state of every equation in m, in
// evaluation order.
func Snapshot(m *equation.Manager, workbookID string, at time.Time) []EvaluationRecord {
	names := m.EvaluationOrder()
	records := make([]EvaluationRecord, 0, len(names))
	for _, name := range names {
		eq, err := m.GetEquation(name)
		if err != nil {
			continue
		}
		rec := EvaluationRecord{
			ID:          uuid.NewString(),
			WorkbookID:  workbookID,
			Equation:    name,
			Status:      eq.Status().String(),
			Message:     eq.Message(),
			EvaluatedAt: at,
		}
		if !eq.Value().IsNull() {
			rec.Value = eq.Value().String()
		}
		records = append(records, rec)
	}
	return records
}

// Store defines the persistence interface for workbooks.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
	HealthCheck(ctx context.Context) error

	// Workbooks
	SaveWorkbook(ctx context.Context, wb *config.Workbook) (*WorkbookRecord, error)
	GetWorkbook(ctx context.Context, name string) (*WorkbookRecord, error)
	ListWorkbooks(ctx context.Context, limit, offset int) ([]*WorkbookRecord, error)
	DeleteWorkbook(ctx context.Context, name string) error

	// Evaluation history
	RecordEvaluations(ctx context.Context, records []EvaluationRecord) error
	ListEvaluations(ctx context.Context, workbookID string, limit int) ([]*EvaluationRecord, error)
}
