package audit

import (
	"context"

	"bitbucket.org/mmdatafocus/audit_backend/models"
)

// StagingRepository is the staging store as used by the audit service.
type StagingRepository interface {
	PageByBatch(ctx context.Context, batchId string, ano *string, page, limit int) ([]*models.StagingItem, int64, error)
	ItemsByBatch(ctx context.Context, batchId string, ano *string) ([]*models.StagingItem, error)
	Get(ctx context.Context, id uint) (*models.StagingItem, error)
	MarkSynced(ctx context.Context, id uint) error
	UpdateContent(ctx context.Context, id uint, patch models.StagingPatch) (*models.StagingItem, error)
	DeleteBatch(ctx context.Context, batchId string) (int64, error)
	ListBatches(ctx context.Context) ([]*models.BatchSummary, error)
	ListPartitions(ctx context.Context, batchId string) ([]*models.PartitionSummary, error)
	StatusCounts(ctx context.Context, batchId string) (*models.BatchStatus, error)
	GetBatchConfig(ctx context.Context, batchId string) (*models.BatchConfig, error)
	SaveBatchConfig(ctx context.Context, cfg *models.BatchConfig) error
}

// LegacyRepository is the legacy store as used by the audit service.
type LegacyRepository interface {
	LegacyReader
	Columns(ctx context.Context) ([]string, error)
	FindOneByKey(ctx context.Context, column, key string) (models.LegacyRow, error)
	UpdateColumns(ctx context.Context, id interface{}, values map[string]interface{}) (int64, error)
}

// AuditRow is one staged record next to its legacy counterpart.
type AuditRow struct {
	Staging   *models.StagingItem  `json:"staging"`
	Legacy    *models.LegacyRecord `json:"legacy"`
	Diff      bool                 `json:"diff"`
	Ambiguous bool                 `json:"ambiguous,omitempty"`
}

type AuditPage struct {
	Data  []*AuditRow `json:"data"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// BatchQuery selects one page of a batch. Empty mapping fields fall back to the
// stored batch config and then to the defaults.
type BatchQuery struct {
	BatchId string
	Ano     *string
	Page    int
	Limit   int
	Mapping models.FieldMapping
}

type SyncRequest struct {
	FieldsToUpdate []string            `json:"fieldsToUpdate"`
	Mapping        models.FieldMapping `json:"mapping"`
	KeyField       string              `json:"keyField"`
}

type DeleteResult struct {
	Success bool  `json:"success"`
	Deleted int64 `json:"deleted"`
}
