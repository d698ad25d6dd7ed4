package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/audit_backend/config"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const stagingInsertBatchSize = 200

// StagingStore owns staging_items and batch_configs.
type StagingStore struct {
	db *gorm.DB
}

func NewStagingStore(db *gorm.DB) *StagingStore {
	return &StagingStore{db: db}
}

// DefaultStagingStore uses the shared staging connection.
func DefaultStagingStore() *StagingStore {
	return NewStagingStore(config.GetStagingDB())
}

// CreateItems persists all items in one bulk write. Ids are assigned in place.
func (s *StagingStore) CreateItems(ctx context.Context, items []*StagingItem) error {
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		if !item.Status.IsValid() {
			item.Status = AuditStatusPending
		}
	}
	return s.db.WithContext(ctx).CreateInBatches(items, stagingInsertBatchSize).Error
}

// PageByBatch lists a batch page, PENDING first, then by id.
func (s *StagingStore) PageByBatch(ctx context.Context, batchId string, ano *string, page, limit int) ([]*StagingItem, int64, error) {
	page, limit = NormalizePage(page, limit)
	var total int64
	if err := s.scope(ctx, batchId, ano).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []*StagingItem
	err := s.scope(ctx, batchId, ano).Order("status ASC").Order("id ASC").
		Offset(pageOffset(page, limit)).Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ItemsByBatch returns every item of a batch (optionally one partition) in page order.
func (s *StagingStore) ItemsByBatch(ctx context.Context, batchId string, ano *string) ([]*StagingItem, error) {
	var items []*StagingItem
	err := s.scope(ctx, batchId, ano).Order("status ASC").Order("id ASC").Find(&items).Error
	return items, err
}

func (s *StagingStore) scope(ctx context.Context, batchId string, ano *string) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&StagingItem{}).Where("batch_id = ?", batchId)
	if ano != nil && *ano != "" {
		q = q.Where("ano = ?", *ano)
	}
	return q
}

func (s *StagingStore) Get(ctx context.Context, id uint) (*StagingItem, error) {
	var item StagingItem
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFound("Staging item", "")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// MarkSynced is the only write of the status column after creation.
func (s *StagingStore) MarkSynced(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&StagingItem{}).
		Where("id = ?", id).
		Update("status", AuditStatusSynced)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&StagingItem{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return utils.NewNotFound("Staging item", "")
		}
	}
	return nil
}

// UpdateContent applies operator edits to titulo and descricao only.
func (s *StagingStore) UpdateContent(ctx context.Context, id uint, patch StagingPatch) (*StagingItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if patch.Titulo != nil {
		updates["titulo"] = *patch.Titulo
		item.Titulo = *patch.Titulo
	}
	if patch.Descricao != nil {
		updates["descricao"] = *patch.Descricao
		item.Descricao = *patch.Descricao
	}
	if len(updates) == 0 {
		return item, nil
	}
	if err := s.db.WithContext(ctx).Model(&StagingItem{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *StagingStore) DeleteBatch(ctx context.Context, batchId string) (int64, error) {
	res := s.db.WithContext(ctx).Where("batch_id = ?", batchId).Delete(&StagingItem{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ListBatches returns one summary per batch, most recent first.
func (s *StagingStore) ListBatches(ctx context.Context) ([]*BatchSummary, error) {
	var batches []*BatchSummary
	err := s.db.WithContext(ctx).Model(&StagingItem{}).
		Select("batch_id, MIN(source_url) AS source_url, COUNT(id) AS item_count, MAX(created_at) AS created_at").
		Group("batch_id").
		Order("MAX(created_at) DESC").
		Scan(&batches).Error
	return batches, err
}

// ListPartitions returns per-year totals of a batch, NULL years excluded.
func (s *StagingStore) ListPartitions(ctx context.Context, batchId string) ([]*PartitionSummary, error) {
	var rows []*PartitionSummary
	err := s.db.WithContext(ctx).Model(&StagingItem{}).
		Select("ano, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS synced", AuditStatusSynced).
		Where("batch_id = ? AND ano IS NOT NULL AND ano <> ''", batchId).
		Group("ano").
		Order("ano ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		r.Complete = r.Synced == r.Total
	}
	return rows, nil
}

func (s *StagingStore) StatusCounts(ctx context.Context, batchId string) (*BatchStatus, error) {
	var rows []struct {
		Status AuditStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&StagingItem{}).
		Select("status, COUNT(*) AS count").
		Where("batch_id = ?", batchId).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	status := &BatchStatus{}
	for _, r := range rows {
		status.Total += r.Count
		switch r.Status {
		case AuditStatusPending:
			status.Pending = r.Count
		case AuditStatusSynced:
			status.Synced = r.Count
		}
	}
	status.AllComplete = status.Pending == 0 && status.Total > 0
	return status, nil
}

func (s *StagingStore) GetBatchConfig(ctx context.Context, batchId string) (*BatchConfig, error) {
	var cfg BatchConfig
	err := s.db.WithContext(ctx).Where("batch_id = ?", batchId).Take(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFound("Batch config", batchId)
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveBatchConfig upserts the mapping of a batch. The source url is kept when cfg has none.
func (s *StagingStore) SaveBatchConfig(ctx context.Context, cfg *BatchConfig) error {
	cfg.KeyField = ParseKeyField(string(cfg.KeyField))
	columns := []string{"key_field", "map_edital", "map_titulo", "map_descricao", "updated_at"}
	if cfg.SourceUrl != nil {
		columns = append(columns, "source_url")
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "batch_id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(cfg).Error
}

// TouchBatchConfig makes sure a config row exists for batchId, recording its source url.
func (s *StagingStore) TouchBatchConfig(ctx context.Context, batchId, sourceUrl string) error {
	cfg := &BatchConfig{
		BatchId:   batchId,
		SourceUrl: optional(sourceUrl),
		KeyField:  KeyFieldEdital,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "batch_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"source_url": sourceUrl,
			"updated_at": time.Now(),
		}),
	}).Create(cfg).Error
}
