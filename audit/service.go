package audit

import (
	"context"
	"errors"
	"strconv"

	"bitbucket.org/mmdatafocus/audit_backend/config"
	"bitbucket.org/mmdatafocus/audit_backend/models"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("audit_backend/audit")

// Service reconciles staged batches against the legacy table.
type Service struct {
	staging  StagingRepository
	legacy   LegacyRepository
	matcher  *Matcher
	settings Settings
	logger   *logrus.Logger

	// Locker defaults to the shared Redis lock client.
	Locker  *redislock.Client
	Publish func(ctx context.Context, ev config.AuditEvent) error
}

func NewService(staging StagingRepository, legacy LegacyRepository, settings Settings, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Service{
		staging:  staging,
		legacy:   legacy,
		matcher:  NewMatcher(legacy, settings.LegacyIdColumn, logger),
		settings: settings,
		logger:   logger,
		Publish:  config.PublishAuditEvent,
	}
}

func (s *Service) Settings() Settings {
	return s.settings
}

// EffectiveMapping resolves the mapping used for batchId and validates it.
func (s *Service) EffectiveMapping(ctx context.Context, batchId string, request models.FieldMapping) (models.FieldMapping, error) {
	stored, err := s.staging.GetBatchConfig(ctx, batchId)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return models.FieldMapping{}, err
	}
	m := mergeMapping(request, stored, s.settings)
	if err := m.Validate(); err != nil {
		return models.FieldMapping{}, err
	}
	if err := s.checkSchema(ctx, m); err != nil {
		return models.FieldMapping{}, err
	}
	return m, nil
}

// checkSchema rejects columns missing from the legacy table. An unreadable schema is not fatal.
func (s *Service) checkSchema(ctx context.Context, m models.FieldMapping) error {
	columns, err := s.legacy.Columns(ctx)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"field": "Service.checkSchema",
		}).Warn("legacy schema unavailable; skipping column check: " + err.Error())
		return nil
	}
	return m.ValidateAgainst(columns)
}

// GetBatch returns one page of the audit view. Consistent PENDING rows are marked
// SYNCED on the way out when auto resolution is enabled.
func (s *Service) GetBatch(ctx context.Context, q BatchQuery) (*AuditPage, error) {
	ctx, span := tracer.Start(ctx, "audit.GetBatch", trace.WithAttributes(attribute.String("audit.batch_id", q.BatchId)))
	defer span.End()

	page, limit := models.NormalizePage(q.Page, q.Limit)
	items, total, err := s.staging.PageByBatch(ctx, q.BatchId, q.Ano, page, limit)
	if err != nil {
		return nil, err
	}
	result := &AuditPage{Data: make([]*AuditRow, 0, len(items)), Total: total, Page: page, Limit: limit}
	if len(items) == 0 {
		return result, nil
	}

	rows, mapping, err := s.buildRows(ctx, q.BatchId, items, q.Mapping)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resolved := 0
	if s.settings.AutoResolve {
		for _, row := range rows {
			if !CanAutoResolve(row.Staging, row.Legacy) {
				continue
			}
			if err := s.staging.MarkSynced(ctx, row.Staging.ID); err != nil {
				return nil, err
			}
			row.Staging.Status = models.AuditStatusSynced
			resolved++
		}
	}
	if resolved > 0 {
		s.logger.WithFields(logrus.Fields{
			"field":     "Service.GetBatch",
			"batch_id":  q.BatchId,
			"key_field": mapping.KeyField,
			"resolved":  resolved,
		}).Info("auto-resolved consistent items")
	}
	result.Data = rows
	return result, nil
}

func (s *Service) buildRows(ctx context.Context, batchId string, items []*models.StagingItem, request models.FieldMapping) ([]*AuditRow, models.FieldMapping, error) {
	mapping, err := s.EffectiveMapping(ctx, batchId, request)
	if err != nil {
		return nil, mapping, err
	}
	keyColumn, err := ResolveKeyColumn(mapping.KeyField, mapping, s.settings.StrictMapping)
	if err != nil {
		return nil, mapping, err
	}
	matches, err := s.matcher.Match(ctx, items, mapping.KeyField, keyColumn, mapping)
	if err != nil {
		return nil, mapping, err
	}

	rows := make([]*AuditRow, 0, len(items))
	for _, item := range items {
		m := matches.Lookup(item, mapping.KeyField)
		rows = append(rows, &AuditRow{
			Staging:   item,
			Legacy:    m.Legacy,
			Diff:      HasDifference(item, m.Legacy),
			Ambiguous: m.Ambiguous,
		})
	}
	return rows, mapping, nil
}

// Sync pushes the requested fields of a staged record to its legacy row and marks it SYNCED.
func (s *Service) Sync(ctx context.Context, id uint, req SyncRequest) error {
	ctx, span := tracer.Start(ctx, "audit.Sync", trace.WithAttributes(attribute.Int64("audit.staging_id", int64(id))))
	defer span.End()

	err := s.sync(ctx, id, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Service) sync(ctx context.Context, id uint, req SyncRequest) error {
	fields, err := parseSyncFields(req.FieldsToUpdate)
	if err != nil {
		return err
	}

	release := s.obtainSyncLock(ctx, id)
	defer release()

	item, err := s.staging.Get(ctx, id)
	if err != nil {
		return err
	}
	request := req.Mapping
	if req.KeyField != "" {
		request.KeyField = models.KeyField(req.KeyField)
	}
	mapping, err := s.EffectiveMapping(ctx, item.BatchId, request)
	if err != nil {
		return err
	}
	keyColumn, err := ResolveKeyColumn(mapping.KeyField, mapping, s.settings.StrictMapping)
	if err != nil {
		return err
	}

	keyValue := item.KeyValue(mapping.KeyField)
	if !isMatchableKey(keyValue) {
		return legacyNotFound()
	}
	row, err := s.legacy.FindOneByKey(ctx, keyColumn, keyValue)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return legacyNotFound()
	}
	if err != nil {
		return err
	}
	legacy := row.Normalize(s.settings.LegacyIdColumn, mapping)

	updates := map[string]interface{}{}
	for _, f := range fields {
		column := mapping.SyncColumn(f)
		if column == "" {
			return utils.NewConfigurationError("no legacy column mapped for "+string(f), utils.ErrMappingNotConfigured)
		}
		updates[column] = item.FieldValue(f)
	}
	// The legacy update and MarkSynced must both land once started.
	ctx = context.WithoutCancel(ctx)
	if len(updates) > 0 {
		if _, err := s.legacy.UpdateColumns(ctx, legacy.RawId, updates); err != nil {
			config.LogError(s.logger, "audit/service.go", "Sync", "UpdateColumns", map[string]any{"staging_id": id, "legacy_id": legacy.Id}, err)
			return err
		}
	}
	if err := s.staging.MarkSynced(ctx, item.ID); err != nil {
		return err
	}

	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	s.logger.WithFields(logrus.Fields{
		"field":      "Service.Sync",
		"batch_id":   item.BatchId,
		"staging_id": item.ID,
		"legacy_id":  legacy.Id,
		"fields":     names,
	}).Info("staging item synced")
	s.publish(ctx, config.AuditEvent{
		Type:      config.AuditEventRecordSynced,
		BatchId:   item.BatchId,
		StagingId: item.ID,
		LegacyId:  legacy.Id,
		Fields:    names,
	})
	return nil
}

func parseSyncFields(raw []string) ([]models.SyncField, error) {
	fields := make([]models.SyncField, 0, len(raw))
	for _, r := range utils.UniqueSlice(raw) {
		f, err := models.ParseSyncField(r)
		if err != nil {
			return nil, utils.NewValidationError("fieldsToUpdate", err.Error())
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func legacyNotFound() error {
	return &utils.NotFoundError{Resource: "Legacy item", Message: "Legacy item not found for update"}
}

// UpdateStaging edits the staged title and description. Status and legacy data are untouched.
func (s *Service) UpdateStaging(ctx context.Context, id uint, patch models.StagingPatch) (*models.StagingItem, error) {
	item, err := s.staging.UpdateContent(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"field":      "Service.UpdateStaging",
		"staging_id": id,
		"batch_id":   item.BatchId,
	}).Info("staging item edited")
	return item, nil
}

func (s *Service) ListBatches(ctx context.Context) ([]*models.BatchSummary, error) {
	batches, err := s.staging.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	if batches == nil {
		batches = []*models.BatchSummary{}
	}
	return batches, nil
}

func (s *Service) BatchPartitions(ctx context.Context, batchId string) ([]*models.PartitionSummary, error) {
	parts, err := s.staging.ListPartitions(ctx, batchId)
	if err != nil {
		return nil, err
	}
	if parts == nil {
		parts = []*models.PartitionSummary{}
	}
	return parts, nil
}

func (s *Service) BatchStatus(ctx context.Context, batchId string) (*models.BatchStatus, error) {
	return s.staging.StatusCounts(ctx, batchId)
}

func (s *Service) DeleteBatch(ctx context.Context, batchId string) (*DeleteResult, error) {
	deleted, err := s.staging.DeleteBatch(ctx, batchId)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"field":    "Service.DeleteBatch",
		"batch_id": batchId,
		"deleted":  deleted,
	}).Info("batch deleted")
	s.publish(ctx, config.AuditEvent{
		Type:    config.AuditEventBatchDeleted,
		BatchId: batchId,
		Count:   int(deleted),
	})
	return &DeleteResult{Success: true, Deleted: deleted}, nil
}

// LegacySchema lists the legacy column names.
func (s *Service) LegacySchema(ctx context.Context) ([]string, error) {
	return s.legacy.Columns(ctx)
}

func (s *Service) GetBatchConfig(ctx context.Context, batchId string) (*models.BatchConfig, error) {
	return s.staging.GetBatchConfig(ctx, batchId)
}

// SaveBatchConfig stores the mapping of a batch after checking it against the legacy schema.
func (s *Service) SaveBatchConfig(ctx context.Context, batchId string, m models.FieldMapping) (*models.BatchConfig, error) {
	m = m.Trimmed()
	m.KeyField = models.ParseKeyField(string(m.KeyField))
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if _, err := ResolveKeyColumn(m.KeyField, m, s.settings.StrictMapping); err != nil {
		return nil, err
	}
	if err := s.checkSchema(ctx, m); err != nil {
		return nil, err
	}

	cfg := &models.BatchConfig{BatchId: batchId}
	cfg.ApplyMapping(m)
	if err := s.staging.SaveBatchConfig(ctx, cfg); err != nil {
		return nil, err
	}
	return s.staging.GetBatchConfig(ctx, batchId)
}

// publish is best effort.
func (s *Service) publish(ctx context.Context, ev config.AuditEvent) {
	if s.Publish == nil {
		return
	}
	ev.CorrelationId, _ = utils.GetCorrelationIdFromContext(ctx)
	ev.Operator, _ = utils.GetUsernameFromContext(ctx)
	if err := s.Publish(ctx, ev); err != nil {
		config.LogError(s.logger, "audit/service.go", "publish", ev.Type, map[string]any{"batch_id": ev.BatchId, "staging_id": strconv.FormatUint(uint64(ev.StagingId), 10)}, err)
	}
}
