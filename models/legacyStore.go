package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/audit_backend/config"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const legacySchemaCacheTTL = 10 * time.Minute

// LegacyStore reads and patches the foreign legacy table. It never creates or deletes rows.
type LegacyStore struct {
	db       *gorm.DB
	table    string
	idColumn string
}

func NewLegacyStore(db *gorm.DB, table, idColumn string) (*LegacyStore, error) {
	if !utils.IsValidIdentifier(table) {
		return nil, utils.NewConfigurationError(fmt.Sprintf("invalid legacy table name %q", table), nil)
	}
	if !utils.IsValidIdentifier(idColumn) {
		return nil, utils.NewConfigurationError(fmt.Sprintf("invalid legacy id column %q", idColumn), nil)
	}
	return &LegacyStore{db: db, table: table, idColumn: idColumn}, nil
}

// DefaultLegacyStore uses the shared legacy connection and LEGACY_* settings.
func DefaultLegacyStore() (*LegacyStore, error) {
	return NewLegacyStore(config.GetLegacyDB(), config.LegacyTableName(), config.LegacyIdColumn())
}

func (s *LegacyStore) Table() string {
	return s.table
}

func (s *LegacyStore) IdColumn() string {
	return s.idColumn
}

// Columns lists the physical column names of the legacy table, cached in Redis.
func (s *LegacyStore) Columns(ctx context.Context) ([]string, error) {
	cacheKey := "LegacySchema:" + s.table
	var cached []string
	if exists, err := config.GetRedisObject(cacheKey, &cached); err == nil && exists && len(cached) > 0 {
		return cached, nil
	}

	columnTypes, err := s.db.WithContext(ctx).Migrator().ColumnTypes(s.table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", s.table, err)
	}
	columns := make([]string, 0, len(columnTypes))
	for _, ct := range columnTypes {
		columns = append(columns, ct.Name())
	}
	if len(columns) == 0 {
		return nil, utils.NewConfigurationError(fmt.Sprintf("legacy table %q not found", s.table), nil)
	}
	if err := config.SetRedisObject(cacheKey, columns, legacySchemaCacheTTL); err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field": "LegacyStore.Columns",
			"table": s.table,
		}).Warn("failed to cache legacy schema: " + err.Error())
	}
	return columns, nil
}

// FindByKeys returns every row whose column value is in keys, ordered by identity ascending.
func (s *LegacyStore) FindByKeys(ctx context.Context, column string, keys []string) ([]LegacyRow, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if err := s.checkColumns(column); err != nil {
		return nil, err
	}
	values := make([]interface{}, len(keys))
	for i, k := range keys {
		values[i] = k
	}
	var rows []map[string]interface{}
	err := s.db.WithContext(ctx).Table(s.table).
		Where(clause.IN{Column: clause.Column{Name: column}, Values: values}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: s.idColumn}}).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]LegacyRow, len(rows))
	for i, r := range rows {
		out[i] = LegacyRow(r)
	}
	return out, nil
}

// FindOneByKey returns the row with the highest identity among those matching key.
func (s *LegacyStore) FindOneByKey(ctx context.Context, column, key string) (LegacyRow, error) {
	if err := s.checkColumns(column); err != nil {
		return nil, err
	}
	var rows []map[string]interface{}
	err := s.db.WithContext(ctx).Table(s.table).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: key}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: s.idColumn}, Desc: true}).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, utils.NewNotFound("Legacy item", "")
	}
	return LegacyRow(rows[0]), nil
}

// UpdateColumns sets values on the row identified by id in a single UPDATE.
func (s *LegacyStore) UpdateColumns(ctx context.Context, id interface{}, values map[string]interface{}) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	for col := range values {
		if err := s.checkColumns(col); err != nil {
			return 0, err
		}
		if col == s.idColumn {
			return 0, utils.NewValidationError(col, "identity column cannot be updated")
		}
	}
	res := s.db.WithContext(ctx).Table(s.table).
		Where(clause.Eq{Column: clause.Column{Name: s.idColumn}, Value: id}).
		Updates(values)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (s *LegacyStore) checkColumns(columns ...string) error {
	for _, c := range columns {
		if !utils.IsValidIdentifier(c) {
			return utils.NewValidationError("column", fmt.Sprintf("invalid column name %q", c))
		}
	}
	return nil
}
