package audit

import (
	"context"

	"bitbucket.org/mmdatafocus/audit_backend/models"
	"github.com/sirupsen/logrus"
)

// LegacyReader is the read side of the legacy store used for matching.
type LegacyReader interface {
	FindByKeys(ctx context.Context, column string, keys []string) ([]models.LegacyRow, error)
}

// Matcher pairs staged records with legacy rows by exact key equality.
type Matcher struct {
	legacy   LegacyReader
	idColumn string
	logger   *logrus.Logger
}

func NewMatcher(legacy LegacyReader, idColumn string, logger *logrus.Logger) *Matcher {
	return &Matcher{legacy: legacy, idColumn: idColumn, logger: logger}
}

type Match struct {
	Legacy    *models.LegacyRecord
	Ambiguous bool
}

// Matches maps a staged key value to its legacy row.
type Matches map[string]Match

// Lookup returns the match of item, the zero Match when there is none.
func (m Matches) Lookup(item *models.StagingItem, keyField models.KeyField) Match {
	key := item.KeyValue(keyField)
	if !isMatchableKey(key) {
		return Match{}
	}
	return m[key]
}

// Match loads every legacy row for the distinct keys of items in one query. When
// several rows share a key the one with the highest identity wins and the match is
// flagged ambiguous.
func (mt *Matcher) Match(ctx context.Context, items []*models.StagingItem, keyField models.KeyField, keyColumn string, mapping models.FieldMapping) (Matches, error) {
	keys := distinctKeys(items, keyField)
	matches := Matches{}
	if len(keys) == 0 {
		return matches, nil
	}

	rows, err := mt.legacy.FindByKeys(ctx, keyColumn, keys)
	if err != nil {
		return nil, err
	}
	// rows come ordered by identity ascending.
	for _, row := range rows {
		key := row.Value(keyColumn)
		if key == nil {
			continue
		}
		rec := row.Normalize(mt.idColumn, mapping)
		prev, dup := matches[*key]
		if dup {
			mt.logger.WithFields(logrus.Fields{
				"field":      "Matcher.Match",
				"key_column": keyColumn,
				"key":        *key,
				"kept_id":    rec.Id,
				"dropped_id": prev.Legacy.Id,
			}).Warn("duplicate legacy key; keeping the highest id")
		}
		matches[*key] = Match{Legacy: rec, Ambiguous: dup}
	}
	return matches, nil
}

func distinctKeys(items []*models.StagingItem, keyField models.KeyField) []string {
	seen := make(map[string]bool, len(items))
	keys := make([]string, 0, len(items))
	for _, item := range items {
		key := item.KeyValue(keyField)
		if !isMatchableKey(key) || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}

func isMatchableKey(key string) bool {
	return key != "" && !models.IsSentinel(key)
}
