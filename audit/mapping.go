package audit

import (
	"bitbucket.org/mmdatafocus/audit_backend/models"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
)

// ResolveKeyColumn picks the legacy column compared against the staged key field.
// edital and processo use the key column; titulo uses the title column and, unless
// strict, falls back to the key column when no title column is mapped.
func ResolveKeyColumn(keyField models.KeyField, m models.FieldMapping, strict bool) (string, error) {
	column := m.KeyColumn
	if keyField == models.KeyFieldTitulo {
		switch {
		case m.TitleColumn != "":
			column = m.TitleColumn
		case strict:
			return "", utils.NewConfigurationError("key field titulo requires a title column", utils.ErrMappingNotConfigured)
		}
	}
	if column == "" {
		return "", utils.NewConfigurationError("no legacy column for key field "+string(keyField), utils.ErrMappingNotConfigured)
	}
	return column, nil
}

// mergeMapping layers the request over the stored batch config, then over the
// defaults unless strict.
func mergeMapping(request models.FieldMapping, stored *models.BatchConfig, settings Settings) models.FieldMapping {
	m := request.Trimmed()
	if stored != nil {
		m = m.WithDefaults(stored.Mapping())
	}
	if !settings.StrictMapping {
		m = m.WithDefaults(settings.DefaultMapping)
	}
	m.KeyField = models.ParseKeyField(string(m.KeyField))
	return m
}

