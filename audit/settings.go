package audit

import (
	"bitbucket.org/mmdatafocus/audit_backend/config"
	"bitbucket.org/mmdatafocus/audit_backend/models"
)

// Settings is the reconciliation configuration injected into the Service.
type Settings struct {
	LegacyTable    string
	LegacyIdColumn string
	DefaultMapping models.FieldMapping
	// StrictMapping disables DefaultMapping and the titulo to key column fallback.
	StrictMapping bool
	AutoResolve   bool
}

func SettingsFromEnv() Settings {
	return Settings{
		LegacyTable:    config.LegacyTableName(),
		LegacyIdColumn: config.LegacyIdColumn(),
		DefaultMapping: models.FieldMapping{
			KeyField:          models.KeyFieldEdital,
			KeyColumn:         config.LegacyMapKey(),
			TitleColumn:       config.LegacyMapTitle(),
			DescriptionColumn: config.LegacyMapDescription(),
		},
		StrictMapping: config.StrictFieldMapping(),
		AutoResolve:   config.AutoResolveEnabled(),
	}
}
