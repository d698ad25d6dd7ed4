package config

import "strconv"

// Legacy table layout. Physical column names are only defaults; per batch mappings override them.

func LegacyTableName() string {
	return envDefault("LEGACY_TABLE_NAME", "licitacoes")
}

func LegacyIdColumn() string {
	return envDefault("LEGACY_ID_COLUMN", "id")
}

func LegacyMapKey() string {
	return envDefault("LEGACY_MAP_KEY", "num_edital")
}

func LegacyMapTitle() string {
	return envDefault("LEGACY_MAP_TITLE", "titulo")
}

func LegacyMapDescription() string {
	return envDefault("LEGACY_MAP_DESCRIPTION", "descricao")
}

// ScraperTimeoutSeconds is the per request fetch timeout. 0 disables it.
func ScraperTimeoutSeconds() int {
	return intFromEnv("SCRAPER_HTTP_TIMEOUT_SECONDS", 60)
}

func ScraperUserAgent() string {
	return envDefault("SCRAPER_USER_AGENT", "audit-backend/1.0 (+licitacao reconciliation)")
}

// SnapshotBucket is the GCS bucket receiving raw fetched pages; empty disables archiving.
func SnapshotBucket() string {
	return envDefault("SNAPSHOT_BUCKET", "")
}

// AuditEventsTopic is the Pub/Sub topic for audit events; empty disables publishing.
func AuditEventsTopic() string {
	return envDefault("AUDIT_EVENTS_TOPIC", "")
}

func TokenLifespanHours() int {
	n := intFromEnv("TOKEN_HOUR_LIFESPAN", 24)
	if n <= 0 {
		return 24
	}
	return n
}

func RateLimit() (int64, int64) {
	limit := int64(intFromEnv("RATE_LIMIT_MAX_REQUESTS", 600))
	window := int64(intFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60))
	if limit <= 0 {
		limit = 600
	}
	if window <= 0 {
		window = 60
	}
	return limit, window
}

func ServerPort(def int) string {
	if v := envDefault("API_PORT", ""); v != "" {
		return v
	}
	// Cloud Run standard env var.
	if v := envDefault("PORT", ""); v != "" {
		return v
	}
	return strconv.Itoa(def)
}
