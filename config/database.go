package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var (
	stagingDB *gorm.DB
	legacyDB  *gorm.DB
)

// GetStagingDB returns the owned staging database (scraped items, batch configs).
func GetStagingDB() *gorm.DB {
	return stagingDB
}

// GetLegacyDB returns the foreign production database. Never migrated.
func GetLegacyDB() *gorm.DB {
	return legacyDB
}

func init() {
	// Load env from .env
	godotenv.Load()
}

// DBSettings describes one connection. Driver "sqlite" uses Path, "mysql" the network fields.
type DBSettings struct {
	Label    string
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	Path     string
}

// StagingDBSettings reads STAGING_DB_* variables.
func StagingDBSettings() DBSettings {
	return dbSettingsFromEnv("staging", "STAGING_DB", "staging_db")
}

// LegacyDBSettings reads LEGACY_DB_* variables.
func LegacyDBSettings() DBSettings {
	return dbSettingsFromEnv("legacy", "LEGACY_DB", "production_db")
}

func dbSettingsFromEnv(label, prefix, defaultName string) DBSettings {
	return DBSettings{
		Label:    label,
		Driver:   strings.ToLower(envDefault(prefix+"_DRIVER", DriverMySQL)),
		Host:     envDefault(prefix+"_HOST", "localhost"),
		Port:     envDefault(prefix+"_PORT", "3306"),
		User:     envDefault(prefix+"_USER", "user"),
		Password: envDefault(prefix+"_PASSWORD", "password"),
		Name:     envDefault(prefix+"_NAME", defaultName),
		Path:     envDefault(prefix+"_PATH", filepath.Join("data", label+".db")),
	}
}

// DSN builds the driver specific connection string.
func (s DBSettings) DSN() string {
	if s.Driver == DriverSQLite {
		return s.Path
	}
	network := "tcp"
	address := fmt.Sprintf("%s:%s", s.Host, s.Port)
	// Cloud SQL Auth Proxy exposes a unix socket under /cloudsql/<CONNECTION_NAME>.
	if strings.HasPrefix(s.Host, "/cloudsql/") {
		network = "unix"
		address = s.Host
	}
	return fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4",
		s.User,
		s.Password,
		network,
		address,
		s.Name,
	)
}

func (s DBSettings) dialector() (gorm.Dialector, error) {
	switch s.Driver {
	case DriverMySQL:
		return mysql.Open(s.DSN()), nil
	case DriverSQLite:
		if dir := filepath.Dir(s.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		return sqlite.Open(s.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", s.Driver)
	}
}

// OpenDatabase makes a single connection attempt. Used directly by the CLI.
func OpenDatabase(s DBSettings) (*gorm.DB, error) {
	dialector, err := s.dialector()
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, initConfig())
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", s.Label, err)
	}
	tunePool(db, s)
	if pluginErr := db.Use(otelgorm.NewPlugin(otelgorm.WithDBName(s.Name))); pluginErr != nil {
		log.Printf("%s db connected but failed to install otelgorm plugin: %v", s.Label, pluginErr)
	}
	return db, nil
}

// ConnectDatabasesWithRetry connects staging and legacy and sets the globals.
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabasesWithRetry() {
	stagingDB = openWithRetry(StagingDBSettings())
	legacyDB = openWithRetry(LegacyDBSettings())
}

func openWithRetry(s DBSettings) *gorm.DB {
	var attempt int
	for {
		attempt++
		db, err := OpenDatabase(s)
		if err == nil {
			if sqlDB, derr := db.DB(); derr == nil {
				err = sqlDB.Ping()
			}
		}
		if err == nil {
			log.Printf("connected to %s database (attempt=%d driver=%s)", s.Label, attempt, s.Driver)
			return db
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect %s database (attempt=%d): %v; retrying in %s", s.Label, attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// Env overrides (optional):
// - DB_MAX_OPEN_CONNS (default 20)
// - DB_MAX_IDLE_CONNS (default 10)
// - DB_CONN_MAX_LIFETIME_SECONDS (default 300)
func tunePool(db *gorm.DB, s DBSettings) {
	sqlDB, err := db.DB()
	if err != nil || sqlDB == nil {
		return
	}
	if s.Driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
		return
	}
	maxOpen := intFromEnv("DB_MAX_OPEN_CONNS", 20)
	maxIdle := intFromEnv("DB_MAX_IDLE_CONNS", 10)
	connMaxLife := time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second

	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if connMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(connMaxLife)
	}
}

// CloseDatabases closes both pools (best-effort).
func CloseDatabases() {
	for _, db := range []*gorm.DB{stagingDB, legacyDB} {
		if db == nil {
			continue
		}
		if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
			_ = sqlDB.Close()
		}
	}
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

// GORM_LOG=info prints every statement; the default only reports errors and slow queries.
func initLog() logger.Interface {
	level := logger.Error
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GORM_LOG")), "info") {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      level,
			SlowThreshold: time.Second,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
