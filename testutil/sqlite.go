// Package testutil opens throwaway sqlite databases shaped like staging and legacy.
package testutil

import (
	"database/sql"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const LegacyTable = "licitacoes"

// OpenSQLite returns an in-memory database closed with the test.
func OpenSQLite(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// Each connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// LegacyRow is a fixture row of the legacy licitacoes table.
type LegacyRow struct {
	NumEdital *string
	Titulo    *string
	Descricao *string
}

// CreateLegacyTable creates the legacy table and inserts rows in order. It returns their ids.
func CreateLegacyTable(t testing.TB, db *gorm.DB, rows ...LegacyRow) []int64 {
	t.Helper()
	err := db.Exec(`CREATE TABLE ` + LegacyTable + ` (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		num_edital TEXT,
		titulo TEXT,
		descricao TEXT,
		data_abertura DATETIME
	)`).Error
	if err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, InsertLegacy(t, db, r))
	}
	return ids
}

func InsertLegacy(t testing.TB, db *gorm.DB, r LegacyRow) int64 {
	t.Helper()
	if err := db.Exec(`INSERT INTO `+LegacyTable+` (num_edital, titulo, descricao) VALUES (?, ?, ?)`,
		r.NumEdital, r.Titulo, r.Descricao).Error; err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	var id int64
	if err := db.Raw(`SELECT MAX(id) FROM ` + LegacyTable).Row().Scan(&id); err != nil {
		t.Fatalf("read legacy id: %v", err)
	}
	return id
}

// LegacyColumn reads one column of a legacy row; nil for NULL.
func LegacyColumn(t testing.TB, db *gorm.DB, id int64, column string) *string {
	t.Helper()
	var v sql.NullString
	if err := db.Raw(`SELECT `+column+` FROM `+LegacyTable+` WHERE id = ?`, id).Row().Scan(&v); err != nil {
		t.Fatalf("read legacy %s: %v", column, err)
	}
	if !v.Valid {
		return nil
	}
	return &v.String
}

func Str(s string) *string {
	return &s
}
