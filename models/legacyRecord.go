package models

import (
	"bitbucket.org/mmdatafocus/audit_backend/utils"
)

// LegacyRow is one row of the legacy table as scanned by gorm.
type LegacyRow map[string]interface{}

// LegacyRecord is the normalized view of a legacy row under a mapping.
type LegacyRecord struct {
	Id        string      `json:"id"`
	Titulo    *string     `json:"titulo"`
	Descricao *string     `json:"descricao"`
	Edital    *string     `json:"edital"`
	RawId     interface{} `json:"-"`
}

// Value returns the column value as a string, nil for NULL or missing columns.
func (r LegacyRow) Value(column string) *string {
	if column == "" {
		return nil
	}
	v, ok := r[column]
	if !ok {
		return nil
	}
	s, ok := utils.StringValue(v)
	if !ok {
		return nil
	}
	return &s
}

// Normalize projects the row onto id, titulo, descricao and edital.
func (r LegacyRow) Normalize(idColumn string, m FieldMapping) *LegacyRecord {
	if r == nil {
		return nil
	}
	rec := &LegacyRecord{
		Titulo:    r.Value(m.TitleColumn),
		Descricao: r.Value(m.DescriptionColumn),
		Edital:    r.Value(m.KeyColumn),
		RawId:     r[idColumn],
	}
	if id := r.Value(idColumn); id != nil {
		rec.Id = *id
	}
	return rec
}
