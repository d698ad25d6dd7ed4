package models

import "time"

// BatchConfig is the persisted mapping of one batch against the legacy table.
type BatchConfig struct {
	BatchId      string    `gorm:"primaryKey;size:100" json:"batchId"`
	SourceUrl    *string   `gorm:"type:text" json:"sourceUrl"`
	KeyField     KeyField  `gorm:"size:20;not null;default:edital" json:"keyField"`
	MapEdital    *string   `gorm:"size:100" json:"mapEdital"`
	MapTitulo    *string   `gorm:"size:100" json:"mapTitulo"`
	MapDescricao *string   `gorm:"size:100" json:"mapDescricao"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Mapping converts the stored columns into a FieldMapping. Nil columns stay empty.
func (cfg *BatchConfig) Mapping() FieldMapping {
	if cfg == nil {
		return FieldMapping{}
	}
	return FieldMapping{
		KeyField:          cfg.KeyField,
		KeyColumn:         deref(cfg.MapEdital),
		TitleColumn:       deref(cfg.MapTitulo),
		DescriptionColumn: deref(cfg.MapDescricao),
	}
}

// ApplyMapping overwrites the stored mapping with m.
func (cfg *BatchConfig) ApplyMapping(m FieldMapping) {
	cfg.KeyField = ParseKeyField(string(m.KeyField))
	cfg.MapEdital = optional(m.KeyColumn)
	cfg.MapTitulo = optional(m.TitleColumn)
	cfg.MapDescricao = optional(m.DescriptionColumn)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
