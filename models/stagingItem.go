package models

import (
	"time"
)

// StagingItem is a record extracted from a source page, awaiting review.
type StagingItem struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	BatchId   string      `gorm:"size:100;index;not null" json:"batchId"`
	SourceUrl string      `gorm:"type:text" json:"sourceUrl"`
	Processo  string      `gorm:"type:text;not null" json:"processo"`
	Edital    string      `gorm:"size:255;index;not null" json:"edital"`
	Titulo    string      `gorm:"type:text;not null" json:"titulo"`
	Descricao string      `gorm:"type:text;not null" json:"descricao"`
	Ano       *string     `gorm:"size:10;index" json:"ano"`
	Status    AuditStatus `gorm:"size:20;index;not null;default:PENDING" json:"status"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updatedAt"`
}

// StagingPatch carries operator edits. Nil fields are left untouched.
type StagingPatch struct {
	Titulo    *string `json:"titulo"`
	Descricao *string `json:"descricao"`
}

func (p StagingPatch) IsEmpty() bool {
	return p.Titulo == nil && p.Descricao == nil
}

// KeyValue returns the attribute selected by keyField.
func (item *StagingItem) KeyValue(keyField KeyField) string {
	switch keyField {
	case KeyFieldTitulo:
		return item.Titulo
	case KeyFieldProcesso:
		return item.Processo
	default:
		return item.Edital
	}
}

func (item *StagingItem) IsSynced() bool {
	return item.Status == AuditStatusSynced
}

// FieldValue returns the staged value pushed for a sync field.
func (item *StagingItem) FieldValue(f SyncField) string {
	if f == SyncFieldTitulo {
		return item.Titulo
	}
	return item.Descricao
}

// PartitionLabel renders the partition for batch ids and snapshot names.
func PartitionLabel(ano *string) string {
	if ano == nil || *ano == "" {
		return "sem_ano"
	}
	return *ano
}
