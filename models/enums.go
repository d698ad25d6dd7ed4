package models

import (
	"errors"
	"strings"
)

type AuditStatus string

const (
	AuditStatusPending AuditStatus = "PENDING"
	AuditStatusSynced  AuditStatus = "SYNCED"
)

func (s AuditStatus) IsValid() bool {
	return s == AuditStatusPending || s == AuditStatusSynced
}

func (s AuditStatus) String() string {
	return string(s)
}

// KeyField names the staged attribute used to look up the legacy row.
type KeyField string

const (
	KeyFieldEdital   KeyField = "edital"
	KeyFieldTitulo   KeyField = "titulo"
	KeyFieldProcesso KeyField = "processo"
)

// ParseKeyField maps any unknown or empty value to edital.
func ParseKeyField(s string) KeyField {
	switch KeyField(strings.ToLower(strings.TrimSpace(s))) {
	case KeyFieldTitulo:
		return KeyFieldTitulo
	case KeyFieldProcesso:
		return KeyFieldProcesso
	default:
		return KeyFieldEdital
	}
}

// SyncField is a staged attribute an operator may push to the legacy row.
type SyncField string

const (
	SyncFieldTitulo    SyncField = "titulo"
	SyncFieldDescricao SyncField = "descricao"
)

func ParseSyncField(s string) (SyncField, error) {
	switch SyncField(strings.TrimSpace(s)) {
	case SyncFieldTitulo:
		return SyncFieldTitulo, nil
	case SyncFieldDescricao:
		return SyncFieldDescricao, nil
	default:
		return "", errors.New("unknown field " + s)
	}
}

// Sentinels stored instead of empty strings.
const (
	SentinelNoEdital      = "[SEM EDITAL]"
	SentinelNoDescription = "[SEM DESCRIÇÃO]"
)

func IsSentinel(v string) bool {
	return v == SentinelNoEdital || v == SentinelNoDescription
}
