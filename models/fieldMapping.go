package models

import (
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/audit_backend/utils"
)

// FieldMapping binds the staged attributes to physical legacy columns.
type FieldMapping struct {
	KeyField          KeyField `json:"keyField,omitempty"`
	KeyColumn         string   `json:"edital"`
	TitleColumn       string   `json:"titulo"`
	DescriptionColumn string   `json:"descricao"`
}

// WithDefaults fills every empty field from def.
func (m FieldMapping) WithDefaults(def FieldMapping) FieldMapping {
	out := m.Trimmed()
	if out.KeyField == "" {
		out.KeyField = def.KeyField
	}
	if out.KeyColumn == "" {
		out.KeyColumn = def.KeyColumn
	}
	if out.TitleColumn == "" {
		out.TitleColumn = def.TitleColumn
	}
	if out.DescriptionColumn == "" {
		out.DescriptionColumn = def.DescriptionColumn
	}
	out.KeyField = ParseKeyField(string(out.KeyField))
	return out
}

// Trimmed strips surrounding whitespace from every field.
func (m FieldMapping) Trimmed() FieldMapping {
	return FieldMapping{
		KeyField:          KeyField(strings.TrimSpace(string(m.KeyField))),
		KeyColumn:         strings.TrimSpace(m.KeyColumn),
		TitleColumn:       strings.TrimSpace(m.TitleColumn),
		DescriptionColumn: strings.TrimSpace(m.DescriptionColumn),
	}
}

// Validate fails with ErrMappingNotConfigured when no key column is set, and
// rejects any column that is not a plain identifier.
func (m FieldMapping) Validate() error {
	if strings.TrimSpace(m.KeyColumn) == "" {
		return utils.NewConfigurationError("field mapping has no key column", utils.ErrMappingNotConfigured)
	}
	for field, col := range m.namedColumns() {
		if col != "" && !utils.IsValidIdentifier(col) {
			return utils.NewValidationError("mapping."+field, fmt.Sprintf("invalid column name %q", col))
		}
	}
	return nil
}

// ValidateAgainst checks every configured column exists in the legacy schema.
func (m FieldMapping) ValidateAgainst(columns []string) error {
	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[strings.ToLower(c)] = struct{}{}
	}
	for _, col := range m.Columns() {
		if _, ok := known[strings.ToLower(col)]; !ok {
			return utils.NewConfigurationError(fmt.Sprintf("column %q does not exist in legacy table", col), nil)
		}
	}
	return nil
}

// Columns lists the distinct non-empty columns of the mapping.
func (m FieldMapping) Columns() []string {
	return utils.UniqueSlice(nonEmpty(m.KeyColumn, m.TitleColumn, m.DescriptionColumn))
}

// SyncColumn returns the legacy column that receives field f.
func (m FieldMapping) SyncColumn(f SyncField) string {
	if f == SyncFieldTitulo {
		return m.TitleColumn
	}
	return m.DescriptionColumn
}

func (m FieldMapping) namedColumns() map[string]string {
	return map[string]string{
		"edital":    m.KeyColumn,
		"titulo":    m.TitleColumn,
		"descricao": m.DescriptionColumn,
	}
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
