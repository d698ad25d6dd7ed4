package audit

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/audit_backend/models"
	"bitbucket.org/mmdatafocus/audit_backend/testutil"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKeyColumn(t *testing.T) {
	full := models.FieldMapping{KeyColumn: "num_edital", TitleColumn: "titulo"}
	keyOnly := models.FieldMapping{KeyColumn: "num_edital"}

	cases := []struct {
		name     string
		keyField models.KeyField
		mapping  models.FieldMapping
		strict   bool
		want     string
		wantErr  bool
	}{
		{"edital", models.KeyFieldEdital, full, false, "num_edital", false},
		{"processo", models.KeyFieldProcesso, full, true, "num_edital", false},
		{"titulo", models.KeyFieldTitulo, full, true, "titulo", false},
		{"titulo fallback", models.KeyFieldTitulo, keyOnly, false, "num_edital", false},
		{"titulo strict", models.KeyFieldTitulo, keyOnly, true, "", true},
		{"no key column", models.KeyFieldEdital, models.FieldMapping{}, false, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveKeyColumn(tc.keyField, tc.mapping, tc.strict)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, utils.ErrMappingNotConfigured))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMergeMappingPrecedence(t *testing.T) {
	settings := defaultSettings()
	stored := &models.BatchConfig{KeyField: models.KeyFieldProcesso, MapTitulo: testutil.Str("titulo_oficial")}

	m := mergeMapping(models.FieldMapping{DescriptionColumn: " objeto "}, stored, settings)
	assert.Equal(t, models.KeyFieldProcesso, m.KeyField)
	assert.Equal(t, "num_edital", m.KeyColumn)
	assert.Equal(t, "titulo_oficial", m.TitleColumn)
	assert.Equal(t, "objeto", m.DescriptionColumn)

	settings.StrictMapping = true
	m = mergeMapping(models.FieldMapping{}, stored, settings)
	assert.Empty(t, m.KeyColumn)
	assert.Equal(t, "titulo_oficial", m.TitleColumn)

	m = mergeMapping(models.FieldMapping{KeyField: "desconhecido"}, nil, defaultSettings())
	assert.Equal(t, models.KeyFieldEdital, m.KeyField)
}

func TestHasDifference(t *testing.T) {
	item := staged("1/2021", "Pregão", "Papel")

	assert.True(t, HasDifference(item, nil))
	assert.False(t, HasDifference(item, &models.LegacyRecord{Titulo: testutil.Str("Pregão"), Descricao: testutil.Str("Papel")}))
	assert.True(t, HasDifference(item, &models.LegacyRecord{Titulo: testutil.Str("Pregão "), Descricao: testutil.Str("Papel")}))
	assert.True(t, HasDifference(item, &models.LegacyRecord{Titulo: testutil.Str("Pregão")}))

	same := &models.LegacyRecord{Titulo: testutil.Str("Pregão"), Descricao: testutil.Str("Papel")}
	assert.True(t, CanAutoResolve(item, same))
	item.Status = models.AuditStatusSynced
	assert.False(t, CanAutoResolve(item, same))
}
