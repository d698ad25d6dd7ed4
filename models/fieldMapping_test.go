package models

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/audit_backend/utils"
)

var defaultMapping = FieldMapping{
	KeyField:          KeyFieldEdital,
	KeyColumn:         "num_edital",
	TitleColumn:       "titulo",
	DescriptionColumn: "descricao",
}

func TestFieldMappingWithDefaults(t *testing.T) {
	cases := []struct {
		name string
		in   FieldMapping
		want FieldMapping
	}{
		{"empty", FieldMapping{}, defaultMapping},
		{"blank strings", FieldMapping{KeyColumn: "  ", TitleColumn: ""}, defaultMapping},
		{
			"partial",
			FieldMapping{KeyField: "titulo", TitleColumn: "objeto"},
			FieldMapping{KeyField: KeyFieldTitulo, KeyColumn: "num_edital", TitleColumn: "objeto", DescriptionColumn: "descricao"},
		},
		{
			"unknown key field",
			FieldMapping{KeyField: "numero"},
			defaultMapping,
		},
	}
	for _, tc := range cases {
		got := tc.in.WithDefaults(defaultMapping)
		if got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestFieldMappingValidate(t *testing.T) {
	err := FieldMapping{TitleColumn: "titulo"}.Validate()
	if !errors.Is(err, utils.ErrMappingNotConfigured) {
		t.Fatalf("expected ErrMappingNotConfigured, got %v", err)
	}
	if utils.HTTPStatus(err) != http.StatusConflict {
		t.Fatalf("expected 409 for missing key column, got %d", utils.HTTPStatus(err))
	}

	err = FieldMapping{KeyColumn: "num_edital; DROP TABLE x"}.Validate()
	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error for unsafe column, got %v", err)
	}

	if err := defaultMapping.Validate(); err != nil {
		t.Fatalf("default mapping should validate: %v", err)
	}
}

func TestFieldMappingValidateAgainst(t *testing.T) {
	columns := []string{"id", "NUM_EDITAL", "titulo", "descricao"}
	if err := defaultMapping.ValidateAgainst(columns); err != nil {
		t.Fatalf("expected mapping to match schema: %v", err)
	}
	m := defaultMapping
	m.DescriptionColumn = "objeto"
	err := m.ValidateAgainst(columns)
	var ce *utils.ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected configuration error for unknown column, got %v", err)
	}
}

func TestStagingItemKeyValue(t *testing.T) {
	item := &StagingItem{Edital: "001/2021", Titulo: "Pregão 3/2021", Processo: "PL 9/2021"}
	cases := map[KeyField]string{
		KeyFieldEdital:   "001/2021",
		KeyFieldTitulo:   "Pregão 3/2021",
		KeyFieldProcesso: "PL 9/2021",
		KeyField("ano"):  "001/2021",
	}
	for kf, want := range cases {
		if got := item.KeyValue(kf); got != want {
			t.Fatalf("KeyValue(%q) expected %q, got %q", kf, want, got)
		}
	}
}

func TestLegacyRowNormalize(t *testing.T) {
	row := LegacyRow{"id": int64(7), "num_edital": []byte("001/2021"), "titulo": "A", "descricao": nil}
	rec := row.Normalize("id", defaultMapping)
	if rec.Id != "7" {
		t.Fatalf("expected id 7, got %q", rec.Id)
	}
	if rec.Edital == nil || *rec.Edital != "001/2021" {
		t.Fatalf("expected edital 001/2021, got %v", rec.Edital)
	}
	if rec.Descricao != nil {
		t.Fatalf("expected NULL descricao, got %q", *rec.Descricao)
	}
	if LegacyRow(nil).Normalize("id", defaultMapping) != nil {
		t.Fatalf("expected nil record for nil row")
	}
}

func TestAggregateTimeScan(t *testing.T) {
	want := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)
	inputs := []interface{}{
		want,
		"2024-03-05 10:30:00+00:00",
		[]byte("2024-03-05T10:30:00Z"),
		"2024-03-05 10:30:00",
	}
	for _, in := range inputs {
		var at AggregateTime
		if err := at.Scan(in); err != nil {
			t.Fatalf("Scan(%v) error: %v", in, err)
		}
		if !at.Time().Equal(want) {
			t.Fatalf("Scan(%v) expected %s, got %s", in, want, at.Time())
		}
	}
	var at AggregateTime
	if err := at.Scan(42); err == nil {
		t.Fatalf("expected error scanning int")
	}
}

func TestNormalizePage(t *testing.T) {
	cases := []struct{ page, limit, wantPage, wantLimit int }{
		{0, 0, 1, DefaultPageLimit},
		{3, 50, 3, 50},
		{-1, 10000, 1, MaxPageLimit},
	}
	for _, tc := range cases {
		p, l := NormalizePage(tc.page, tc.limit)
		if p != tc.wantPage || l != tc.wantLimit {
			t.Fatalf("NormalizePage(%d,%d) expected (%d,%d), got (%d,%d)", tc.page, tc.limit, tc.wantPage, tc.wantLimit, p, l)
		}
	}
}
