package audit

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportBatchWritesWorkbook(t *testing.T) {
	f := scenarioC(t, defaultSettings())
	ctx := context.Background()

	rows, err := f.svc.ExportBatch(ctx, testBatch, nil, defaultSettings().DefaultMapping)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	// Export never resolves anything.
	assert.Equal(t, "PENDING", string(f.status(t, 0)))

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, rows))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()

	header, err := wb.GetCellValue(exportSheet, "E1")
	require.NoError(t, err)
	assert.Equal(t, "Edital", header)

	edital, _ := wb.GetCellValue(exportSheet, "E2")
	assert.Equal(t, "001/2021", edital)
	legacyTitle, _ := wb.GetCellValue(exportSheet, "I3")
	assert.Equal(t, "Pregão 2", legacyTitle)
	diff, _ := wb.GetCellValue(exportSheet, "K2")
	assert.Equal(t, "NÃO", diff)
	diff, _ = wb.GetCellValue(exportSheet, "K6")
	assert.Equal(t, "SIM", diff)
	legacyId, _ := wb.GetCellValue(exportSheet, "H6")
	assert.Empty(t, legacyId)
}

func TestExportEmptyBatch(t *testing.T) {
	f := newFixture(t, defaultSettings(), nil)

	rows, err := f.svc.ExportBatch(context.Background(), "missing", nil, defaultSettings().DefaultMapping)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, "auditoria_missing.xlsx", ExportFileName("missing"))
}
