package audit

import (
	"context"
	"fmt"
	"io"

	"bitbucket.org/mmdatafocus/audit_backend/models"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Auditoria"

var exportHeaders = []string{
	"ID", "Status", "Ano", "Processo", "Edital", "Título", "Descrição",
	"ID Legado", "Título Legado", "Descrição Legado", "Divergente",
}

// ExportBatch builds the audit view of a whole batch without changing any status.
func (s *Service) ExportBatch(ctx context.Context, batchId string, ano *string, request models.FieldMapping) ([]*AuditRow, error) {
	items, err := s.staging.ItemsByBatch(ctx, batchId, ano)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []*AuditRow{}, nil
	}
	rows, _, err := s.buildRows(ctx, batchId, items, request)
	return rows, err
}

// WriteWorkbook writes rows as a single sheet xlsx.
func WriteWorkbook(w io.Writer, rows []*AuditRow) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}

	for i, h := range exportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(exportSheet, cell, h)
	}

	for i, r := range rows {
		n := fmt.Sprint(i + 2)
		item := r.Staging
		f.SetCellValue(exportSheet, "A"+n, item.ID)
		f.SetCellValue(exportSheet, "B"+n, string(item.Status))
		f.SetCellValue(exportSheet, "C"+n, utils.DereferencePtr(item.Ano, ""))
		f.SetCellValue(exportSheet, "D"+n, item.Processo)
		f.SetCellValue(exportSheet, "E"+n, item.Edital)
		f.SetCellValue(exportSheet, "F"+n, item.Titulo)
		f.SetCellValue(exportSheet, "G"+n, item.Descricao)
		if r.Legacy != nil {
			f.SetCellValue(exportSheet, "H"+n, r.Legacy.Id)
			f.SetCellValue(exportSheet, "I"+n, utils.DereferencePtr(r.Legacy.Titulo, ""))
			f.SetCellValue(exportSheet, "J"+n, utils.DereferencePtr(r.Legacy.Descricao, ""))
		}
		if r.Diff {
			f.SetCellValue(exportSheet, "K"+n, "SIM")
		} else {
			f.SetCellValue(exportSheet, "K"+n, "NÃO")
		}
	}
	return f.Write(w)
}

func ExportFileName(batchId string) string {
	return "auditoria_" + batchId + ".xlsx"
}
