package models_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/audit_backend/models"
	"bitbucket.org/mmdatafocus/audit_backend/testutil"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
)

func newStagingStore(t *testing.T) *models.StagingStore {
	t.Helper()
	db := testutil.OpenSQLite(t)
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}
	return models.NewStagingStore(db)
}

func stagedItem(batchId, edital, titulo string, ano *string) *models.StagingItem {
	return &models.StagingItem{
		BatchId:   batchId,
		SourceUrl: "https://example.test/?p=licitacao",
		Processo:  titulo,
		Edital:    edital,
		Titulo:    titulo,
		Descricao: models.SentinelNoDescription,
		Ano:       ano,
		Status:    models.AuditStatusPending,
	}
}

func TestStagingStorePageOrdersPendingFirst(t *testing.T) {
	ctx := context.Background()
	store := newStagingStore(t)

	items := []*models.StagingItem{
		stagedItem("b1", "1/2021", "Pregão 1", nil),
		stagedItem("b1", "2/2021", "Pregão 2", nil),
		stagedItem("b1", "3/2021", "Pregão 3", nil),
		stagedItem("b2", "1/2022", "Outro", nil),
	}
	if err := store.CreateItems(ctx, items); err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	for _, it := range items {
		if it.ID == 0 {
			t.Fatalf("expected ids to be assigned")
		}
	}
	if err := store.MarkSynced(ctx, items[0].ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	page, total, err := store.PageByBatch(ctx, "b1", nil, 1, 2)
	if err != nil {
		t.Fatalf("PageByBatch: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(page) != 2 || page[0].ID != items[1].ID || page[1].ID != items[2].ID {
		t.Fatalf("expected pending items first, got %+v", page)
	}

	page, _, err = store.PageByBatch(ctx, "b1", nil, 2, 2)
	if err != nil {
		t.Fatalf("PageByBatch page 2: %v", err)
	}
	if len(page) != 1 || page[0].ID != items[0].ID || page[0].Status != models.AuditStatusSynced {
		t.Fatalf("expected synced item on page 2, got %+v", page)
	}
}

func TestStagingStorePageFiltersPartition(t *testing.T) {
	ctx := context.Background()
	store := newStagingStore(t)
	y21, y22 := testutil.Str("2021"), testutil.Str("2022")
	items := []*models.StagingItem{
		stagedItem("b", "1/2021", "A", y21),
		stagedItem("b", "1/2022", "B", y22),
		stagedItem("b", "2/2022", "C", y22),
	}
	if err := store.CreateItems(ctx, items); err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	page, total, err := store.PageByBatch(ctx, "b", y22, 1, 20)
	if err != nil {
		t.Fatalf("PageByBatch: %v", err)
	}
	if total != 2 || len(page) != 2 {
		t.Fatalf("expected 2 items for 2022, got total=%d len=%d", total, len(page))
	}
	for _, it := range page {
		if it.Ano == nil || *it.Ano != "2022" {
			t.Fatalf("unexpected partition %v", it.Ano)
		}
	}
}

func TestStagingStoreGetAndMarkSyncedMissing(t *testing.T) {
	ctx := context.Background()
	store := newStagingStore(t)

	_, err := store.Get(ctx, 99)
	if !errors.Is(err, utils.ErrorRecordNotFound) || err.Error() != "Staging item not found" {
		t.Fatalf("expected Staging item not found, got %v", err)
	}
	if err := store.MarkSynced(ctx, 99); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found from MarkSynced, got %v", err)
	}
}

func TestStagingStoreMarkSyncedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStagingStore(t)
	item := stagedItem("b", "1/2021", "A", nil)
	if err := store.CreateItems(ctx, []*models.StagingItem{item}); err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.MarkSynced(ctx, item.ID); err != nil {
			t.Fatalf("MarkSynced #%d: %v", i+1, err)
		}
	}
	got, err := store.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.AuditStatusSynced {
		t.Fatalf("expected SYNCED, got %s", got.Status)
	}
}

func TestStagingStoreUpdateContentKeepsStatusAndBatch(t *testing.T) {
	ctx := context.Background()
	store := newStagingStore(t)
	item := stagedItem("b", "1/2021", "Original", nil)
	if err := store.CreateItems(ctx, []*models.StagingItem{item}); err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	if err := store.MarkSynced(ctx, item.ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	updated, err := store.UpdateContent(ctx, item.ID, models.StagingPatch{Titulo: testutil.Str("Editado")})
	if err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	if updated.Titulo != "Editado" {
		t.Fatalf("expected titulo Editado, got %q", updated.Titulo)
	}
	if updated.Descricao != models.SentinelNoDescription {
		t.Fatalf("descricao should be untouched, got %q", updated.Descricao)
	}
	if updated.Status != models.AuditStatusSynced || updated.BatchId != "b" {
		t.Fatalf("status/batch must not change, got status=%s batch=%s", updated.Status, updated.BatchId)
	}

	if _, err := store.UpdateContent(ctx, 12345, models.StagingPatch{Titulo: testutil.Str("x")}); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStagingStoreDeleteBatchRemovesOnlyThatBatch(t *testing.T) {
	ctx := context.Background()
	store := newStagingStore(t)
	items := []*models.StagingItem{
		stagedItem("keep", "1/2021", "A", nil),
		stagedItem("drop", "2/2021", "B", nil),
		stagedItem("drop", "3/2021", "C", nil),
	}
	if err := store.CreateItems(ctx, items); err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	deleted, err := store.DeleteBatch(ctx, "drop")
	if err != nil {
		t.Fatalf("DeleteBatch: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}
	_, total, err := store.PageByBatch(ctx, "keep", nil, 1, 20)
	if err != nil || total != 1 {
		t.Fatalf("expected keep batch intact, total=%d err=%v", total, err)
	}
	deleted, err = store.DeleteBatch(ctx, "drop")
	if err != nil || deleted != 0 {
		t.Fatalf("expected second delete to remove nothing, deleted=%d err=%v", deleted, err)
	}
}

func TestStagingStorePartitionsAndStatus(t *testing.T) {
	ctx := context.Background()
	store := newStagingStore(t)
	y21, y22 := testutil.Str("2021"), testutil.Str("2022")
	items := []*models.StagingItem{
		stagedItem("b", "1/2022", "A", y22),
		stagedItem("b", "1/2021", "B", y21),
		stagedItem("b", "2/2021", "C", y21),
		stagedItem("b", "x", "D", nil),
	}
	if err := store.CreateItems(ctx, items); err != nil {
		t.Fatalf("CreateItems: %v", err)
	}
	if err := store.MarkSynced(ctx, items[0].ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	parts, err := store.ListPartitions(ctx, "b")
	if err != nil {
		t.Fatalf("ListPartitions: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(parts))
	}
	if parts[0].Ano != "2021" || parts[0].Total != 2 || parts[0].Synced != 0 || parts[0].Complete {
		t.Fatalf("unexpected 2021 summary %+v", parts[0])
	}
	if parts[1].Ano != "2022" || parts[1].Total != 1 || parts[1].Synced != 1 || !parts[1].Complete {
		t.Fatalf("unexpected 2022 summary %+v", parts[1])
	}

	status, err := store.StatusCounts(ctx, "b")
	if err != nil {
		t.Fatalf("StatusCounts: %v", err)
	}
	if status.Total != 4 || status.Pending != 3 || status.Synced != 1 || status.AllComplete {
		t.Fatalf("unexpected status %+v", status)
	}

	empty, err := store.StatusCounts(ctx, "missing")
	if err != nil {
		t.Fatalf("StatusCounts missing: %v", err)
	}
	if empty.Total != 0 || empty.AllComplete {
		t.Fatalf("empty batch must not be complete: %+v", empty)
	}
}

func TestStagingStoreListBatchesMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	store := newStagingStore(t)
	older := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC)

	a1 := stagedItem("old", "1/2021", "A", nil)
	a1.CreatedAt = older
	a2 := stagedItem("old", "2/2021", "B", nil)
	a2.CreatedAt = older
	b1 := stagedItem("new", "1/2024", "C", nil)
	b1.CreatedAt = newer
	if err := store.CreateItems(ctx, []*models.StagingItem{a1, a2, b1}); err != nil {
		t.Fatalf("CreateItems: %v", err)
	}

	batches, err := store.ListBatches(ctx)
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if batches[0].BatchId != "new" || batches[0].ItemCount != 1 {
		t.Fatalf("expected newest batch first, got %+v", batches[0])
	}
	if batches[1].BatchId != "old" || batches[1].ItemCount != 2 {
		t.Fatalf("unexpected second batch %+v", batches[1])
	}
	if !batches[0].CreatedAt.Time().Equal(newer) {
		t.Fatalf("expected createdAt %s, got %s", newer, batches[0].CreatedAt.Time())
	}
}

func TestStagingStoreBatchConfigUpsert(t *testing.T) {
	ctx := context.Background()
	store := newStagingStore(t)

	if _, err := store.GetBatchConfig(ctx, "b"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.TouchBatchConfig(ctx, "b", "https://example.test/a"); err != nil {
		t.Fatalf("TouchBatchConfig: %v", err)
	}

	cfg := &models.BatchConfig{BatchId: "b"}
	cfg.ApplyMapping(models.FieldMapping{KeyField: models.KeyFieldTitulo, KeyColumn: "num_edital", TitleColumn: "objeto"})
	if err := store.SaveBatchConfig(ctx, cfg); err != nil {
		t.Fatalf("SaveBatchConfig: %v", err)
	}
	if err := store.TouchBatchConfig(ctx, "b", "https://example.test/b"); err != nil {
		t.Fatalf("TouchBatchConfig again: %v", err)
	}

	got, err := store.GetBatchConfig(ctx, "b")
	if err != nil {
		t.Fatalf("GetBatchConfig: %v", err)
	}
	m := got.Mapping()
	if m.KeyField != models.KeyFieldTitulo || m.KeyColumn != "num_edital" || m.TitleColumn != "objeto" || m.DescriptionColumn != "" {
		t.Fatalf("unexpected stored mapping %+v", m)
	}
	if got.SourceUrl == nil || *got.SourceUrl != "https://example.test/b" {
		t.Fatalf("expected refreshed source url, got %v", got.SourceUrl)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestStagingStoreCreateItemsDefaultsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	store := newStagingStore(t)

	blank := stagedItem("b1", "1/2021", "Pregão 1", nil)
	blank.Status = ""
	bogus := stagedItem("b1", "2/2021", "Pregão 2", nil)
	bogus.Status = "DONE"
	synced := stagedItem("b1", "3/2021", "Pregão 3", nil)
	synced.Status = models.AuditStatusSynced
	if err := store.CreateItems(ctx, []*models.StagingItem{blank, bogus, synced}); err != nil {
		t.Fatalf("CreateItems: %v", err)
	}

	want := []models.AuditStatus{models.AuditStatusPending, models.AuditStatusPending, models.AuditStatusSynced}
	for i, it := range []*models.StagingItem{blank, bogus, synced} {
		got, err := store.Get(ctx, it.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status != want[i] {
			t.Fatalf("item %d: expected %s, got %s", i, want[i], got.Status)
		}
	}
}
