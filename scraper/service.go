package scraper

import (
	"context"
	"net/url"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/audit_backend/config"
	"bitbucket.org/mmdatafocus/audit_backend/models"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("audit_backend/scraper")

// ItemWriter is the part of the staging store a scrape run needs.
type ItemWriter interface {
	CreateItems(ctx context.Context, items []*models.StagingItem) error
	TouchBatchConfig(ctx context.Context, batchId, sourceUrl string) error
}

// Service builds staging batches from source pages.
type Service struct {
	store     ItemWriter
	fetcher   Fetcher
	extractor *Extractor
	logger    *logrus.Logger

	// Snapshots is optional.
	Snapshots Snapshotter
	Publish   func(ctx context.Context, ev config.AuditEvent) error
	Now       func() time.Time
}

func NewService(store ItemWriter, fetcher Fetcher, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Service{
		store:     store,
		fetcher:   fetcher,
		extractor: NewExtractor(logger),
		logger:    logger,
		Publish:   config.PublishAuditEvent,
		Now:       time.Now,
	}
}

// Run scrapes rawURL into one batch. A URL with "ano" is a single partition; without it
// the year menu of the page is followed and every year lands in one "todos" batch.
func (s *Service) Run(ctx context.Context, rawURL string, sel Selectors) (*RunResult, error) {
	// A started run finishes every partition and persists what it extracted.
	ctx, span := tracer.Start(context.WithoutCancel(ctx), "scraper.Run")
	defer span.End()

	base, err := parseSourceURL(rawURL)
	if err != nil {
		return nil, err
	}
	sel = sel.WithDefaults()
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	query := base.Query()
	tipo := query.Get("p")
	if tipo == "" {
		tipo = defaultTipo
	}
	stamp := utils.DateStamp(s.Now())
	span.SetAttributes(attribute.String("scraper.url", base.String()), attribute.String("scraper.tipo", tipo))

	var result *RunResult
	if ano := query.Get("ano"); ano != "" {
		result, err = s.scrapeSinglePage(ctx, base, tipo, &ano, sel, stamp)
	} else {
		result, err = s.runMultiPartition(ctx, base, tipo, sel, stamp)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if err := s.persist(ctx, base.String(), result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("scraper.batch_id", result.BatchId), attribute.Int("scraper.items", len(result.Items)))
	return result, nil
}

func (s *Service) scrapeSinglePage(ctx context.Context, pageURL *url.URL, tipo string, ano *string, sel Selectors, stamp string) (*RunResult, error) {
	batchId := tipo + "_" + models.PartitionLabel(ano) + "_" + stamp
	body, err := s.fetch(ctx, batchId, ano, pageURL.String())
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body, pageURL.String())
	if err != nil {
		return nil, err
	}
	return s.singleResult(batchId, pageURL.String(), ano, doc, sel), nil
}

func (s *Service) singleResult(batchId, pageURL string, ano *string, doc *goquery.Document, sel Selectors) *RunResult {
	items := s.extractor.ExtractDocument(doc, PageContext{SourceUrl: pageURL, BatchId: batchId, Ano: ano}, sel)
	return &RunResult{
		BatchId:    batchId,
		Items:      items,
		Partitions: []PartitionReport{{Ano: models.PartitionLabel(ano), Url: pageURL, Count: len(items)}},
	}
}

func (s *Service) runMultiPartition(ctx context.Context, base *url.URL, tipo string, sel Selectors, stamp string) (*RunResult, error) {
	body, err := s.fetcher.Fetch(ctx, base.String())
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body, base.String())
	if err != nil {
		return nil, err
	}

	years := DiscoverPartitions(doc)
	s.logger.WithFields(logrus.Fields{
		"field": "scraper.runMultiPartition",
		"url":   base.String(),
		"years": years,
	}).Info("detected partitions")

	if len(years) == 0 {
		batchId := tipo + "_" + models.PartitionLabel(nil) + "_" + stamp
		s.snapshot(ctx, batchId, nil, base.String(), body)
		return s.singleResult(batchId, base.String(), nil, doc, sel), nil
	}

	result := &RunResult{
		BatchId: tipo + "_todos_" + stamp,
		Items:   make([]*models.StagingItem, 0),
	}
	for _, year := range years {
		pageURL := withPartition(base, year)
		report := PartitionReport{Ano: year, Url: pageURL}

		items, err := s.scrapePageItems(ctx, result.BatchId, pageURL, &year, sel)
		if err != nil {
			config.LogError(s.logger, "scraper/service.go", "runMultiPartition", "scrape partition "+year, pageURL, err)
			report.Error = err.Error()
		} else {
			report.Count = len(items)
			result.Items = append(result.Items, items...)
			s.logger.WithFields(logrus.Fields{
				"field":    "scraper.runMultiPartition",
				"batch_id": result.BatchId,
				"ano":      year,
				"count":    len(items),
			}).Info("partition scraped")
		}
		result.Partitions = append(result.Partitions, report)
	}
	return result, nil
}

func (s *Service) scrapePageItems(ctx context.Context, batchId, pageURL string, ano *string, sel Selectors) ([]*models.StagingItem, error) {
	body, err := s.fetch(ctx, batchId, ano, pageURL)
	if err != nil {
		return nil, err
	}
	return s.extractor.Extract(body, PageContext{SourceUrl: pageURL, BatchId: batchId, Ano: ano}, sel)
}

func (s *Service) fetch(ctx context.Context, batchId string, ano *string, pageURL string) ([]byte, error) {
	body, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	s.snapshot(ctx, batchId, ano, pageURL, body)
	return body, nil
}

// snapshot is best effort.
func (s *Service) snapshot(ctx context.Context, batchId string, ano *string, pageURL string, body []byte) {
	if s.Snapshots == nil {
		return
	}
	if err := s.Snapshots.Save(ctx, batchId, models.PartitionLabel(ano), pageURL, body); err != nil {
		s.logger.WithFields(logrus.Fields{
			"field":    "scraper.snapshot",
			"batch_id": batchId,
			"url":      pageURL,
		}).Warn("failed to archive page snapshot: " + err.Error())
	}
}

// persist writes every record of the run in one bulk call. Nothing is written for an empty run.
func (s *Service) persist(ctx context.Context, sourceUrl string, result *RunResult) error {
	fields := logrus.Fields{
		"field":      "scraper.Run",
		"batch_id":   result.BatchId,
		"items":      len(result.Items),
		"partitions": len(result.Partitions),
		"failed":     result.Failed(),
	}
	if len(result.Items) == 0 {
		s.logger.WithFields(fields).Info("scrape produced no items")
		return nil
	}
	if err := s.store.CreateItems(ctx, result.Items); err != nil {
		config.LogError(s.logger, "scraper/service.go", "persist", "CreateItems", result.BatchId, err)
		return err
	}
	if err := s.store.TouchBatchConfig(ctx, result.BatchId, sourceUrl); err != nil {
		config.LogError(s.logger, "scraper/service.go", "persist", "TouchBatchConfig", result.BatchId, err)
	}
	s.logger.WithFields(fields).Info("batch imported")

	if s.Publish != nil {
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		operator, _ := utils.GetUsernameFromContext(ctx)
		err := s.Publish(ctx, config.AuditEvent{
			Type:          config.AuditEventBatchImported,
			BatchId:       result.BatchId,
			Count:         len(result.Items),
			Operator:      operator,
			CorrelationId: cid,
			Extra:         map[string]any{"source_url": sourceUrl, "partitions": result.Partitions},
		})
		if err != nil {
			config.LogError(s.logger, "scraper/service.go", "persist", "PublishAuditEvent", result.BatchId, err)
		}
	}
	return nil
}

func parseSourceURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, utils.NewValidationError("url", "is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, utils.NewValidationError("url", "invalid url: "+err.Error())
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, utils.NewValidationError("url", "must be an absolute http(s) url")
	}
	return u, nil
}

func withPartition(base *url.URL, year string) string {
	u := *base
	q := u.Query()
	q.Set("ano", year)
	u.RawQuery = q.Encode()
	return u.String()
}
