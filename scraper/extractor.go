package scraper

import (
	"bytes"
	"strings"

	"bitbucket.org/mmdatafocus/audit_backend/models"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// Extractor turns a document into staged records.
type Extractor struct {
	logger *logrus.Logger
}

func NewExtractor(logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Extractor{logger: logger}
}

// PageContext is the provenance stamped on every record of one page.
type PageContext struct {
	SourceUrl string
	BatchId   string
	Ano       *string
}

// Extract returns one PENDING record per container that has a title. Containers
// without a title are skipped. A document without containers yields no records.
func (e *Extractor) Extract(doc []byte, page PageContext, sel Selectors) ([]*models.StagingItem, error) {
	parsed, err := parseDocument(doc, page.SourceUrl)
	if err != nil {
		return nil, err
	}
	return e.ExtractDocument(parsed, page, sel), nil
}

// ExtractDocument is Extract on an already parsed document.
func (e *Extractor) ExtractDocument(doc *goquery.Document, page PageContext, sel Selectors) []*models.StagingItem {
	sel = sel.WithDefaults()
	items := make([]*models.StagingItem, 0)
	skipped := 0

	doc.Find(sel.Container).Each(func(i int, container *goquery.Selection) {
		titulo := firstText(container, sel.Titulo)
		if titulo == "" {
			skipped++
			e.logger.WithFields(logrus.Fields{
				"field":     "Extractor.Extract",
				"container": i,
				"source":    page.SourceUrl,
			}).Debug("container skipped: missing titulo")
			return
		}
		descricao := firstText(container, sel.Descricao)
		if descricao == "" {
			descricao = models.SentinelNoDescription
		}

		items = append(items, &models.StagingItem{
			BatchId:   page.BatchId,
			SourceUrl: page.SourceUrl,
			Processo:  titulo,
			Edital:    DeriveKeyText(firstText(container, sel.Edital), titulo, page.Ano),
			Titulo:    titulo,
			Descricao: descricao,
			Ano:       copyString(page.Ano),
			Status:    models.AuditStatusPending,
		})
	})

	e.logger.WithFields(logrus.Fields{
		"field":    "Extractor.Extract",
		"source":   page.SourceUrl,
		"batch_id": page.BatchId,
		"ano":      models.PartitionLabel(page.Ano),
		"count":    len(items),
		"skipped":  skipped,
	}).Debug("page extracted")
	return items
}

func parseDocument(doc []byte, sourceUrl string) (*goquery.Document, error) {
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, &utils.ParseError{URL: sourceUrl, Err: err}
	}
	return parsed, nil
}

func firstText(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
