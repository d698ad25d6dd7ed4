package scraper

import (
	"strings"

	"bitbucket.org/mmdatafocus/audit_backend/models"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/andybalholm/cascadia"
)

const (
	DefaultContainerSelector = "details"
	DefaultEditalSelector    = "h4"
	DefaultTituloSelector    = "summary"
	DefaultDescricaoSelector = "p"

	defaultTipo = "licitacao"
)

// Selectors locate a record container and its fields inside the container.
type Selectors struct {
	Container string `json:"container"`
	Edital    string `json:"edital"`
	Titulo    string `json:"titulo"`
	Descricao string `json:"descricao"`
}

func (s Selectors) WithDefaults() Selectors {
	return Selectors{
		Container: orDefault(s.Container, DefaultContainerSelector),
		Edital:    orDefault(s.Edital, DefaultEditalSelector),
		Titulo:    orDefault(s.Titulo, DefaultTituloSelector),
		Descricao: orDefault(s.Descricao, DefaultDescricaoSelector),
	}
}

// Validate compiles every selector.
func (s Selectors) Validate() error {
	for name, sel := range map[string]string{
		"container": s.Container,
		"edital":    s.Edital,
		"titulo":    s.Titulo,
		"descricao": s.Descricao,
	} {
		if _, err := cascadia.Compile(sel); err != nil {
			return utils.NewValidationError("selectors."+name, "invalid selector: "+err.Error())
		}
	}
	return nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// PartitionReport describes the outcome of one fetched page.
type PartitionReport struct {
	Ano   string `json:"ano"`
	Url   string `json:"url"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// RunResult is what a scrape run persisted.
type RunResult struct {
	BatchId    string                `json:"batchId"`
	Items      []*models.StagingItem `json:"items"`
	Partitions []PartitionReport     `json:"partitions"`
}

func (r *RunResult) Failed() int {
	n := 0
	for _, p := range r.Partitions {
		if p.Error != "" {
			n++
		}
	}
	return n
}

type PreviewResult struct {
	Html  string `json:"html"`
	Count int    `json:"count"`
}
