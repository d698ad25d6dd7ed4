package scraper

import (
	"context"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

const previewContainers = 3

// Preview returns the inner markup of the first containers so an operator can pick selectors.
func (s *Service) Preview(ctx context.Context, rawURL, container string) (*PreviewResult, error) {
	ctx, span := tracer.Start(ctx, "scraper.Preview")
	defer span.End()

	u, err := parseSourceURL(rawURL)
	if err != nil {
		return nil, err
	}
	container = orDefault(container, DefaultContainerSelector)
	if _, err := cascadia.Compile(container); err != nil {
		return nil, utils.NewValidationError("container", "invalid selector: "+err.Error())
	}

	body, err := s.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body, u.String())
	if err != nil {
		return nil, err
	}
	return BuildPreview(doc, container), nil
}

func BuildPreview(doc *goquery.Document, container string) *PreviewResult {
	containers := doc.Find(container)
	var b strings.Builder
	containers.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if i >= previewContainers {
			return false
		}
		html, _ := sel.Html()
		fmt.Fprintf(&b, "<!-- CONTAINER %d -->\n", i+1)
		b.WriteString(html)
		b.WriteString("\n\n")
		return true
	})
	out := b.String()
	if out == "" {
		out = fmt.Sprintf("Nenhum container <%s> encontrado. Tente usar outro seletor.", container)
	}
	return &PreviewResult{Html: out, Count: containers.Length()}
}
