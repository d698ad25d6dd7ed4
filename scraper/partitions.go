package scraper

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

const partitionLinkSelector = "a.btmenu"

var partitionHrefPattern = regexp.MustCompile(`ano=(\d{4})`)

// DiscoverPartitions returns the years linked from the year menu, in order of first appearance.
func DiscoverPartitions(doc *goquery.Document) []string {
	seen := map[string]bool{}
	years := make([]string, 0)
	doc.Find(partitionLinkSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		m := partitionHrefPattern.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		years = append(years, m[1])
	})
	return years
}
