package scraper

import (
	"regexp"
	"strings"

	"bitbucket.org/mmdatafocus/audit_backend/models"
)

var (
	fractionPattern = regexp.MustCompile(`\d+/\d+`)
	numberPattern   = regexp.MustCompile(`\d+`)
)

// DeriveKeyText normalizes the raw key text of a container into an "n/year" edital.
//
// Order: first "n/m" in the key text; else, with a known partition, the first number
// of the key text joined with the year; else "n/m" from the title. Key text without
// any of these is kept as is, and an empty result becomes the sentinel.
func DeriveKeyText(keyText, title string, ano *string) string {
	edital := keyText
	if m := fractionPattern.FindString(keyText); m != "" {
		edital = m
	}
	if !strings.Contains(edital, "/") && ano != nil && *ano != "" {
		if m := numberPattern.FindString(keyText); m != "" {
			edital = m + "/" + *ano
		}
	}
	if edital == "" && title != "" {
		edital = fractionPattern.FindString(title)
	}
	if edital == "" {
		return models.SentinelNoEdital
	}
	return edital
}
