package resolver

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"teralink/internal"
)

// jsTokenPatterns are tried in order; the first match wins
var jsTokenPatterns = []*regexp.Regexp{
	// decodeURIComponent payload: fn%28%22<token>%22%29, fn standing alone or after an escape
	regexp.MustCompile(`(?:^|[^A-Za-z0-9_%]|%[0-9A-Fa-f]{2})fn%28%22([^%"'&\s]+)%22%29`),
	// inline call: fn("<token>")
	regexp.MustCompile(`\bfn\(\s*["']([^"'\s]+)["']\s*\)`),
	// assignment: window.jsToken = "<token>"
	regexp.MustCompile(`window\.jsToken\s*=\s*["']([^"']+)["']`),
}

// logIDPattern also matches dp-logid=
var logIDPattern = regexp.MustCompile(`logid=([^&"'\s<>\\]+)`)

// ExtractTokens finds the jsToken and logid a share page embeds for its own API calls.
// Script bodies are searched before the full markup.
func ExtractTokens(html string) (*internal.SessionArtifacts, error) {
	sources := []string{scriptSources(html), html}

	artifacts := &internal.SessionArtifacts{
		JSToken: findFirst(jsTokenPatterns, sources),
		LogID:   findFirst([]*regexp.Regexp{logIDPattern}, sources),
	}

	var missing []string
	if artifacts.JSToken == "" {
		missing = append(missing, "jsToken")
	}
	if artifacts.LogID == "" {
		missing = append(missing, "logid")
	}
	if len(missing) > 0 {
		return nil, internal.NewTokenExtractionError(missing...)
	}

	return artifacts, nil
}

// scriptSources joins inline script bodies and script src attributes
func scriptSources(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var b strings.Builder
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			b.WriteString(src)
			b.WriteByte('\n')
		}
		b.WriteString(s.Text())
		b.WriteByte('\n')
	})
	return b.String()
}

func findFirst(patterns []*regexp.Regexp, sources []string) string {
	for _, pattern := range patterns {
		for _, source := range sources {
			if source == "" {
				continue
			}
			if m := pattern.FindStringSubmatch(source); len(m) > 1 && m[1] != "" {
				return m[1]
			}
		}
	}
	return ""
}
