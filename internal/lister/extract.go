package lister

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/ratings-cli/internal/config"
	"github.com/sells-group/ratings-cli/internal/model"
)

var numberedRe = regexp.MustCompile(`^\d+\.\s+(.+)$`)

// MaxPage reads the highest page number from the last node matching
// selector. Pages without pagination report 1.
func MaxPage(doc *goquery.Document, selector string) int {
	if selector == "" {
		return 1
	}
	nodes := doc.Find(selector)
	if nodes.Length() == 0 {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(nodes.Last().Text()))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// PageURL returns base with its page query parameter set to n.
func PageURL(base string, n int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExtractEntities pulls company names, and optionally their links, from one
// listing page.
func ExtractEntities(doc *goquery.Document, pageURL string, src config.SourceConfig) []model.Entity {
	var names []string
	doc.Find(src.NameSelector).Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if src.NumberPrefix {
			m := numberedRe.FindStringSubmatch(text)
			if m == nil {
				return
			}
			text = m[1]
		}
		names = append(names, text)
	})

	var links []string
	if src.LinkSelector != "" {
		links = extractLinks(doc, pageURL, src.LinkSelector, src.ExcludeURLs)
	}

	entities := make([]model.Entity, 0, len(names))
	for i, name := range names {
		link := ""
		if j := i + src.LinkOffset; src.LinkSelector != "" && j >= 0 && j < len(links) {
			link = links[j]
		}
		if e, ok := model.NewEntity(name, link); ok {
			entities = append(entities, e)
		}
	}
	return entities
}

// extractLinks returns the absolute hrefs under selector that contain none
// of the excluded substrings.
func extractLinks(doc *goquery.Document, pageURL, selector string, exclude []string) []string {
	base, _ := url.Parse(pageURL)

	var links []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		for _, ex := range exclude {
			if ex != "" && strings.Contains(href, ex) {
				return
			}
		}
		links = append(links, href)
	})
	return links
}
