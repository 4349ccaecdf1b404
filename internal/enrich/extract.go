package enrich

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/ratings-cli/internal/model"
)

var ratingRe = regexp.MustCompile(`Rated (\d+(?:\.\d+)?) out of 5`)

// Selectors for the search engine's result markup. They drift; a miss only
// costs the attribute, never the run.
const (
	ratingBadgeSelector   = "span.yi40Hd.YrbPuc"
	employeeSelector      = "em"
	organicResultSelector = "div.yuRUbf a"
)

// ExtractRating looks for the "Rated X out of 5" snippet first, then the
// rating badge element.
func ExtractRating(doc *goquery.Document, html string) *float64 {
	if m := ratingRe.FindStringSubmatch(html); m != nil {
		if v := model.ParseRating(m[1]); v != nil {
			return v
		}
	}
	if doc == nil {
		return nil
	}
	return model.ParseRating(doc.Find(ratingBadgeSelector).First().Text())
}

// ExtractEmployeeCount returns the first emphasised snippet mentioning
// employees, e.g. "1,001 to 5,000 Employees".
func ExtractEmployeeCount(doc *goquery.Document) *string {
	if doc == nil {
		return nil
	}
	var found *string
	doc.Find(employeeSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if strings.Contains(text, "Employees") {
			found = &text
			return false
		}
		return true
	})
	return found
}

// ExtractFirstResultURL returns the href of the first organic result link.
// Relative or non-http links count as a miss.
func ExtractFirstResultURL(doc *goquery.Document) *string {
	if doc == nil {
		return nil
	}
	href, ok := doc.Find(organicResultSelector).First().Attr("href")
	if !ok {
		return nil
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil
	}
	s := u.String()
	return &s
}
