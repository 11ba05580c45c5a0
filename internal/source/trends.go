package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/blacktop/trendpost/internal/logutil"
	"golang.org/x/net/html"
)

// skipText is the per-row link getdaytrends renders next to every trend.
const skipText = "View details"

// TrendScraper extracts trending keywords from the first table of an HTML page.
type TrendScraper struct {
	url   string
	count int
	opts  Options
}

// NewTrendScraper returns a scraper collecting up to count keywords from url.
func NewTrendScraper(url string, count int, opts Options) *TrendScraper {
	return &TrendScraper{url: url, count: count, opts: opts.withDefaults()}
}

// Keywords fetches the page and returns up to count keywords in document order.
func (s *TrendScraper) Keywords(ctx context.Context) ([]string, error) {
	logutil.Infof("fetching trending keywords from %s", s.url)
	body, err := get(ctx, s.opts, s.url, map[string]string{"Accept": "text/html,application/xhtml+xml"})
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	keywords, err := ExtractKeywords(goquery.NewDocumentFromNode(root), s.count)
	if err != nil {
		return nil, err
	}
	logutil.Infof("found keywords: %v", keywords)
	return keywords, nil
}

// ExtractKeywords reads anchor texts from the first table of doc, skipping
// "View details" and purely numeric entries, and stops after count keywords.
func ExtractKeywords(doc *goquery.Document, count int) ([]string, error) {
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrNoTable
	}
	if count <= 0 {
		return []string{}, nil
	}

	keywords := make([]string, 0, count)
	table.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(keywords) >= count {
			return false
		}
		text := strings.TrimSpace(a.Text())
		if text == "" || text == skipText || isNumeric(text) {
			return true
		}
		keywords = append(keywords, text)
		return len(keywords) < count
	})
	return keywords, nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
