package indexsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// symbolRe accepts ticker-shaped tokens such as MMM, GOOGL, BRK.B and
// rejects header text and company names.
var symbolRe = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,6}$`)

// scrape downloads one constituent page and extracts its ticker column.
func (s *Source) scrape(ctx context.Context, indexName, pageURL string) ([]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := s.httpClient.GetWithHeaders(ctx, pageURL, map[string]string{
		"User-Agent": userAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s constituents: %w", indexName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s constituents: unexpected status %d", indexName, resp.StatusCode)
	}

	symbols, err := parseConstituents(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s constituents: %w", indexName, err)
	}
	return symbols, nil
}

// parseConstituents extracts the ticker column from a Wikipedia
// constituent table. Symbols pass through as listed; no exchange-style
// normalization (BRK.B stays BRK.B).
func parseConstituents(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		table = doc.Find("table.wikitable.sortable").First()
	}
	if table.Length() == 0 {
		return nil, errors.New("no constituent table found")
	}

	col := symbolColumn(table)
	if col < 0 {
		return nil, errors.New("no symbol column found")
	}

	var symbols []string
	seen := make(map[string]struct{})
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		// Some pages mark the company cell as a row header, so count
		// th and td cells together to keep column positions stable.
		cells := row.Find("th, td")
		if cells.Length() <= col {
			return
		}
		symbol := strings.TrimSpace(cells.Eq(col).Text())
		if !symbolRe.MatchString(symbol) {
			return
		}
		if _, dup := seen[symbol]; dup {
			return
		}
		seen[symbol] = struct{}{}
		symbols = append(symbols, symbol)
	})
	return symbols, nil
}

// symbolColumn locates the header column labelled Symbol or Ticker.
func symbolColumn(table *goquery.Selection) int {
	col := -1
	table.Find("tr").First().Find("th").Each(func(i int, th *goquery.Selection) {
		if col >= 0 {
			return
		}
		text := strings.ToLower(strings.TrimSpace(th.Text()))
		if strings.Contains(text, "symbol") || strings.Contains(text, "ticker") {
			col = i
		}
	})
	return col
}
