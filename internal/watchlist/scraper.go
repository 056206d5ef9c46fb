package watchlist

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"autotrader/internal/interfaces"
	"autotrader/internal/logger"
	"autotrader/internal/types"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Scraper reads a most-active screener table. Columns are located by
// their header text, so the page layout may reorder them.
type Scraper struct {
	url     string
	timeout time.Duration
}

var _ interfaces.ActivitySource = (*Scraper)(nil)

func NewScraper(pageURL string, timeout time.Duration) *Scraper {
	return &Scraper{url: pageURL, timeout: timeout}
}

func (s *Scraper) MostActive(ctx context.Context) ([]types.ActiveSymbol, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(s.url)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid discovery url %q", s.url)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(u.Hostname()),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})

	var out []types.ActiveSymbol
	c.OnHTML("table", func(e *colly.HTMLElement) {
		out = append(out, parseTable(e.DOM)...)
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("discovery fetch failed (status %d): %w", r.StatusCode, err)
	})

	if err := c.Visit(s.url); err != nil && visitErr == nil {
		visitErr = err
	}
	if visitErr != nil {
		return nil, visitErr
	}
	logger.Debug(ctx, "Most-active page scraped", "url", s.url, "rows", len(out))
	return out, nil
}

// parseTable extracts symbol, price and volume columns from one table.
// Tables without those headers yield nothing.
func parseTable(table *goquery.Selection) []types.ActiveSymbol {
	symCol, priceCol, volCol := -1, -1, -1
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		h := strings.ToLower(strings.TrimSpace(th.Text()))
		switch {
		case symCol < 0 && strings.HasPrefix(h, "symbol"):
			symCol = i
		case priceCol < 0 && strings.HasPrefix(h, "price"):
			priceCol = i
		case volCol < 0 && (h == "volume" || strings.HasPrefix(h, "volume")):
			volCol = i
		}
	})
	if symCol < 0 || priceCol < 0 || volCol < 0 {
		return nil
	}

	var out []types.ActiveSymbol
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		sym := strings.ToUpper(strings.TrimSpace(firstField(cells.Eq(symCol).Text())))
		if sym == "" {
			return
		}
		price, err := parseHumanNumber(firstField(cells.Eq(priceCol).Text()))
		if err != nil {
			return
		}
		vol, err := parseHumanNumber(firstField(cells.Eq(volCol).Text()))
		if err != nil {
			return
		}
		out = append(out, types.ActiveSymbol{Symbol: sym, Price: price, TradeCount: int64(math.Round(vol))})
	})
	return out
}

func firstField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// parseHumanNumber reads values like "1,234.5", "12.3K", "4.56M", "1.2B".
func parseHumanNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "-" || s == "--" {
		return 0, fmt.Errorf("empty number")
	}
	mult := 1.0
	switch s[len(s)-1] {
	case 'K', 'k':
		mult = 1e3
	case 'M', 'm':
		mult = 1e6
	case 'B', 'b':
		mult = 1e9
	case 'T', 't':
		mult = 1e12
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return v * mult, nil
}
