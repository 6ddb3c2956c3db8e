package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"isilanlarim/internal/model"
)

const (
	itemSelector        = ".job-listing, .job-item, .listing-item"
	titleSelector       = "h2, h3, .job-title"
	descriptionSelector = "p, .job-description"
	companySelector     = ".company, .company-name"

	maxBody = 5 << 20
)

// Fetcher extracts candidate postings from one board page.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) ([]model.Candidate, error)
}

// BoardFetcher reads listing cards from HTML job-board pages.
type BoardFetcher struct {
	client   *http.Client
	maxItems int
}

// NewBoardFetcher returns a fetcher that keeps at most maxItems cards per
// page and gives up on a page after timeout.
func NewBoardFetcher(maxItems int, timeout time.Duration) *BoardFetcher {
	return &BoardFetcher{
		client:   &http.Client{Timeout: timeout},
		maxItems: maxItems,
	}
}

// Fetch downloads sourceURL and returns the first cards found on it. Cards
// are returned as found; acceptance rules are applied by the Worker.
func (f *BoardFetcher) Fetch(ctx context.Context, sourceURL string) ([]model.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9")
	req.Header.Set("User-Agent", "isilanlarim-bot/1.0 (+https://isilanlarim.org)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %d", sourceURL, resp.StatusCode)
	}

	return Extract(io.LimitReader(resp.Body, maxBody), sourceURL, f.maxItems)
}

// Extract parses a board page and returns up to maxItems cards.
func Extract(r io.Reader, sourceURL string, maxItems int) ([]model.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	items := doc.Find(itemSelector)
	if maxItems > 0 && items.Length() > maxItems {
		items = items.Slice(0, maxItems)
	}

	out := make([]model.Candidate, 0, items.Length())
	items.Each(func(_ int, s *goquery.Selection) {
		out = append(out, model.Candidate{
			Title:       strings.TrimSpace(s.Find(titleSelector).Text()),
			Description: strings.TrimSpace(s.Find(descriptionSelector).Text()),
			Company:     strings.TrimSpace(s.Find(companySelector).Text()),
			SourceURL:   sourceURL,
		})
	})
	return out, nil
}
