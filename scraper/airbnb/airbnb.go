package airbnb

import (
	"context"
	"fmt"

	"airbnb-listings/config"
	"airbnb-listings/models"
	"airbnb-listings/utils"
)

// Scraper walks the search results of each configured city and extracts
// the listing rows. Pages and cities are handled sequentially.
type Scraper struct {
	walker    *Walker
	extractor *Extractor
	logger    *utils.Logger
}

// New creates a ready-to-use Airbnb Scraper.
func New(walker *Walker, extractor *Extractor, logger *utils.Logger) *Scraper {
	return &Scraper{
		walker:    walker,
		extractor: extractor,
		logger:    logger.With("component", "scraper"),
	}
}

// ScrapeCity returns every listing row of one city's search, in page order.
func (s *Scraper) ScrapeCity(ctx context.Context, city config.City) ([]models.ListingRow, error) {
	s.logger.Info("[airbnb] Scraping %s", city.Name)

	pages, err := s.walker.Walk(ctx, city.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", city.Name, err)
	}

	rows := s.extractor.Aggregate(pages, city.Name)
	failed := 0
	for _, r := range rows {
		if f := r.Failures(); len(f) > 0 {
			failed++
			s.logger.Debug("[airbnb] %s: fields %v not extracted for %s", city.Name, f, r.Link)
		}
	}
	s.logger.Info("[airbnb] %s done: %d pages, %d listings (%d with missing fields)",
		city.Name, len(pages), len(rows), failed)
	return rows, nil
}

// Scrape concatenates the rows of all cities in the order given. A city
// whose first page cannot be fetched is skipped; the call fails only when
// every city fails.
func (s *Scraper) Scrape(ctx context.Context, cities []config.City) ([]models.ListingRow, error) {
	var (
		all     []models.ListingRow
		lastErr error
		okCount int
	)
	for _, city := range cities {
		rows, err := s.ScrapeCity(ctx, city)
		if err != nil {
			s.logger.Error("[airbnb] %v", err)
			lastErr = err
			continue
		}
		okCount++
		all = append(all, rows...)
	}

	if okCount == 0 && lastErr != nil {
		return nil, fmt.Errorf("no city could be scraped: %w", lastErr)
	}
	return all, nil
}
