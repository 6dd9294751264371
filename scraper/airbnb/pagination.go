package airbnb

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"airbnb-listings/scraper"
	"airbnb-listings/utils"
)

// Walker follows the "next page" chain of a search.
type Walker struct {
	fetcher  scraper.PageFetcher
	sel      ListingSelectors
	maxPages int
	logger   *utils.Logger
}

// NewWalker creates a Walker that stops after maxPages pages. A maxPages
// below one means no cap.
func NewWalker(fetcher scraper.PageFetcher, sel ListingSelectors, maxPages int, logger *utils.Logger) *Walker {
	return &Walker{fetcher: fetcher, sel: sel, maxPages: maxPages, logger: logger}
}

// Walk fetches startURL and every page reachable through next links, in
// order. The walk ends normally when a page has no next link, when the
// next link cannot be fetched, when a URL repeats, or at the page cap.
// Only a failure to fetch the first page is returned as an error.
func (w *Walker) Walk(ctx context.Context, startURL string) ([]*goquery.Document, error) {
	visited := utils.NewURLSet()
	var pages []*goquery.Document

	current := startURL
	for {
		if w.maxPages > 0 && len(pages) >= w.maxPages {
			w.logger.Warn("[walker] Page cap %d reached at %s", w.maxPages, current)
			return pages, nil
		}
		if !visited.Add(current) {
			w.logger.Warn("[walker] Next link loops back to %s; stopping", current)
			return pages, nil
		}
		if err := ctx.Err(); err != nil {
			if len(pages) == 0 {
				return nil, err
			}
			return pages, nil
		}

		w.logger.Debug("[walker] Fetching page %d: %s", len(pages)+1, current)
		page, err := w.fetcher.Fetch(ctx, current)
		if err != nil {
			if len(pages) == 0 {
				return nil, fmt.Errorf("fetch first page %s: %w", current, err)
			}
			w.logger.Warn("[walker] Page %d unreachable (%v); keeping %d pages", len(pages)+1, err, len(pages))
			return pages, nil
		}
		pages = append(pages, page)

		href, err := w.sel.NextPage(page)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				w.logger.Warn("[walker] Unreadable next link on page %d: %v", len(pages), err)
			}
			return pages, nil
		}
		next, err := Resolve(current, href)
		if err != nil {
			w.logger.Warn("[walker] Bad next link %q on page %d: %v", href, len(pages), err)
			return pages, nil
		}
		current = next
	}
}
