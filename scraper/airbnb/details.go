package airbnb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"airbnb-listings/models"
	"airbnb-listings/scraper"
	"airbnb-listings/utils"
)

// RecordSink receives completed detail records. Append must be safe for
// concurrent use and returns how many records the sink holds afterwards.
type RecordSink interface {
	Append(rec models.DetailRecord) (int, error)
}

// DetailOptions tunes the detail fetcher.
type DetailOptions struct {
	// Timeout bounds one link end to end; zero means no bound.
	Timeout       time.Duration
	PageWait      time.Duration
	AmenitiesWait time.Duration
}

// DetailStats summarises one FetchAll run.
type DetailStats struct {
	Requested int
	Fetched   int
	Failed    int
	Failures  map[models.FailureKind]int
}

// DetailFetcher renders the detail and amenities pages of each listing on a
// bounded pool of browser sessions and hands each record to a sink as soon
// as it completes.
type DetailFetcher struct {
	browser scraper.Browser
	sel     DetailSelectors
	sink    RecordSink
	pool    *utils.WorkerPool
	retry   *utils.RetryConfig
	opts    DetailOptions
	logger  *utils.Logger
}

// NewDetailFetcher creates a DetailFetcher.
func NewDetailFetcher(browser scraper.Browser, sel DetailSelectors, sink RecordSink, pool *utils.WorkerPool,
	retry *utils.RetryConfig, opts DetailOptions, logger *utils.Logger) *DetailFetcher {
	return &DetailFetcher{
		browser: browser,
		sel:     sel,
		sink:    sink,
		pool:    pool,
		retry:   retry,
		opts:    opts,
		logger:  logger.With("component", "detail-fetcher"),
	}
}

// FetchAll fetches every unique link once. Individual page failures become
// sentinel records; only a sink write failure or ctx being cancelled stops
// the batch and is returned. Links left unfetched by a cancellation are not
// recorded.
func (f *DetailFetcher) FetchAll(ctx context.Context, links []string) (DetailStats, error) {
	links = utils.Unique(links)
	stats := DetailStats{Requested: len(links), Failures: make(map[models.FailureKind]int)}
	if len(links) == 0 {
		return stats, nil
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		sinkErr error
	)

	f.logger.Info("[details] Fetching %d listings with %d workers", len(links), f.pool.Size())
	for _, link := range links {
		link := link
		f.pool.Submit(ctx, func(ctx context.Context) {
			rec := f.FetchDetails(ctx, link)
			if !rec.OK() && ctx.Err() != nil {
				// Cancelled, not failed: leave the link for a resumed run.
				return
			}

			mu.Lock()
			stopped := sinkErr != nil
			mu.Unlock()
			if stopped {
				return
			}

			n, err := f.sink.Append(rec)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if sinkErr == nil {
					sinkErr = fmt.Errorf("append record for %s: %w", link, err)
					cancel()
				}
				return
			}
			if rec.OK() {
				stats.Fetched++
			} else {
				stats.Failed++
				stats.Failures[rec.Failure]++
			}
			f.logger.Info("[details] Scraped: %d (%d/%d this run)", n, stats.Fetched+stats.Failed, len(links))
		})
	}
	f.pool.Wait()

	if sinkErr == nil && parent.Err() != nil {
		return stats, parent.Err()
	}
	return stats, sinkErr
}

// FetchDetails renders the detail page of link, expands its "read more"
// sections, then renders the amenities page it links to. Any failure,
// including running past the per-link timeout, yields a sentinel record.
func (f *DetailFetcher) FetchDetails(ctx context.Context, link string) models.DetailRecord {
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	var rec models.DetailRecord
	err := f.retry.Do(ctx, "details "+link, func(ctx context.Context) error {
		var err error
		rec, err = f.fetchOnce(ctx, link)
		return err
	})
	if err != nil {
		kind := scraper.FailureOf(err)
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			kind = models.FailureTimeout
		case errors.Is(err, ErrNotFound):
			kind = models.FailureMissing
		}
		f.logger.Warn("[details] %s failed (%s): %v", link, kind, err)
		return models.FailedRecord(link, kind)
	}
	return rec
}

func (f *DetailFetcher) fetchOnce(ctx context.Context, link string) (models.DetailRecord, error) {
	session, err := f.browser.NewSession(ctx)
	if err != nil {
		return models.DetailRecord{}, err
	}
	defer session.Close()

	expand, from := f.sel.ReadMore()
	details, err := session.Render(link, scraper.RenderOptions{
		Wait:           f.opts.PageWait,
		ExpandSelector: expand,
		ExpandFrom:     from,
	})
	if err != nil {
		return models.DetailRecord{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(details))
	if err != nil {
		return models.DetailRecord{}, fmt.Errorf("parse detail page: %w", err)
	}
	href, err := f.sel.AmenitiesLink(doc)
	if err != nil {
		return models.DetailRecord{}, fmt.Errorf("amenities link: %w", err)
	}
	amenitiesURL, err := Resolve(link, href)
	if err != nil {
		return models.DetailRecord{}, err
	}

	amenities, err := session.Render(amenitiesURL, scraper.RenderOptions{Wait: f.opts.AmenitiesWait})
	if err != nil {
		return models.DetailRecord{}, err
	}

	return models.DetailRecord{DetailsPage: details, AmenitiesPage: amenities, Link: link}, nil
}
