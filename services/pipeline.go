package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"airbnb-listings/config"
	"airbnb-listings/models"
	"airbnb-listings/scraper/airbnb"
	"airbnb-listings/storage"
	"airbnb-listings/utils"
)

// PipelineOptions tunes one run.
type PipelineOptions struct {
	// RawCSVPath receives the scraped rows before cleaning; empty skips it.
	RawCSVPath string
	SampleSeed int64
	// DropFailedDetails removes rows whose detail fetch failed.
	DropFailedDetails bool
	// Resume skips links already fetched into the sink's file.
	Resume bool
}

// Result is the outcome of one run.
type Result struct {
	Listings   []models.Listing
	Vocabulary []string

	Scraped int
	Cleaned int
	Sampled int
	Resumed int

	FieldFailures map[string]int
	Details       airbnb.DetailStats
	Join          JoinStats
}

// Pipeline scrapes the search results, cleans them, fetches the detail
// pages of the (optionally sampled) listings and joins both tables.
type Pipeline struct {
	scraper *airbnb.Scraper
	cleaner *Cleaner
	fetcher *airbnb.DetailFetcher
	sink    *storage.DetailSink
	parser  *DetailParser
	opts    PipelineOptions
	logger  *utils.Logger
}

// NewPipeline creates a Pipeline. fetcher must append to sink.
func NewPipeline(s *airbnb.Scraper, c *Cleaner, fetcher *airbnb.DetailFetcher, sink *storage.DetailSink,
	parser *DetailParser, opts PipelineOptions, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		scraper: s,
		cleaner: c,
		fetcher: fetcher,
		sink:    sink,
		parser:  parser,
		opts:    opts,
		logger:  logger.With("component", "pipeline"),
	}
}

// Run executes the whole pipeline for cities. sampleSize <= 0 keeps every
// listing. The sink is closed before its file is read back.
func (p *Pipeline) Run(ctx context.Context, cities []config.City, sampleSize int) (*Result, error) {
	rows, err := p.scraper.Scrape(ctx, cities)
	if err != nil {
		return nil, err
	}
	res := &Result{Scraped: len(rows), FieldFailures: fieldFailures(rows)}

	if p.opts.RawCSVPath != "" {
		if err := storage.WriteRawCSV(p.opts.RawCSVPath, rows); err != nil {
			return nil, fmt.Errorf("write raw listings: %w", err)
		}
		p.logger.Info("[pipeline] Raw listings saved to %s", p.opts.RawCSVPath)
	}

	listings, vocab := p.cleaner.Clean(rows)
	res.Cleaned = len(listings)
	res.Vocabulary = vocab

	listings = Sample(listings, sampleSize, p.opts.SampleSeed)
	res.Sampled = len(listings)
	if sampleSize > 0 {
		p.logger.Info("[pipeline] Sampled %d of %d listings (seed %d)", res.Sampled, res.Cleaned, p.opts.SampleSeed)
	}

	todo := Links(listings)
	if p.opts.Resume {
		todo, res.Resumed, err = p.pending(todo)
		if err != nil {
			return nil, err
		}
	}

	res.Details, err = p.fetcher.FetchAll(ctx, todo)
	if closeErr := p.sink.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close detail file: %w", closeErr)
	}
	if err != nil {
		return nil, err
	}
	p.logger.Info("[pipeline] Details: %d fetched, %d failed %v", res.Details.Fetched, res.Details.Failed, res.Details.Failures)

	details, err := storage.LoadDetails(p.sink.Path())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		details = map[string]models.DetailRecord{}
	}

	res.Listings, res.Join = Join(listings, details, p.parser, p.opts.DropFailedDetails)
	if res.Join.Dropped > 0 {
		p.logger.Warn("[pipeline] Dropped %d of %d listings at the detail join (%d without record, %d failed fetches)",
			res.Join.Dropped, len(listings), res.Join.Missing, res.Join.Failed)
	}
	p.logger.Info("[pipeline] Final table: %d listings", len(res.Listings))
	return res, nil
}

// pending drops the links whose details were already fetched into the
// sink's file by an earlier run. Links recorded as failures are retried.
func (p *Pipeline) pending(links []string) ([]string, int, error) {
	if n := p.sink.Dropped(); n > 0 {
		p.logger.Warn("[pipeline] Cut a partial record (%d bytes) from the end of %s", n, p.sink.Path())
	}
	done, err := storage.LoadDetails(p.sink.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return links, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("resume: %w", err)
	}

	todo := make([]string, 0, len(links))
	for _, link := range links {
		if rec, ok := done[link]; ok && rec.OK() {
			continue
		}
		todo = append(todo, link)
	}
	skipped := len(links) - len(todo)
	p.logger.Info("[pipeline] Resuming: %d listings already fetched, %d to go", skipped, len(todo))
	return todo, skipped, nil
}

func fieldFailures(rows []models.ListingRow) map[string]int {
	out := make(map[string]int)
	for _, r := range rows {
		for _, name := range r.Failures() {
			out[name]++
		}
	}
	return out
}
